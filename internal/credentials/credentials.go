package credentials

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt hashes carry a structural marker; anything else is treated as a
// legacy hex SHA-256 digest. The dual scheme lets accounts migrate to bcrypt
// on next password change instead of forcing a mass reset.
const bcryptMarker = "$2"

// VerifyPassword reports whether password matches storedHash under whichever
// scheme the hash belongs to. It never errors: malformed hashes and empty
// inputs verify as false.
func VerifyPassword(password, storedHash string) bool {
	if password == "" || storedHash == "" {
		return false
	}
	if strings.HasPrefix(storedHash, bcryptMarker) {
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
	}
	return verifyLegacy(password, storedHash)
}

func verifyLegacy(password, storedHash string) bool {
	want, err := hex.DecodeString(storedHash)
	if err != nil || len(want) != sha256.Size {
		return false
	}
	got := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(got[:], want) == 1
}

// HashPassword creates a bcrypt hash, the scheme for all new accounts.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// HashPasswordLegacy produces the pre-migration digest format. Only the
// seeder uses it, to create fixtures for the legacy verification path.
func HashPasswordLegacy(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

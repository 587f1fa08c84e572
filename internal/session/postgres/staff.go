package postgres

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/frahmantamala/admin-lite-gateway/internal/staff"
)

// Repository reads the locally-mirrored staff users backing the legacy
// credential path. Writes happen only through migrations and the seeder.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentialsByEmail(email string) (string, string, error) {
	var passwordHash string
	var staffID string
	query := `SELECT id, password_hash FROM staff_users WHERE email = ? AND is_active = true`

	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&staffID, &passwordHash); err != nil {
		if err == sql.ErrNoRows {
			return "", "", fmt.Errorf("staff user not found")
		}
		return "", "", err
	}
	return passwordHash, staffID, nil
}

func (r *Repository) GetStaffWithPermissions(staffID string) (*staff.Source, error) {
	var src staff.Source
	var firstName, lastName, role sql.NullString

	query := `SELECT id, email, first_name, last_name, role FROM staff_users WHERE id = ? AND is_active = true`

	row := r.db.Raw(query, staffID).Row()
	if err := row.Scan(&src.ID, &src.Email, &firstName, &lastName, &role); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("staff user not found")
		}
		return nil, err
	}
	if firstName.Valid {
		src.FirstName = &firstName.String
	}
	if lastName.Valid {
		src.LastName = &lastName.String
	}
	if role.Valid {
		src.Role = &role.String
	}

	permQuery := `SELECT p.name
	             FROM permissions p
	             JOIN staff_permissions sp ON p.id = sp.permission_id
	             WHERE sp.staff_id = ?`

	rows, err := r.db.Raw(permQuery, staffID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var permName string
		if err := rows.Scan(&permName); err != nil {
			return nil, err
		}
		permissions = append(permissions, permName)
	}

	src.Permissions = permissions
	return &src, nil
}

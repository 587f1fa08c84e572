package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/admin-lite-gateway/internal/credentials"
)

// seedCmd creates two staff accounts for local development: one on the
// current bcrypt scheme and one carrying a legacy hex digest so the dual
// verification path can be exercised end to end.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the staff database with sample data",
	Long:  `Seed the staff database with sample accounts for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		db, err := gorm.Open(gormpg.New(gormpg.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to wrap db connection: %v", err)
		}

		if clearData {
			for _, table := range []string{"staff_permissions", "staff_users", "permissions"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing staff data")
		}

		hash, err := credentials.HashPassword("password", bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}
		seedStaff(db, "stf_admin", "admin@mail.com", "Admin", "User", "admin", hash)

		// legacy account: hex digest, migrates to bcrypt on next password change
		seedStaff(db, "stf_legacy", "legacy@mail.com", "Legacy", "User", "staff",
			credentials.HashPasswordLegacy("password"))

		permissions := []struct {
			Name string
			Desc string
		}{
			{"orders:read", "Can view orders"},
			{"orders:write", "Can manage orders"},
			{"products:read", "Can view products"},
			{"products:write", "Can manage products and variants"},
			{"uploads:write", "Can upload files"},
		}

		for _, p := range permissions {
			var pid int64
			if err := db.Raw("SELECT id FROM permissions WHERE name = ?", p.Name).Row().Scan(&pid); err != nil {
				if err := db.Exec("INSERT INTO permissions (name, description, created_at) VALUES (?, ?, now())", p.Name, p.Desc).Error; err != nil {
					log.Fatalf("failed to insert permission %s: %v", p.Name, err)
				}
			}
		}

		for _, p := range permissions {
			var pid int64
			if err := db.Raw("SELECT id FROM permissions WHERE name = ?", p.Name).Row().Scan(&pid); err != nil {
				log.Fatalf("permission not found after insert %s: %v", p.Name, err)
			}

			var exists int
			if err := db.Raw("SELECT 1 FROM staff_permissions WHERE staff_id = ? AND permission_id = ?", "stf_admin", pid).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO staff_permissions (staff_id, permission_id, created_at) VALUES (?, ?, now())", "stf_admin", pid).Error; err != nil {
				log.Fatalf("failed to grant permission %s: %v", p.Name, err)
			}
		}

		fmt.Println("Granted all permissions to admin@mail.com")
	},
}

func seedStaff(db *gorm.DB, id, email, firstName, lastName, role, passwordHash string) {
	var exists int
	if err := db.Raw("SELECT 1 FROM staff_users WHERE email = ?", email).Row().Scan(&exists); err == nil {
		fmt.Println("staff user already exists:", email)
		return
	}

	if err := db.Exec(
		"INSERT INTO staff_users (id, email, first_name, last_name, role, password_hash, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, true, now(), now())",
		id, email, firstName, lastName, role, passwordHash,
	).Error; err != nil {
		log.Fatalf("failed to insert staff user %s: %v", email, err)
	}
	fmt.Println("Seeded staff user:", email)
}

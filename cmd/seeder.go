package cmd

import (
	"fmt"
	"log"

	"github.com/frahmantamala/account-service/internal"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	seedSuperuserEmail    string
	seedSuperuserPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with baseline data",
	Long:  `Create the admins group, the anonymous marker account and optionally a superuser.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open gorm: %v", err)
		}

		seedAdminsGroup(db)
		seedAnonymousUser(db, cfg)
		if seedSuperuserEmail != "" {
			seedSuperuser(db, cfg)
		}
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedSuperuserEmail, "superuser-email", "", "create a superuser with this email")
	seedCmd.Flags().StringVar(&seedSuperuserPassword, "superuser-password", "", "password for the created superuser")
}

func seedAdminsGroup(db *gorm.DB) {
	var exists int
	row := db.Raw("SELECT 1 FROM groups WHERE name = ?", "admins").Row()
	if err := row.Scan(&exists); err == nil {
		fmt.Println("admins group already exists")
		return
	}

	if err := db.Exec("INSERT INTO groups (name, created_at) VALUES (?, now())", "admins").Error; err != nil {
		log.Fatalf("failed to insert admins group: %v", err)
	}
	fmt.Println("Seeded admins group")
}

// seedAnonymousUser inserts the marker row for the reserved anonymous
// identity. The password hash is a sentinel that bcrypt can never verify,
// so the account is unusable for login.
func seedAnonymousUser(db *gorm.DB, cfg *internal.Config) {
	email := cfg.Security.AnonymousEmail

	var exists int
	row := db.Raw("SELECT 1 FROM users WHERE email = ?", email).Row()
	if err := row.Scan(&exists); err == nil {
		fmt.Println("anonymous user already exists:", email)
		return
	}

	err := db.Exec(
		"INSERT INTO users (uuid, email, password_hash, first_name, last_name, is_active, is_staff, is_superuser, date_joined) VALUES (?, ?, ?, '', '', false, false, false, now())",
		uuid.NewString(), email, "!unusable",
	).Error
	if err != nil {
		log.Fatalf("failed to insert anonymous user: %v", err)
	}
	fmt.Println("Seeded anonymous user:", email)
}

func seedSuperuser(db *gorm.DB, cfg *internal.Config) {
	if seedSuperuserPassword == "" {
		log.Fatal("superuser-password is required when superuser-email is set")
	}
	if len(seedSuperuserPassword) < cfg.Security.MinPasswordLength {
		log.Fatalf("superuser password must be at least %d characters", cfg.Security.MinPasswordLength)
	}

	var exists int
	row := db.Raw("SELECT 1 FROM users WHERE email = ?", seedSuperuserEmail).Row()
	if err := row.Scan(&exists); err == nil {
		fmt.Println("superuser already exists:", seedSuperuserEmail)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedSuperuserPassword), cfg.Security.BCryptCost)
	if err != nil {
		log.Fatalf("failed to hash superuser password: %v", err)
	}

	err = db.Exec(
		"INSERT INTO users (uuid, email, password_hash, first_name, last_name, is_active, is_staff, is_superuser, date_joined) VALUES (?, ?, ?, '', '', true, true, true, now())",
		uuid.NewString(), seedSuperuserEmail, string(hash),
	).Error
	if err != nil {
		log.Fatalf("failed to insert superuser: %v", err)
	}
	fmt.Println("Seeded superuser:", seedSuperuserEmail)
}

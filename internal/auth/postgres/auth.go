package postgres

import (
	"database/sql"
	"fmt"

	"github.com/frahmantamala/account-service/internal/auth"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetCredentials(email string) (string, string, error) {
	var passwordHash string
	var userUUID string
	query := `SELECT uuid, password_hash FROM users WHERE email = ? AND is_active = true`

	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&userUUID, &passwordHash); err != nil {
		if err == sql.ErrNoRows {
			return "", "", fmt.Errorf("user not found")
		}
		return "", "", err
	}
	return passwordHash, userUUID, nil
}

func (r *Repository) GetPrincipal(userUUID string) (*auth.Principal, error) {
	var p auth.Principal

	query := `SELECT uuid, email, is_active, is_staff, is_superuser FROM users WHERE uuid = ?`
	row := r.db.Raw(query, userUUID).Row()
	if err := row.Scan(&p.UserUUID, &p.Email, &p.IsActive, &p.IsStaff, &p.IsSuperuser); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}

	groupQuery := `SELECT g.name
	              FROM groups g
	              JOIN group_members gm ON g.id = gm.group_id
	              WHERE gm.user_uuid = ?`

	rows, err := r.db.Raw(groupQuery, userUUID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		groups = append(groups, name)
	}
	// a mid-iteration failure must not yield a truncated membership set
	if err := rows.Err(); err != nil {
		return nil, err
	}

	p.Groups = groups
	return &p, nil
}

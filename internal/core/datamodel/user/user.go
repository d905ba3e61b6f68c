package user

import "time"

// User is the persistence model for an account. ID is the internal row
// number and never leaves the datastore layer; UUID is the stable external
// identifier used in URLs and grant targets.
type User struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	UUID         string    `gorm:"column:uuid;uniqueIndex;not null"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	IsActive     bool      `gorm:"column:is_active;default:true"`
	IsStaff      bool      `gorm:"column:is_staff;default:false"`
	IsSuperuser  bool      `gorm:"column:is_superuser;default:false"`
	DateJoined   time.Time `gorm:"column:date_joined"`
}

func (User) TableName() string {
	return "users"
}

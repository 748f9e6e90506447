package models

import (
	"time"
)

// User describes an account holder. Identity verification beyond password
// login lives outside this service; handlers only trust the user id the auth
// middleware resolved.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	FullName string `json:"full_name"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	Profile *Profile `gorm:"foreignKey:UserID" json:"profile,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at"`
}

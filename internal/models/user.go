package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User owns sites and subscriptions. Accounts are created on first capture
// or first magic-link login; there is no password.
type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email       string     `gorm:"not null;size:255;uniqueIndex" json:"email"`
	FullName    string     `gorm:"size:255" json:"full_name"`
	Role        string     `gorm:"size:20;not null;default:'user';check:chk_users_role,role IN ('user','admin')" json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

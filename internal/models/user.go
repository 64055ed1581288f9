package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a customer or administrator of the store.
type User struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username           string    `json:"username" gorm:"type:varchar(50);not null"`
	UsernameNormalized string    `json:"-" gorm:"type:varchar(50);not null;uniqueIndex"`
	Email              string    `json:"email" gorm:"type:varchar(255);not null"`
	EmailNormalized    string    `json:"-" gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash       string    `json:"-" gorm:"type:varchar(255);not null"`
	Role               string    `json:"role" gorm:"type:varchar(16);not null;default:user"`
	IsSuperAdmin       bool      `json:"is_super_admin" gorm:"not null;default:false;uniqueIndex:idx_users_single_super_admin,where:is_super_admin"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PublicUser is the subset of User fields that may leave the service.
type PublicUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Public strips credentials from the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Role:         u.Role,
		IsSuperAdmin: u.IsSuperAdmin,
		CreatedAt:    u.CreatedAt,
	}
}

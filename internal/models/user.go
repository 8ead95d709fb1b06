package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "admin"
)

// internal/models/user.go
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"username"`
	Email    string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"email"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;default:'admin'" json:"role"`

	// single active session; overwritten on every login/refresh
	RefreshToken string `gorm:"type:text" json:"-"`

	IsEmailVerified         bool       `gorm:"not null;default:false" json:"isEmailVerified"`
	EmailVerificationOtp    string     `gorm:"type:varchar(64)" json:"-"`
	EmailVerificationExpiry *time.Time `json:"-"`
	ResetPasswordOtp        string     `gorm:"type:varchar(64);index" json:"-"`
	ResetPasswordExpiry     *time.Time `json:"-"`
	LastOtpRequest          *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

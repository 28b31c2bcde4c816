package user

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     *string   `json:"full_name"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest payload of POST /auth/register.
// swagger:model RegisterRequest
type RegisterRequest struct {
	Email    string  `json:"email"     binding:"required,email" example:"ana@example.com"`
	Password string  `json:"password"  binding:"required,min=8" example:"s3cretpass"`
	FullName *string `json:"full_name"                          example:"Ana Pérez"`
}

// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// swagger:model RefreshRequest
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
)

// UserDTO is the transport shape returned by the API.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required to persist a new user.
type CreateUserDTO struct {
	Email       string
	DisplayName string
	Role        enums.UserRole
}

// ToModel maps the DTO onto a persistable user row.
func (d CreateUserDTO) ToModel() *models.User {
	role := d.Role
	if !role.IsValid() {
		role = enums.UserRoleUser
	}
	return &models.User{
		ID:          uuid.New(),
		Email:       d.Email,
		DisplayName: d.DisplayName,
		Role:        role,
		IsActive:    true,
	}
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

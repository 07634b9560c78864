package repository

import (
	"context"

	"github.com/jhoicas/obrastock-api/internal/domain/entity"
)

// UserRepository puerto de persistencia de usuarios.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

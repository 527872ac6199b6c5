package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/users"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/security"
)

// AdminAccount describes the operator account the seeder guarantees.
type AdminAccount struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type adminUserRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
}

// AdminBootstrapper creates or promotes the operator account. It never
// changes an existing password.
type AdminBootstrapper struct {
	users  adminUserRepository
	hasher passwordHasher
}

func NewAdminBootstrapper(repo adminUserRepository, hasher passwordHasher) (*AdminBootstrapper, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	return &AdminBootstrapper{users: repo, hasher: hasher}, nil
}

// Ensure returns the admin user and whether it was created.
func (b *AdminBootstrapper) Ensure(ctx context.Context, account AdminAccount) (*users.UserDTO, bool, error) {
	email := users.NormalizeEmail(account.Email)
	if email == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	existing, err := b.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != enums.UserRoleAdmin {
			if err := b.users.UpdateRole(ctx, existing.ID, string(enums.UserRoleAdmin)); err != nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote admin")
			}
			existing.Role = enums.UserRoleAdmin
		}
		return users.FromModel(existing), false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check admin email")
	}

	name := strings.TrimSpace(account.Name)
	if name == "" {
		name = "Administrator"
	}
	if err := security.CheckPasswordPolicy(account.Password); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	hash, err := b.hasher.Hash(account.Password)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	created, err := b.users.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         enums.UserRoleAdmin,
	})
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create admin")
	}
	return users.FromModel(created), true, nil
}

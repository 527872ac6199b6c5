package addresses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

// Service manages a user's address book. A user with addresses always has
// exactly one default.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error)
	Update(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*AddressDTO, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*AddressDTO, error)
	// FindForUser loads an owned address, used by checkout.
	FindForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
}

func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewAddressDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error) {
	in, ok := input.normalized()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is incomplete")
	}

	address := &models.Address{UserID: userID}
	in.apply(address)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count addresses")
		}
		address.IsDefault = count == 0 || in.IsDefault
		if address.IsDefault && count > 0 {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}
		if err := repo.Create(ctx, address); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewAddressDTO(address)
	return &dto, nil
}

// Update replaces the address fields. Setting is_default moves the default
// here; clearing it on the current default is ignored.
func (s *service) Update(ctx context.Context, userID, addressID uuid.UUID, input AddressInput) (*AddressDTO, error) {
	in, ok := input.normalized()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is incomplete")
	}

	var address *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		address, err = s.owned(ctx, repo, userID, addressID)
		if err != nil {
			return err
		}
		in.apply(address)
		if in.IsDefault && !address.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
			address.IsDefault = true
		}
		if err := repo.Save(ctx, address); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewAddressDTO(address)
	return &dto, nil
}

// Delete removes the address. When it was the default, the oldest remaining
// address takes over.
func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		address, err := s.owned(ctx, repo, userID, addressID)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, address.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
		}
		if !address.IsDefault {
			return nil
		}
		next, err := repo.Oldest(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load next default")
		}
		if err := repo.MarkDefault(ctx, next.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote default address")
		}
		return nil
	})
}

func (s *service) SetDefault(ctx context.Context, userID, addressID uuid.UUID) (*AddressDTO, error) {
	var address *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		address, err = s.owned(ctx, repo, userID, addressID)
		if err != nil {
			return err
		}
		if address.IsDefault {
			return nil
		}
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
		}
		if err := repo.MarkDefault(ctx, address.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set default address")
		}
		address.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := NewAddressDTO(address)
	return &dto, nil
}

func (s *service) FindForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	return s.owned(ctx, s.repo, userID, addressID)
}

func (s *service) owned(ctx context.Context, repo *Repository, userID, addressID uuid.UUID) (*models.Address, error) {
	address, err := repo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if address.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "address does not belong to user")
	}
	return address, nil
}

package service

import (
	"context"

	"courier/internal/cache"
	"courier/internal/models"
	"courier/internal/repository"
	"courier/internal/validation"
)

// UserService serves the caller's own profile.
type UserService struct {
	store repository.Store
}

// NewUserService returns a new UserService.
func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

// GetUser returns the user with id.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

// UpdateLocation moves the user. Shipments already in flight keep the
// coordinates captured at dispatch; only projections are invalidated.
func (s *UserService) UpdateLocation(ctx context.Context, id uint, lat, lng float64) (*models.User, error) {
	if err := validation.ValidateCoordinates(lat, lng); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := s.store.Users().UpdateLocation(ctx, id, lat, lng); err != nil {
		return nil, err
	}

	affected := []uint{id}
	conns, err := s.store.Connections().ListWithMessengers(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range conns {
		affected = append(affected, conns[i].PartnerID(id))
	}
	cache.InvalidateCharacters(ctx, affected...)

	return s.store.Users().GetByID(ctx, id)
}

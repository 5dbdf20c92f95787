package address

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
)

// Service orchestrates a user's saved addresses.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) List(ctx context.Context, userID int) ([]Address, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, addressID int) (Address, error) {
	a, err := s.repo.Get(ctx, userID, addressID)
	if err != nil {
		return Address{}, notFound(addressID, err)
	}
	return a, nil
}

func (s *Service) Add(ctx context.Context, userID int, in Input) (Address, error) {
	if err := apperr.ValidateStruct(in); err != nil {
		return Address{}, err
	}
	now := s.now().UTC()
	a := fromInput(in)
	a.UserID = userID
	a.CreatedAt = now
	a.UpdatedAt = now
	return s.repo.Create(ctx, a)
}

func (s *Service) Update(ctx context.Context, userID, addressID int, in Input) (Address, error) {
	if err := apperr.ValidateStruct(in); err != nil {
		return Address{}, err
	}
	a := fromInput(in)
	a.UserID = userID
	a.AddressID = addressID
	a.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, a)
	if err != nil {
		return Address{}, notFound(addressID, err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, userID, addressID int) error {
	if err := s.repo.Delete(ctx, userID, addressID); err != nil {
		return notFound(addressID, err)
	}
	return nil
}

func fromInput(in Input) Address {
	return Address{
		Label:     strings.TrimSpace(in.Label),
		Line:      strings.TrimSpace(in.Line),
		City:      strings.TrimSpace(in.City),
		State:     strings.TrimSpace(in.State),
		Pincode:   in.Pincode,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Phone:     strings.TrimSpace(in.Phone),
	}
}

func notFound(id int, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("address %d not found", id), err)
	}
	return err
}

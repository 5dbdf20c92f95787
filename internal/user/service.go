package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/wichananm65/vendor-supply-backend/internal/apperr"
	"github.com/wichananm65/vendor-supply-backend/internal/geo"
)

const tokenTTL = 72 * time.Hour

type Service struct {
	repo   Repository
	secret []byte
	now    func() time.Time
}

func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{repo: repo, secret: []byte(jwtSecret), now: time.Now}
}

type RegisterInput struct {
	Email        string        `json:"email" validate:"required,email"`
	Password     string        `json:"password" validate:"required,min=6"`
	Name         string        `json:"name" validate:"required"`
	Phone        string        `json:"phone"`
	Role         Role          `json:"role" validate:"required,oneof=vendor supplier"`
	BusinessName string        `json:"businessName"`
	Location     *geo.Location `json:"location" validate:"omitempty"`
}

type ProfileUpdate struct {
	Name         *string       `json:"name,omitempty"`
	Phone        *string       `json:"phone,omitempty"`
	BusinessName *string       `json:"businessName,omitempty"`
	Location     *geo.Location `json:"location,omitempty" validate:"omitempty"`
}

func (s *Service) GetByID(ctx context.Context, id int) (User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, apperr.Wrap(apperr.KindNotFound, "user not found", err)
		}
		return User{}, err
	}
	return sanitizeUser(user), nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := apperr.ValidateStruct(in); err != nil {
		return User{}, err
	}
	if in.Role == RoleSupplier && (in.Location == nil || in.Location.Pincode == "") {
		return User{}, apperr.Validation("validation failed", map[string]string{
			"location": "suppliers must provide a location with a pincode",
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	now := s.now().UTC()
	user := User{
		Email:        in.Email,
		Password:     string(hashed),
		Name:         strings.TrimSpace(in.Name),
		Phone:        in.Phone,
		Role:         in.Role,
		BusinessName: in.BusinessName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Location != nil {
		user.Location = *in.Location
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return User{}, apperr.Wrap(apperr.KindConflict, "email already exists", err)
		}
		return User{}, err
	}
	return sanitizeUser(created), nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return User{}, apperr.Wrap(apperr.KindUnauthorized, "invalid email or password", ErrInvalidCredentials)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return User{}, apperr.Wrap(apperr.KindUnauthorized, "invalid email or password", ErrInvalidCredentials)
	}

	return sanitizeUser(user), nil
}

// IssueToken signs an HS256 token carrying the user's id, email and role.
func (s *Service) IssueToken(user User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     s.now().Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) UpdateProfile(ctx context.Context, id int, patch ProfileUpdate) (User, error) {
	if err := apperr.ValidateStruct(patch); err != nil {
		return User{}, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, apperr.Wrap(apperr.KindNotFound, "user not found", err)
		}
		return User{}, err
	}

	if patch.Name != nil {
		existing.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Phone != nil {
		existing.Phone = *patch.Phone
	}
	if patch.BusinessName != nil {
		existing.BusinessName = *patch.BusinessName
	}
	if patch.Location != nil {
		existing.Location = *patch.Location
	}
	if existing.Name == "" {
		return User{}, apperr.Validation("validation failed", map[string]string{"name": "name is required"})
	}
	existing.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, id, existing)
	if err != nil {
		return User{}, err
	}
	return sanitizeUser(updated), nil
}

func (s *Service) ListSuppliers(ctx context.Context, filter SupplierFilter) ([]User, error) {
	users, err := s.repo.ListSuppliers(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = sanitizeUser(users[i])
	}
	return users, nil
}

// GetSupplier loads a user and fails with NotFound unless it is a supplier.
func (s *Service) GetSupplier(ctx context.Context, id int) (User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !user.IsSupplier() {
		return User{}, apperr.NotFound("supplier %d not found", id)
	}
	return user, nil
}

package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dmchat/internal/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store is what the service needs from the user repository.
type Store interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	ListOthers(ctx context.Context, excludeID string) ([]User, error)
	UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*User, error)
	UpdatePassword(ctx context.Context, id, hashed string) error
	SetStatus(ctx context.Context, id, status string, lastSeen time.Time) error
}

type Service struct {
	repo      Store
	tokens    ResetTokenStore
	mailer    Mailer
	jwtSecret string
	logger    *slog.Logger
}

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func NewService(repo Store, tokens ResetTokenStore, mailer Mailer, secret string, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		tokens:    tokens,
		mailer:    mailer,
		jwtSecret: secret,
		logger:    logger,
	}
}

func (s *Service) Signup(ctx context.Context, req *SignupRequest) (*AuthResponse, error) {
	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		return nil, apperror.Validation("first name, last name and email are required")
	}
	if len(req.Password) < 6 {
		return nil, apperror.Validation("password must be at least 6 characters")
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperror.Conflict("user", req.Email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  string(hashed),
	}
	if _, err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	token, err := s.generateToken(u)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", slog.String("userID", u.ID), slog.String("email", u.Email))
	return &AuthResponse{AccessToken: token, User: u}, nil
}

func (s *Service) Signin(ctx context.Context, req *SigninRequest) (*AuthResponse, error) {
	u, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperror.Forbidden("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, apperror.Forbidden("invalid credentials")
	}

	token, err := s.generateToken(u)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{AccessToken: token, User: u}, nil
}

func (s *Service) generateToken(u *User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "dmchat",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		},
	})
	return token.SignedString([]byte(s.jwtSecret))
}

// ValidateToken parses a signed token and returns the user id it carries.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.UserID == "" {
		return "", apperror.Forbidden("invalid token")
	}
	return claims.UserID, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListOthers(ctx context.Context, excludeID string) ([]User, error) {
	return s.repo.ListOthers(ctx, excludeID)
}

func (s *Service) UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*User, error) {
	if req.FirstName == "" || req.LastName == "" {
		return nil, apperror.Validation("first name and last name are required")
	}
	return s.repo.UpdateProfile(ctx, id, req)
}

// SetStatus is the durable half of presence; the hub calls it best-effort.
func (s *Service) SetStatus(ctx context.Context, id, status string, lastSeen time.Time) error {
	return s.repo.SetStatus(ctx, id, status, lastSeen)
}

func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := s.tokens.Save(ctx, token, u.ID, ResetTokenTTL); err != nil {
		return fmt.Errorf("saving reset token: %w", err)
	}
	return s.mailer.SendPasswordReset(ctx, u.Email, token)
}

func (s *Service) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if len(req.Password) < 6 {
		return apperror.Validation("password must be at least 6 characters")
	}

	userID, err := s.tokens.Consume(ctx, req.Token)
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}

	s.logger.Info("password reset", slog.String("userID", userID))
	return nil
}

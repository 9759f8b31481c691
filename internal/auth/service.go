package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"brokerhub/internal/model"
	"brokerhub/internal/store"
	"brokerhub/internal/types"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	store  store.Store
	issuer string
	secret []byte
	ttl    time.Duration
}

func NewService(st store.Store, issuer string, secret []byte, ttl time.Duration) *Service {
	return &Service{store: st, issuer: issuer, secret: secret, ttl: ttl}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Country  string
	Currency string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		return nil, errors.New("email and password required")
	}
	if len(in.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	u := &model.User{
		ID:          uuid.NewString(),
		Email:       in.Email,
		FullName:    strings.TrimSpace(in.FullName),
		Country:     strings.TrimSpace(in.Country),
		Currency:    strings.ToUpper(strings.TrimSpace(in.Currency)),
		CurrentPlan: types.PlanMini,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u, string(hash)); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, hash, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.SignToken(u.ID)
}

func (s *Service) SignToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("invalid subject")
	}
	return claims.Subject, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.store.GetUser(ctx, userID)
}

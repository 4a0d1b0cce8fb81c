package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/employee"
)

// Service authenticates employees and issues tokens.
type Service struct {
	employees  employee.Repository
	tokens     TokenGenerator
	bcryptCost int
	logger     *slog.Logger
}

func NewService(employees employee.Repository, tokens TokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		employees:  employees,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Authenticate validates credentials and returns a token pair. Inactive
// employees cannot log in regardless of credentials.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (Tokens, error) {
	if err := dto.Validate(); err != nil {
		return Tokens{}, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	emp, err := s.employees.GetByEmail(ctx, dto.Email)
	if err != nil {
		// same response as a bad password, no account probing
		return Tokens{}, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(dto.Password)); err != nil {
		return Tokens{}, internal.ErrInvalidCredentials
	}

	if !emp.IsActive() {
		return Tokens{}, internal.ErrEmployeeInactive
	}

	return s.issueTokens(emp)
}

// RefreshTokens exchanges a valid refresh token for a fresh pair, re-reading
// the employee so role and status changes take effect.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (Tokens, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return Tokens{}, err
	}

	emp, err := s.employees.GetByID(ctx, claims.EmployeeID)
	if err != nil {
		return Tokens{}, internal.ErrInvalidToken
	}
	if !emp.IsActive() {
		return Tokens{}, internal.ErrEmployeeInactive
	}

	return s.issueTokens(emp)
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokens.ValidateAccessToken(tokenString)
}

func (s *Service) issueTokens(emp *employee.Employee) (Tokens, error) {
	access, err := s.tokens.GenerateAccessToken(emp.ID, emp.Email, string(emp.Role))
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(emp.ID, emp.Email, string(emp.Role))
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (j *JWTTokenGenerator) GenerateAccessToken(employeeID int64, email, role string) (string, error) {
	return j.generate(employeeID, email, role, tokenTypeAccess, j.AccessTokenTTL)
}

func (j *JWTTokenGenerator) GenerateRefreshToken(employeeID int64, email, role string) (string, error) {
	return j.generate(employeeID, email, role, tokenTypeRefresh, j.RefreshTokenTTL)
}

func (j *JWTTokenGenerator) generate(employeeID int64, email, role, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		EmployeeID: employeeID,
		Email:      email,
		Role:       role,
		TokenType:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(employeeID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

func (j *JWTTokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, tokenTypeAccess)
}

func (j *JWTTokenGenerator) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, tokenTypeRefresh)
}

func (j *JWTTokenGenerator) validate(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != wantType {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}

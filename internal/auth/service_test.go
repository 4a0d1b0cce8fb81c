package auth_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/auth"
	"github.com/hrcore/leave-management/internal/employee"
)

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Suite")
}

type stubEmployeeRepo struct {
	employees map[int64]*employee.Employee
}

func (s *stubEmployeeRepo) GetByID(_ context.Context, id int64) (*employee.Employee, error) {
	emp, ok := s.employees[id]
	if !ok {
		return nil, internal.ErrEmployeeNotFound
	}
	return emp, nil
}

func (s *stubEmployeeRepo) GetByEmail(_ context.Context, email string) (*employee.Employee, error) {
	for _, emp := range s.employees {
		if emp.Email == email {
			return emp, nil
		}
	}
	return nil, internal.ErrEmployeeNotFound
}

func (s *stubEmployeeRepo) ListActive(_ context.Context) ([]*employee.Employee, error) {
	return nil, nil
}

var _ = Describe("Auth Service", func() {
	var (
		repo    *stubEmployeeRepo
		tokens  *auth.JWTTokenGenerator
		service *auth.Service
		ctx     context.Context
	)

	testLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	hash := func(password string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		return string(h)
	}

	BeforeEach(func() {
		repo = &stubEmployeeRepo{employees: map[int64]*employee.Employee{
			1: {
				ID:           1,
				Email:        "meera@hrcore.dev",
				PasswordHash: hash("s3cret"),
				Role:         employee.RoleManager,
				Status:       employee.StatusActive,
			},
			2: {
				ID:           2,
				Email:        "gone@hrcore.dev",
				PasswordHash: hash("s3cret"),
				Role:         employee.RoleEmployee,
				Status:       employee.StatusTerminated,
			},
		}}
		tokens = auth.NewJWTTokenGenerator("test-secret", time.Minute, time.Hour)
		service = auth.NewService(repo, tokens, bcrypt.MinCost, testLogger)
		ctx = context.Background()
	})

	Describe("Authenticate", func() {
		It("issues a token pair carrying the employee's role", func() {
			pair, err := service.Authenticate(ctx, auth.LoginDTO{Email: "meera@hrcore.dev", Password: "s3cret"})
			Expect(err).NotTo(HaveOccurred())

			claims, err := service.ValidateAccessToken(pair.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.EmployeeID).To(Equal(int64(1)))
			Expect(claims.Role).To(Equal("manager"))
		})

		It("rejects a wrong password and an unknown email identically", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "meera@hrcore.dev", Password: "nope"})
			Expect(err).To(Equal(internal.ErrInvalidCredentials))

			_, err = service.Authenticate(ctx, auth.LoginDTO{Email: "nobody@hrcore.dev", Password: "s3cret"})
			Expect(err).To(Equal(internal.ErrInvalidCredentials))
		})

		It("refuses an inactive employee with valid credentials", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "gone@hrcore.dev", Password: "s3cret"})
			Expect(err).To(Equal(internal.ErrEmployeeInactive))
		})
	})

	Describe("RefreshTokens", func() {
		It("exchanges a refresh token for a fresh pair", func() {
			pair, err := service.Authenticate(ctx, auth.LoginDTO{Email: "meera@hrcore.dev", Password: "s3cret"})
			Expect(err).NotTo(HaveOccurred())

			next, err := service.RefreshTokens(ctx, pair.RefreshToken)
			Expect(err).NotTo(HaveOccurred())

			claims, err := service.ValidateAccessToken(next.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.EmployeeID).To(Equal(int64(1)))
		})

		It("never accepts an access token in the refresh slot", func() {
			pair, err := service.Authenticate(ctx, auth.LoginDTO{Email: "meera@hrcore.dev", Password: "s3cret"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RefreshTokens(ctx, pair.AccessToken)
			Expect(err).To(Equal(internal.ErrInvalidToken))
		})

		It("refuses a refresh for an employee who went inactive", func() {
			pair, err := service.Authenticate(ctx, auth.LoginDTO{Email: "meera@hrcore.dev", Password: "s3cret"})
			Expect(err).NotTo(HaveOccurred())

			repo.employees[1].Status = employee.StatusTerminated

			_, err = service.RefreshTokens(ctx, pair.RefreshToken)
			Expect(err).To(Equal(internal.ErrEmployeeInactive))
		})
	})

	Describe("token validation", func() {
		It("rejects a refresh token used as an access token", func() {
			pair, err := service.Authenticate(ctx, auth.LoginDTO{Email: "meera@hrcore.dev", Password: "s3cret"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ValidateAccessToken(pair.RefreshToken)
			Expect(err).To(Equal(internal.ErrInvalidToken))
		})

		It("rejects an expired token", func() {
			shortLived := auth.NewJWTTokenGenerator("test-secret", time.Nanosecond, time.Hour)
			token, err := shortLived.GenerateAccessToken(1, "meera@hrcore.dev", "manager")
			Expect(err).NotTo(HaveOccurred())

			time.Sleep(10 * time.Millisecond)

			_, err = shortLived.ValidateAccessToken(token)
			Expect(err).To(Equal(internal.ErrTokenExpired))
		})

		It("rejects a token signed with another secret", func() {
			other := auth.NewJWTTokenGenerator("other-secret", time.Minute, time.Hour)
			token, err := other.GenerateAccessToken(1, "meera@hrcore.dev", "manager")
			Expect(err).NotTo(HaveOccurred())

			_, err = tokens.ValidateAccessToken(token)
			Expect(err).To(Equal(internal.ErrInvalidToken))
		})
	})
})

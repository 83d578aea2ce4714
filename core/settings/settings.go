// Package settings holds the per-college settings, among which the override password
// that lets quiz coordinators sign in as admins.
package settings

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/quizdesk/core"
)

var (
	// errors
	ErrNotFound        = errors.New("college settings not found")
	ErrInvalidOverride = errors.New("invalid override password")

	nowFunc = time.Now // mockable
)

type CollegeSettings struct {
	College      string    `json:"college"`
	OverrideHash []byte    `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (cs *CollegeSettings) SetOverridePassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hashing override password")
	}
	cs.OverrideHash = hash
	return nil
}

// VerifyOverride compares pwd with the stored hash in constant time.
func (cs *CollegeSettings) VerifyOverride(pwd string) bool {
	return bcrypt.CompareHashAndPassword(cs.OverrideHash, []byte(pwd)) == nil
}

// SetOverride is submitted by an admin to rotate the override password.
type SetOverride struct {
	Password        string `json:"password" validate:"required,min=12,max=72"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (so *SetOverride) Validate(validate *validator.Validate) error {
	return validate.Struct(so)
}

// AdminLogin is the request of an admin signing in with the override password.
type AdminLogin struct {
	College  string `json:"college" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (al *AdminLogin) Validate(validate *validator.Validate) error {
	al.College = core.CleanString(al.College, true /* lower */)
	return validate.Struct(al)
}

type (
	Repository interface {
		GetSettings(ctx context.Context, college string) (CollegeSettings, error)
		// SaveSettings creates or replaces the settings of a college.
		SaveSettings(ctx context.Context, cs CollegeSettings) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// VerifyOverride checks the override password of `college`.
// Unknown colleges and wrong passwords both yield ErrInvalidOverride.
func (svc *Service) VerifyOverride(ctx context.Context, college, pwd string) error {
	cs, err := svc.repo.GetSettings(ctx, core.CleanString(college, true /* lower */))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidOverride
		}
		return errors.Wrap(err, "finding college settings")
	}
	if !cs.VerifyOverride(pwd) {
		return ErrInvalidOverride
	}
	return nil
}

// SetOverridePassword hashes and stores the override password of `college`.
func (svc *Service) SetOverridePassword(ctx context.Context, college, pwd string) error {
	cs := CollegeSettings{
		College:   core.CleanString(college, true /* lower */),
		UpdatedAt: nowFunc().UTC(),
	}
	if err := cs.SetOverridePassword(pwd); err != nil {
		return err
	}
	if err := svc.repo.SaveSettings(ctx, cs); err != nil {
		return errors.Wrap(err, "saving college settings")
	}
	return nil
}

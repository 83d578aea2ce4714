package credential

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/quiz"
)

var (
	// errors
	ErrNotFound           = errors.New("credential not found")
	ErrUsernameExists     = errors.New("a credential with this username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrQuizClosed         = errors.New("quiz is not active")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username string, excluded ...Credential) error
		CreateCredential(ctx context.Context, cred Credential) (Credential, error)
		GetCredential(ctx context.Context, filter GetFilter) (Credential, error)
		// FilterCredentials applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Credential.Username or Credential.DisplayName.
		FilterCredentials(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Credential, error)
		// UpdateCredential saves profile fields, the password hash and the active flag.
		UpdateCredential(ctx context.Context, cred Credential) (Credential, error)
		// SaveLoginState only saves the lockout counters and the last login.
		SaveLoginState(ctx context.Context, cred Credential) error
	}

	QuizFinder interface {
		GetByID(ctx context.Context, id string) (quiz.Quiz, error)
	}

	Service struct {
		repo    Repository
		quizzes QuizFinder
		mailSvc core.EmailService
		events  core.EventPublisher
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	quizzes QuizFinder,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		quizzes: quizzes,
		mailSvc: mailSvc,
		events:  events,
		logger:  logger,
	}
}

func (svc *Service) checkUniqueness(uname string, exclCreds ...Credential) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, exclCreds...); err != nil {
		if err == ErrUsernameExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates the Credential of a participant for an active quiz.
func (svc *Service) Register(ctx context.Context, nc NewCredential) (Credential, error) {
	q, err := svc.quizzes.GetByID(ctx, nc.QuizID)
	if err != nil {
		if err == quiz.ErrNotFound {
			return Credential{}, core.NewValidationError(err, core.FieldError{Field: "quiz_id", Error: err.Error()})
		}
		return Credential{}, errors.Wrap(err, "finding quiz")
	}
	if !q.IsActive {
		return Credential{}, core.NewValidationError(ErrQuizClosed, core.FieldError{Field: "quiz_id", Error: ErrQuizClosed.Error()})
	}

	now := nowFunc().UTC()
	cred := Credential{
		ID:          uuid.New().String(),
		QuizID:      q.ID,
		Username:    nc.Username,
		DisplayName: nc.DisplayName,
		Email:       nc.Email,
		Kind:        nc.Kind,
		Members:     nc.Members,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cred.Kind == "" {
		cred.Kind = KindIndividual
	}
	if err := cred.SetPassword(nc.Password); err != nil {
		return Credential{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateCredential(ctx, cred)
}

// Authenticate verifies a login attempt and updates the lockout counters accordingly.
//
//   - unknown username: ErrInvalidCredentials, nothing is recorded.
//   - active lock: ErrAccountLocked, the password is not checked and nothing is recorded.
//   - wrong password: the failure is recorded, ErrInvalidCredentials.
//   - deactivated credential: ErrAccountDeactivated, nothing is recorded.
//   - otherwise the success is recorded.
func (svc *Service) Authenticate(ctx context.Context, username, password string) (Credential, error) {
	cred, err := svc.repo.GetCredential(ctx, GetFilter{Username: core.CleanString(username, true /* lower */)})
	if err != nil {
		if err == ErrNotFound {
			return Credential{}, ErrInvalidCredentials
		}
		return Credential{}, errors.Wrap(err, "finding credential by username")
	}
	if err = svc.verify(ctx, &cred, password); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

func (svc *Service) verify(ctx context.Context, cred *Credential, password string) error {
	now := nowFunc().UTC()
	if cred.IsCurrentlyLocked(now) {
		return ErrAccountLocked
	}
	if err := cred.CheckPassword(password); err != nil {
		if err := svc.RecordFailedAttempt(ctx, cred, now); err != nil {
			return err
		}
		return ErrInvalidCredentials
	}
	if !cred.IsActive {
		return ErrAccountDeactivated
	}
	return svc.RecordSuccessfulLogin(ctx, cred, now)
}

// ChangePassword replaces the password of `cred` after verifying its current password.
// The verification goes through the lockout guard like a login attempt.
func (svc *Service) ChangePassword(ctx context.Context, cred Credential, cp ChangePassword) (Credential, error) {
	if err := svc.verify(ctx, &cred, cp.CurrentPassword); err != nil {
		return Credential{}, err
	}
	if err := cred.SetPassword(cp.Password); err != nil {
		return Credential{}, errors.Wrap(err, "hashing password")
	}
	cred.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCredential(ctx, cred)
}

// ResetPassword sets a new password chosen by an admin and lifts any lock.
func (svc *Service) ResetPassword(ctx context.Context, cred Credential, rp ResetPassword) (Credential, error) {
	if err := cred.SetPassword(rp.Password); err != nil {
		return Credential{}, errors.Wrap(err, "hashing password")
	}
	cred.UpdatedAt = nowFunc().UTC()
	cred, err := svc.repo.UpdateCredential(ctx, cred)
	if err != nil {
		return Credential{}, errors.Wrap(err, "updating credential")
	}
	return svc.Unlock(ctx, cred)
}

// Unlock lifts the lock of `cred` and resets its failure window. Its last login is kept.
func (svc *Service) Unlock(ctx context.Context, cred Credential) (Credential, error) {
	wasLocked := cred.Locked
	cred.FailedAttempts = 0
	cred.Locked = false
	cred.LockExpiry = nil
	if err := svc.repo.SaveLoginState(ctx, cred); err != nil {
		return Credential{}, errors.Wrap(err, "saving login state")
	}
	if wasLocked {
		svc.publish(ctx, core.EventCredentialUnlocked, newLockEvent(cred))
	}
	return cred, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Credential, error) {
	return svc.repo.GetCredential(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (Credential, error) {
	return svc.repo.GetCredential(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Credential, error) {
	filter.Clean()
	return svc.repo.FilterCredentials(ctx, filter, ordering...)
}

// Update applies a validated UpdateCredential to `orig`.
func (svc *Service) Update(ctx context.Context, orig Credential, uc UpdateCredential) (Credential, error) {
	cred := orig
	cred.Username = uc.Username
	cred.DisplayName = uc.DisplayName
	cred.Email = uc.Email
	cred.Members = uc.Members
	if uc.IsActive != nil {
		cred.IsActive = *uc.IsActive
	}
	cred.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCredential(ctx, cred)
}

// SetActive soft-deletes (or restores) a Credential.
func (svc *Service) SetActive(ctx context.Context, cred Credential, active bool) (Credential, error) {
	cred.IsActive = active
	cred.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCredential(ctx, cred)
}

package credential

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const (
	// MaxFailedAttempts is the number of consecutive failed logins that locks a Credential.
	MaxFailedAttempts = 5
	// LockDuration is how long a Credential stays locked.
	LockDuration = 30 * time.Minute
)

// IsCurrentlyLocked reports whether the lock of c is active at `now`.
//
// It does not clear an expired lock: c.Locked stays true until the next failed attempt
// (see RecordFailedAttempt) or a successful login.
func (c Credential) IsCurrentlyLocked(now time.Time) bool {
	return c.Locked && c.LockExpiry != nil && c.LockExpiry.After(now)
}

// registerFailure applies one failed login attempt at `now`.
// It reports whether this attempt locked the credential.
func (c *Credential) registerFailure(now time.Time) bool {
	// expired lock: this failure opens a new window
	if c.Locked && c.LockExpiry != nil && !c.LockExpiry.After(now) {
		c.Locked = false
		c.LockExpiry = nil
		c.FailedAttempts = 1
		return false
	}

	c.FailedAttempts++
	if c.FailedAttempts >= MaxFailedAttempts && !c.Locked {
		expiry := now.Add(LockDuration)
		c.Locked = true
		c.LockExpiry = &expiry
		return true
	}
	return false
}

// registerSuccess resets the failure window, whatever the lock state.
func (c *Credential) registerSuccess(now time.Time) {
	c.FailedAttempts = 0
	c.Locked = false
	c.LockExpiry = nil
	c.LastLogin = &now
}

// RecordFailedAttempt counts a failed login of `cred` at `now` and persists the new counters.
// cred is only updated once the counters are saved.
func (svc *Service) RecordFailedAttempt(ctx context.Context, cred *Credential, now time.Time) error {
	c := *cred
	lockedNow := c.registerFailure(now.UTC())
	if err := svc.repo.SaveLoginState(ctx, c); err != nil {
		return errors.Wrap(err, "saving failed attempt")
	}
	*cred = c

	if lockedNow {
		svc.notifyLocked(ctx, c)
	}
	return nil
}

// RecordSuccessfulLogin resets the failure window of `cred` and sets its last login to `now`.
// cred is only updated once the counters are saved.
func (svc *Service) RecordSuccessfulLogin(ctx context.Context, cred *Credential, now time.Time) error {
	c := *cred
	c.registerSuccess(now.UTC())
	if err := svc.repo.SaveLoginState(ctx, c); err != nil {
		return errors.Wrap(err, "saving successful login")
	}
	*cred = c
	return nil
}

package credential

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/quizdesk/core"
)

// LockEvent is the body of the credential.locked & credential.unlocked events.
type LockEvent struct {
	CredentialID string     `json:"credential_id"`
	QuizID       string     `json:"quiz_id"`
	Username     string     `json:"username"`
	Attempts     int        `json:"failed_attempts"`
	LockExpiry   *time.Time `json:"lock_expiry,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

func newLockEvent(cred Credential) LockEvent {
	return LockEvent{
		CredentialID: cred.ID,
		QuizID:       cred.QuizID,
		Username:     cred.Username,
		Attempts:     cred.FailedAttempts,
		LockExpiry:   cred.LockExpiry,
		OccurredAt:   nowFunc().UTC(),
	}
}

// notifyLocked tells the participant and the broker that `cred` just got locked.
// Failures are logged; they never change the outcome of the login attempt.
func (svc *Service) notifyLocked(ctx context.Context, cred Credential) {
	svc.publish(ctx, core.EventCredentialLocked, newLockEvent(cred))

	if cred.Email == "" || svc.mailSvc == nil {
		return
	}
	expiry := ""
	if cred.LockExpiry != nil {
		expiry = cred.LockExpiry.Format("15:04 MST, Jan 2")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: cred.Name(), Address: cred.Email}},
		Subject:      "Your quiz account has been locked",
		TemplateName: "account_locked",
		TemplateData: map[string]interface{}{
			"Name":       cred.Name(),
			"Username":   cred.Username,
			"Attempts":   cred.FailedAttempts,
			"LockExpiry": expiry,
		},
	})
}

// publishTimeout bounds the time a login attempt can wait on the broker.
var publishTimeout = 2 * time.Second // mockable

func (svc *Service) publish(ctx context.Context, key string, evt LockEvent) {
	if svc.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := svc.events.Publish(ctx, key, evt); err != nil && svc.logger != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s: %v", key, err), err, evtCredential(evt))
	}
}

// evtCredential returns the minimal Credential the logger needs to identify the participant.
func evtCredential(evt LockEvent) Credential {
	return Credential{ID: evt.CredentialID, Username: evt.Username}
}

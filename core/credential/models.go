package credential

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/quizdesk/core"
)

type Kind string

// Kinds
const (
	KindIndividual Kind = "individual" // a single student
	KindTeam       Kind = "team"       // event quizzes: one login per team
)

// Credential is the login record of a quiz participant (or team).
type Credential struct {
	ID             string     `json:"id"`
	QuizID         string     `json:"quiz_id"`
	Username       string     `json:"username"`
	DisplayName    string     `json:"display_name"`
	Email          string     `json:"email,omitempty"`
	Kind           Kind       `json:"kind"`
	Members        []string   `json:"members,omitempty"`
	IsActive       bool       `json:"is_active"`
	PasswordHash   []byte     `json:"-"`
	FailedAttempts int        `json:"failed_attempts"`
	Locked         bool       `json:"locked"`
	LockExpiry     *time.Time `json:"lock_expiry,omitempty"` // UTC; only meaningful when Locked
	LastLogin      *time.Time `json:"last_login,omitempty"`  // UTC
	CreatedAt      time.Time  `json:"created_at"`            // UTC
	UpdatedAt      time.Time  `json:"updated_at"`            // UTC
}

func (c *Credential) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.PasswordHash = hash
	return nil
}

func (c *Credential) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(pwd))
}

func (c *Credential) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Username
}

// NewCredential contains information needed to register a participant for a quiz.
type NewCredential struct {
	QuizID          string   `json:"quiz_id" validate:"required"`
	Username        string   `json:"username" validate:"required,min=4,max=50,alphanum_"`
	DisplayName     string   `json:"display_name" validate:"max=100"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Kind            Kind     `json:"kind" validate:"omitempty,oneof=individual team"`
	Members         []string `json:"members" validate:"omitempty,max=10,dive,required"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nc *NewCredential) Validate(validate *validator.Validate, svc *Service) error {
	nc.QuizID = core.CleanString(nc.QuizID)
	nc.Username = core.CleanString(nc.Username, true /* lower */)
	nc.DisplayName = core.CleanString(nc.DisplayName)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	nc.Kind = Kind(core.CleanString(string(nc.Kind), true /* lower */))
	if nc.Kind == "" {
		nc.Kind = KindIndividual
	}
	for i, m := range nc.Members {
		nc.Members[i] = core.CleanString(m)
	}

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.checkUniqueness(nc.Username)
}

// UpdateCredential defines what information may be provided to modify an existing Credential.
type UpdateCredential struct {
	Username    string   `json:"username" validate:"omitempty,min=4,max=50,alphanum_"`
	DisplayName string   `json:"display_name" validate:"max=100"`
	Email       string   `json:"email" validate:"omitempty,email"`
	Members     []string `json:"members" validate:"omitempty,max=10,dive,required"`
	IsActive    *bool    `json:"is_active"`
}

func (uc *UpdateCredential) Validate(validate *validator.Validate, orig Credential, svc *Service) error {
	if uname := core.CleanString(uc.Username, true /* lower */); uname != "" {
		uc.Username = uname
	} else {
		uc.Username = orig.Username
	}
	if name := core.CleanString(uc.DisplayName); name != "" {
		uc.DisplayName = name
	} else {
		uc.DisplayName = orig.DisplayName
	}
	if email := core.CleanString(uc.Email, true /* lower */); email != "" {
		uc.Email = email
	} else {
		uc.Email = orig.Email
	}
	if uc.Members == nil {
		uc.Members = orig.Members
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.checkUniqueness(uc.Username, orig)
}

// ChangePassword is submitted by a logged in participant.
type ChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	username, displayName string
}

func (cp *ChangePassword) Validate(validate *validator.Validate, cred Credential) error {
	cp.username = cred.Username
	cp.displayName = cred.DisplayName
	return validate.Struct(cp)
}

// ResetPassword is submitted by an admin on behalf of a participant.
type ResetPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	username, displayName string
}

func (rp *ResetPassword) Validate(validate *validator.Validate, cred Credential) error {
	rp.username = cred.Username
	rp.displayName = cred.DisplayName
	return validate.Struct(rp)
}

// GetFilter selects a single Credential; the first non-empty field is used.
type GetFilter struct {
	ID       string
	Username string
}

type QueryFilter struct {
	Search   string `query:"search"`
	QuizID   string `query:"quiz_id"`
	Kind     Kind   `query:"kind"`
	IsActive *bool  `query:"is_active"`
	Locked   *bool  `query:"locked"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.QuizID = core.CleanString(qf.QuizID)
	qf.Kind = Kind(core.CleanString(string(qf.Kind), true /* lower */))
}

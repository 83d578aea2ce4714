package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
)

var (
	contextTokenKey      = "credentialToken"
	contextCredentialKey = "credential"
)

// Claims represents the authorization claims transmitted via a JWT.
// Participant tokens carry the credential; admin tokens carry the college.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	QuizID       string `json:"quiz_id,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"` // -> ADMIN PORTAL
	College      string `json:"college,omitempty"`
}

func newStandardClaims(conf *core.Config, subject string, now time.Time) jwt.StandardClaims {
	return jwt.StandardClaims{
		Issuer:    conf.AppName,
		Subject:   subject,
		Audience:  "Quizdesk",
		ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
		IssuedAt:  now.Unix(),
	}
}

func origIssuedAt(now time.Time, origIat []int64) int64 {
	if len(origIat) > 0 {
		return origIat[0]
	}
	return now.Unix()
}

// GetCredentialClaims returns the claims of a participant token.
func GetCredentialClaims(conf *core.Config, cred credential.Credential, origIat ...int64) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: newStandardClaims(conf, cred.ID, now),
		OrigIssuedAt:   origIssuedAt(now, origIat),
		Username:       cred.Username,
		QuizID:         cred.QuizID,
	}
}

// GetAdminClaims returns the claims of an admin token, obtained with the override password of `college`.
func GetAdminClaims(conf *core.Config, college string, origIat ...int64) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: newStandardClaims(conf, college, now),
		OrigIssuedAt:   origIssuedAt(now, origIat),
		IsAdmin:        true,
		College:        college,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type authenticator struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
}

func newAuthenticator(conf *core.Config) *authenticator {
	return &authenticator{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextCredential returns the credential loaded by participantMiddleware.
func getContextCredential(ctx echo.Context) (credential.Credential, error) {
	if cred, ok := ctx.Get(contextCredentialKey).(credential.Credential); ok {
		return cred, nil
	}
	return credential.Credential{}, errUnauthorized
}

func (a *authenticator) loginToken(cred credential.Credential) (string, error) {
	return GenerateToken(a.conf, GetCredentialClaims(a.conf, cred))
}

func (a *authenticator) adminToken(college string) (string, error) {
	return GenerateToken(a.conf, GetAdminClaims(a.conf, college))
}

// refreshToken issues a new token with the same origin as the context token,
// until JWTRefreshExpirationDelta has passed since the original login.
func (a *authenticator) refreshToken(ctx echo.Context, svc *credential.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	if claims.IsAdmin {
		return GenerateToken(a.conf, GetAdminClaims(a.conf, claims.College, claims.OrigIssuedAt))
	}

	cred, err := loadActiveCredential(ctx.Request().Context(), svc, claims.Subject)
	if err != nil {
		return "", err
	}
	return GenerateToken(a.conf, GetCredentialClaims(a.conf, cred, claims.OrigIssuedAt))
}

// loadActiveCredential finds the credential a participant token was issued for.
func loadActiveCredential(ctx context.Context, svc *credential.Service, id string) (credential.Credential, error) {
	cred, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == credential.ErrNotFound {
			return credential.Credential{}, errUnauthorized
		}
		return credential.Credential{}, errors.Wrap(err, "finding credential by ID")
	}
	if !cred.IsActive {
		return credential.Credential{}, errAccountDeactivated
	}
	return cred, nil
}

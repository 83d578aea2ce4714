package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
)

var errCredNotFoundInCtx = errors.New("credential object not found in echo.Context")

type credentialApi struct {
	svc      *credential.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerCredentialAPI(
	g *echo.Group,
	jwt, rateLimit echo.MiddlewareFunc,
	auth *authenticator,
	svc *credential.Service,
	validate *validator.Validate,
) {
	api := credentialApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	cg := g.Group("/credentials")

	// un-authed endpoints
	cg.POST("/login", api.login, rateLimit)

	// authed endpoints
	ag := cg.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("", api.create, adminMiddleware())
	ag.GET("", api.query, adminMiddleware())

	// participant endpoints
	mg := ag.Group("/me", participantMiddleware(api.svc))
	mg.GET("", api.retrieveMe)
	mg.PUT("/password", api.changePassword)

	// detail endpoints
	dg := ag.Group("/:id", adminMiddleware(), ctxCredentialMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/unlock", api.unlock)
	dg.POST("/reset-password", api.resetPassword)
}

// Handlers

func (api *credentialApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cred, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.auth.loginToken(cred)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *credentialApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *credentialApi) create(ctx echo.Context) error {
	var data credential.NewCredential
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCredential")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	cred, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering credential")
	}
	return ctx.JSON(http.StatusCreated, cred)
}

func (api *credentialApi) query(ctx echo.Context) error {
	var filter credential.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []credential.Credential{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	creds, err := api.svc.Filter(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "filtering credentials")
	}
	if creds == nil {
		creds = []credential.Credential{}
	}
	return ctx.JSON(http.StatusOK, creds)
}

func (api *credentialApi) retrieveMe(ctx echo.Context) error {
	cred, err := getContextCredential(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context credential")
	}
	return ctx.JSON(http.StatusOK, cred)
}

func (api *credentialApi) changePassword(ctx echo.Context) error {
	cred, err := getContextCredential(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context credential")
	}

	var data credential.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = data.Validate(api.validate, cred); err != nil {
		return err
	}

	if _, err = api.svc.ChangePassword(ctx.Request().Context(), cred, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been changed."})
}

func (api *credentialApi) retrieve(ctx echo.Context) error {
	cred, ok := ctx.Get("object").(credential.Credential)
	if !ok {
		return errors.Wrap(errCredNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, cred)
}

func (api *credentialApi) update(ctx echo.Context) error {
	cred, ok := ctx.Get("object").(credential.Credential)
	if !ok {
		return errors.Wrap(errCredNotFoundInCtx, "retrieving object from context")
	}

	var data credential.UpdateCredential
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCredential")
	}
	if err := data.Validate(api.validate, cred, api.svc); err != nil {
		return err
	}

	cred, err := api.svc.Update(ctx.Request().Context(), cred, data)
	if err != nil {
		return errors.Wrap(err, "updating credential")
	}
	return ctx.JSON(http.StatusOK, cred)
}

// destroy deactivates the credential; its login history is kept.
func (api *credentialApi) destroy(ctx echo.Context) error {
	cred, ok := ctx.Get("object").(credential.Credential)
	if !ok {
		return errors.Wrap(errCredNotFoundInCtx, "retrieving object from context")
	}
	if _, err := api.svc.SetActive(ctx.Request().Context(), cred, false); err != nil {
		return errors.Wrap(err, "deactivating credential")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *credentialApi) unlock(ctx echo.Context) error {
	cred, ok := ctx.Get("object").(credential.Credential)
	if !ok {
		return errors.Wrap(errCredNotFoundInCtx, "retrieving object from context")
	}
	cred, err := api.svc.Unlock(ctx.Request().Context(), cred)
	if err != nil {
		return errors.Wrap(err, "unlocking credential")
	}
	return ctx.JSON(http.StatusOK, cred)
}

func (api *credentialApi) resetPassword(ctx echo.Context) error {
	cred, ok := ctx.Get("object").(credential.Credential)
	if !ok {
		return errors.Wrap(errCredNotFoundInCtx, "retrieving object from context")
	}

	var data credential.ResetPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPassword")
	}
	if err := data.Validate(api.validate, cred); err != nil {
		return err
	}

	cred, err := api.svc.ResetPassword(ctx.Request().Context(), cred, data)
	if err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, cred)
}

func ctxCredentialMiddleware(svc *credential.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cred, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == credential.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding credential by ID")
			}
			ctx.Set("object", cred)
			return next(ctx)
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizdesk/core/settings"
)

type adminApi struct {
	svc      *settings.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerAdminAPI(
	g *echo.Group,
	jwt, rateLimit echo.MiddlewareFunc,
	auth *authenticator,
	svc *settings.Service,
	validate *validator.Validate,
) {
	api := adminApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	ag := g.Group("/admin")
	ag.POST("/login", api.login, rateLimit)
	ag.PUT("/override", api.setOverride, jwt, adminMiddleware())
}

// Handlers

// login signs a quiz coordinator in with the override password of their college.
func (api *adminApi) login(ctx echo.Context) error {
	var data settings.AdminLogin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdminLogin")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.VerifyOverride(ctx.Request().Context(), data.College, data.Password); err != nil {
		return errors.Wrap(err, "verifying override password")
	}
	token, err := api.auth.adminToken(data.College)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

// setOverride rotates the override password of the college of the admin token.
func (api *adminApi) setOverride(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data settings.SetOverride
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetOverride")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.SetOverridePassword(ctx.Request().Context(), claims.College, data.Password); err != nil {
		return errors.Wrap(err, "setting override password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Override password has been changed."})
}

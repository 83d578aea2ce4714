package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizdesk/core/quiz"
)

var errQuizNotFoundInCtx = errors.New("quiz object not found in echo.Context")

type quizApi struct {
	svc      *quiz.Service
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *quiz.Service, validate *validator.Validate) {
	api := quizApi{svc: svc, validate: validate}

	qg := g.Group("/quizzes", jwt, adminMiddleware())
	qg.POST("", api.create)
	qg.GET("", api.query)

	dg := qg.Group("/:id", ctxQuizMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *quizApi) create(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *quizApi) query(ctx echo.Context) error {
	var filter quiz.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []quiz.Quiz{})
	}

	quizzes, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "filtering quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	q, ok := ctx.Get("object").(quiz.Quiz)
	if !ok {
		return errors.Wrap(errQuizNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) update(ctx echo.Context) error {
	q, ok := ctx.Get("object").(quiz.Quiz)
	if !ok {
		return errors.Wrap(errQuizNotFoundInCtx, "retrieving object from context")
	}

	var data quiz.UpdateQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err := data.Validate(api.validate, q); err != nil {
		return err
	}

	q, err := api.svc.Update(ctx.Request().Context(), q, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

// destroy deactivates the quiz.
func (api *quizApi) destroy(ctx echo.Context) error {
	q, ok := ctx.Get("object").(quiz.Quiz)
	if !ok {
		return errors.Wrap(errQuizNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Deactivate(ctx.Request().Context(), q.ID); err != nil {
		return errors.Wrap(err, "deactivating quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func ctxQuizMiddleware(svc *quiz.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			q, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == quiz.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding quiz by ID")
			}
			ctx.Set("object", q)
			return next(ctx)
		}
	}
}

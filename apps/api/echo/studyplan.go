package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core/studyplan"
)

type studyPlanApi struct {
	svc        *studyplan.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerStudyPlanAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *studyplan.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := studyPlanApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	// course catalog
	bg := g.Group("/backlogs", jwt)
	bg.GET("", api.getCatalog)
	bg.PUT("", api.saveCatalog, staffMiddleware())

	sg := g.Group("/students/:id", jwt, studentAccessMiddleware())
	sg.GET("/schedule", api.getSchedule)
	sg.PUT("/schedule", api.saveSchedule)
	sg.POST("/schedule/validate", api.validateSchedule)
	sg.GET("/backlogs", api.getStudentBacklogs)
	sg.DELETE("/backlogs", api.resetStudentBacklogs, staffMiddleware())
	sg.GET("/plan", api.latestPlan)
	sg.POST("/plan", api.generate)

	g.POST("/plans/regenerate", api.regenerateAll, jwt, adminMiddleware())
}

// Handlers

func (api *studyPlanApi) getCatalog(ctx echo.Context) error {
	bl, err := api.svc.GetCatalog(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting catalog")
	}
	return ctx.JSON(http.StatusOK, bl)
}

func (api *studyPlanApi) saveCatalog(ctx echo.Context) error {
	var data studyplan.BacklogsInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BacklogsInput")
	}
	bl, err := data.Validate(api.validate, api.translator)
	if err != nil {
		return err
	}

	bl, err = api.svc.SaveCatalog(ctx.Request().Context(), bl)
	if err != nil {
		return errors.Wrap(err, "saving catalog")
	}
	return ctx.JSON(http.StatusOK, bl)
}

func (api *studyPlanApi) getSchedule(ctx echo.Context) error {
	sched, err := api.svc.GetSchedule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting schedule")
	}
	return ctx.JSON(http.StatusOK, sched)
}

func (api *studyPlanApi) bindSchedule(ctx echo.Context) ([]studyplan.ScheduleBlock, error) {
	var data studyplan.ScheduleInput
	if err := ctx.Bind(&data); err != nil {
		return nil, errors.Wrap(err, "binding to ScheduleInput")
	}
	return data.Validate(api.validate)
}

func (api *studyPlanApi) saveSchedule(ctx echo.Context) error {
	blocks, err := api.bindSchedule(ctx)
	if err != nil {
		return err
	}

	sched, err := api.svc.SaveSchedule(ctx.Request().Context(), ctx.Param("id"), blocks)
	if err != nil {
		return errors.Wrap(err, "saving schedule")
	}
	return ctx.JSON(http.StatusOK, sched)
}

func (api *studyPlanApi) validateSchedule(ctx echo.Context) error {
	blocks, err := api.bindSchedule(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ValidateScheduleResponse{Overlap: api.svc.CheckSchedule(blocks)})
}

func (api *studyPlanApi) getStudentBacklogs(ctx echo.Context) error {
	bl, scope, err := api.svc.GetStudentBacklogs(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student backlogs")
	}
	return ctx.JSON(http.StatusOK, StudentBacklogsResponse{Scope: scope, Backlogs: bl})
}

func (api *studyPlanApi) resetStudentBacklogs(ctx echo.Context) error {
	if err := api.svc.ResetStudentBacklogs(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "resetting student backlogs")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studyPlanApi) generate(ctx echo.Context) error {
	var data studyplan.GenerateInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateInput")
	}
	opts, err := data.Validate(api.validate)
	if err != nil {
		return err
	}

	plan, err := api.svc.Generate(ctx.Request().Context(), ctx.Param("id"), opts)
	if err != nil {
		return errors.Wrap(err, "generating plan")
	}
	return ctx.JSON(http.StatusCreated, plan)
}

func (api *studyPlanApi) latestPlan(ctx echo.Context) error {
	plan, err := api.svc.LatestPlan(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting latest plan")
	}
	return ctx.JSON(http.StatusOK, plan)
}

func (api *studyPlanApi) regenerateAll(ctx echo.Context) error {
	var data RegenerateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegenerateRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.RegenerateAll(ctx.Request().Context(), data.Workers, data.Notify)
	if err != nil {
		return errors.Wrap(err, "regenerating plans")
	}
	return ctx.JSON(http.StatusOK, res)
}

type (
	ValidateScheduleResponse struct {
		Overlap bool `json:"overlap"`
	}

	StudentBacklogsResponse struct {
		Scope    string             `json:"scope"`
		Backlogs studyplan.Backlogs `json:"backlogs"`
	}

	RegenerateRequest struct {
		Workers int  `json:"workers" validate:"omitempty,min=1,max=64"`
		Notify  bool `json:"notify"`
	}
)

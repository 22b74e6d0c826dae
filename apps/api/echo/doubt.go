package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core/doubt"
	"github.com/campusmentor/campusmentor/core/user"
)

type doubtApi struct {
	svc *doubt.Service
}

func registerDoubtAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *doubtApi) {
	dg := g.Group("/doubts", jwt)
	dg.GET("/my", api.listMine)
	dg.GET("/assigned", api.listAssigned, requireCapability(user.CapAnswerDoubt))
	dg.POST("", api.submit, requireCapability(user.CapAskDoubt))
	dg.GET("/:id", api.retrieve)
	dg.PATCH("/:id/answer", api.answer, requireCapability(user.CapAnswerDoubt))
}

func doubtList(ds []doubt.Doubt) echo.Map {
	if ds == nil {
		ds = []doubt.Doubt{}
	}
	return echo.Map{"doubts": ds}
}

// Handlers

func (api *doubtApi) listMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ds, err := api.svc.ListMine(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, doubtList(ds))
}

func (api *doubtApi) listAssigned(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ds, err := api.svc.ListAssigned(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, doubtList(ds))
}

func (api *doubtApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data doubt.NewDoubt
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDoubt")
	}
	d, err := api.svc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"doubt": d})
}

// retrieve shows a doubt to its asker and to whoever may answer it.
func (api *doubtApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if d.AskerID != usr.ID && !d.IsResponder(usr.ID) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, echo.Map{"doubt": d})
}

func (api *doubtApi) answer(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data doubt.NewAnswer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnswer")
	}
	d, err := api.svc.Answer(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"doubt": d})
}

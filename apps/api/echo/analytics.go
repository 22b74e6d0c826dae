package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusmentor/campusmentor/core/stats"
	"github.com/campusmentor/campusmentor/core/user"
)

type analyticsApi struct {
	svc *stats.Service
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *analyticsApi) {
	ag := g.Group("/analytics", jwt)
	ag.GET("/junior-stats", api.junior)
	ag.GET("/senior-stats", api.senior)
	ag.GET("/faculty-stats", api.faculty, requireCapability(user.CapViewReports))
}

func (api *analyticsApi) junior(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Junior(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *analyticsApi) senior(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Senior(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *analyticsApi) faculty(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	report, err := api.svc.Faculty(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	if report.TopMentors == nil {
		report.TopMentors = []stats.Mentor{}
	}
	return ctx.JSON(http.StatusOK, report)
}

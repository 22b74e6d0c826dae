package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/certificate"
)

type certificateApi struct {
	svc *certificate.Service
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *certificateApi) {
	cg := g.Group("/certificates", jwt)
	cg.GET("/my", api.mine)
	cg.GET("/download/:id", api.download)
}

// mine returns the caller's certificate, or null when they hold none yet.
func (api *certificateApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	cert, err := api.svc.GetLatest(ctx.Request().Context(), usr.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return ctx.JSON(http.StatusOK, echo.Map{"certificate": nil})
		}
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"certificate": cert})
}

func (api *certificateApi) download(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	_, rc, err := api.svc.Open(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	//goland:noinspection GoUnhandledErrorResult
	defer rc.Close()

	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", api.svc.DownloadName(usr)),
	)
	return ctx.Stream(http.StatusOK, "application/pdf", rc)
}

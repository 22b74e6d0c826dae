package echoapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/submission"
	"github.com/campusmentor/campusmentor/core/user"
)

var kindLabels = map[submission.Kind]string{
	submission.KindMaterial: "Material",
	submission.KindProject:  "Project",
}

type submissionApi struct {
	svc    *submission.Service
	upload uploader
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *submissionApi) {
	moderate := requireCapability(user.CapModerate)
	submit := requireCapability(user.CapSubmitContent)

	mg := g.Group("/materials")
	mg.GET("", api.queryMaterials)
	mg.GET("/my", api.myMaterials, jwt)
	mg.POST("", api.uploadMaterial, jwt, submit)
	mg.GET("/:id", api.retrieveMaterial)
	mg.PATCH("/:id/view", api.viewMaterial)
	mg.PATCH("/:id/approve", api.approve(submission.KindMaterial), jwt, moderate)
	mg.PATCH("/:id/reject", api.reject(submission.KindMaterial), jwt, moderate)

	pg := g.Group("/projects")
	pg.GET("", api.queryProjects)
	pg.GET("/my", api.myProjects, jwt)
	pg.POST("", api.submitProject, jwt, submit)
	pg.GET("/:id", api.retrieveProject)
	pg.PATCH("/:id/approve", api.approve(submission.KindProject), jwt, moderate)
	pg.PATCH("/:id/reject", api.reject(submission.KindProject), jwt, moderate)
}

func materialList(ms []submission.Material) echo.Map {
	if ms == nil {
		ms = []submission.Material{}
	}
	return echo.Map{"materials": ms}
}

func projectList(ps []submission.Project) echo.Map {
	if ps == nil {
		ps = []submission.Project{}
	}
	return echo.Map{"projects": ps}
}

// Materials

func (api *submissionApi) queryMaterials(ctx echo.Context) error {
	var filter submission.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	ms, err := api.svc.QueryMaterials(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, materialList(ms))
}

func (api *submissionApi) myMaterials(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ms, err := api.svc.MyMaterials(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, materialList(ms))
}

func (api *submissionApi) retrieveMaterial(ctx echo.Context) error {
	m, err := api.svc.GetMaterial(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"material": m})
}

func (api *submissionApi) viewMaterial(ctx echo.Context) error {
	if err := api.svc.AddView(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "View recorded."})
}

// uploadMaterial accepts a multipart form with an optional "file" document.
func (api *submissionApi) uploadMaterial(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data submission.NewMaterial
	if isMultipart(ctx) {
		data = submission.NewMaterial{
			Title:       ctx.FormValue("title"),
			Subject:     ctx.FormValue("subject"),
			Department:  ctx.FormValue("department"),
			Description: ctx.FormValue("description"),
		}
		if data.Year, err = formInt(ctx, "year"); err != nil {
			return err
		}
		if data.FileURL, err = api.upload.save(ctx, "file", "materials", documentExts); err != nil {
			return err
		}
	} else if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}

	m, err := api.svc.UploadMaterial(ctx.Request().Context(), usr, data)
	if err != nil {
		api.upload.discard(ctx, data.FileURL)
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"material": m})
}

// Projects

func (api *submissionApi) queryProjects(ctx echo.Context) error {
	var filter submission.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	ps, err := api.svc.QueryProjects(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, projectList(ps))
}

func (api *submissionApi) myProjects(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ps, err := api.svc.MyProjects(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, projectList(ps))
}

func (api *submissionApi) retrieveProject(ctx echo.Context) error {
	p, err := api.svc.GetProject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"project": p})
}

// submitProject accepts either JSON or a multipart form with optional "ppt" and "report" files.
// In a form, team_members is a JSON array or a comma separated list.
func (api *submissionApi) submitProject(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data submission.NewProject
	if isMultipart(ctx) {
		data = submission.NewProject{
			Title:         ctx.FormValue("title"),
			Abstract:      ctx.FormValue("abstract"),
			TechStack:     ctx.FormValue("tech_stack"),
			GithubLink:    ctx.FormValue("github_link"),
			DemoVideoLink: ctx.FormValue("demo_video_link"),
			Department:    ctx.FormValue("department"),
			TeamMembers:   parseTeamMembers(ctx.FormValue("team_members")),
		}
		if data.PPTURL, err = api.upload.save(ctx, "ppt", "projects", slideExts); err != nil {
			return err
		}
		if data.ReportPDFURL, err = api.upload.save(ctx, "report", "projects", reportExts); err != nil {
			api.upload.discard(ctx, data.PPTURL)
			return err
		}
	} else if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}

	p, err := api.svc.SubmitProject(ctx.Request().Context(), usr, data)
	if err != nil {
		api.upload.discard(ctx, data.PPTURL, data.ReportPDFURL)
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"project": p})
}

func parseTeamMembers(raw string) []string {
	raw = core.CleanString(raw)
	if raw == "" {
		return nil
	}
	var members []string
	if err := json.Unmarshal([]byte(raw), &members); err == nil {
		return members
	}
	return strings.Split(raw, ",")
}

// Reviews

func (api *submissionApi) approve(kind submission.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		reviewer, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		if err = api.svc.Approve(ctx.Request().Context(), reviewer, kind, ctx.Param("id")); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, SuccessResponse{Success: kindLabels[kind] + " approved."})
	}
}

func (api *submissionApi) reject(kind submission.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		reviewer, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		var data submission.Rejection
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to Rejection")
		}
		if err = api.svc.Reject(ctx.Request().Context(), reviewer, kind, ctx.Param("id"), data); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, SuccessResponse{Success: kindLabels[kind] + " rejected."})
	}
}

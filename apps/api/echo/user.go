package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/user"
)

type userApi struct {
	svc      *user.Service
	notifSvc *notification.Service
	ldgr     *ledger.Service
	tokens   *TokenIssuer
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *userApi) {
	// un-authed endpoints
	authg := g.Group("/auth")
	authg.POST("/register", api.register)
	authg.POST("/login", api.login)

	// authed endpoints
	authg.GET("/me", api.me, jwt)
	authg.POST("/token-refresh", api.refreshToken, jwt)
	authg.POST("/change-password", api.changePassword, jwt)

	ug := g.Group("/users", jwt)
	ug.GET("", api.query, requireCapability(user.CapModerate))
	ug.PATCH("/:id/toggle-active", api.toggleActive, requireCapability(user.CapModerate))
	ug.GET("/points", api.points)
	ug.GET("/notifications", api.notifications)
	ug.PATCH("/notifications/read-all", api.readAllNotifications)
	ug.PATCH("/notifications/:id/read", api.readNotification)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	token, err := api.tokens.Token(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, User: usr})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		if err == user.ErrInvalidCredentials {
			return errAuthenticationFailed
		}
		return err
	}
	token, err := api.tokens.Token(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.tokens)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": token})
}

func (api *userApi) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = api.svc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password changed successfully."})
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, echo.Map{"users": []user.User{}})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"users": users})
}

func (api *userApi) toggleActive(ctx echo.Context) error {
	moderator, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.ToggleActive(ctx.Request().Context(), moderator, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr})
}

func (api *userApi) points(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	stmt, err := api.ldgr.Statement(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	if stmt.Log == nil {
		stmt.Log = []ledger.Entry{}
	}
	return ctx.JSON(http.StatusOK, stmt)
}

func (api *userApi) notifications(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ns, err := api.notifSvc.List(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	if ns == nil {
		ns = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"notifications": ns})
}

func (api *userApi) readNotification(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.notifSvc.MarkRead(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Notification marked as read."})
}

func (api *userApi) readAllNotifications(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.notifSvc.MarkAllRead(ctx.Request().Context(), usr.ID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "All notifications marked as read."})
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

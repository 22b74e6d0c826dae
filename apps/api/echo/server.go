package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/certificate"
	"github.com/campusmentor/campusmentor/core/doubt"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/stats"
	"github.com/campusmentor/campusmentor/core/submission"
	"github.com/campusmentor/campusmentor/core/user"
	metricsvc "github.com/campusmentor/campusmentor/services/metrics"
)

type (
	// Pinger reports whether the database is reachable.
	Pinger interface {
		PingContext(ctx context.Context) error
	}

	Options struct {
		Conf           *core.Config
		Address        string
		DisableReqLogs bool
		Logger         core.Logger
		Clock          core.Clock
		Validate       *validator.Validate
		Translator     ut.Translator
		// Metrics exposes /metrics and instruments requests when set.
		Metrics *metricsvc.Prometheus
		DB      Pinger
		// Uploads stores submitted files; UploadsDir is served under Conf.Storage.BaseURL when set.
		Uploads    core.ArtifactStore
		UploadsDir string
		// SignalShutdown is called when a handler hits a shutdown error.
		SignalShutdown func()

		UserSvc         *user.Service
		DoubtSvc        *doubt.Service
		SubmissionSvc   *submission.Service
		LedgerSvc       *ledger.Service
		CertificateSvc  *certificate.Service
		NotificationSvc *notification.Service
		StatsSvc        *stats.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts   *Options
		app    *echo.Echo
		tokens *TokenIssuer
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	s := &server{
		opts:   opts,
		app:    echo.New(),
		tokens: NewTokenIssuer(opts.Conf, opts.Clock),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())
	if s.opts.Metrics != nil {
		s.app.Use(s.opts.Metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	if s.opts.UploadsDir != "" {
		s.app.Static(conf.Storage.BaseURL, s.opts.UploadsDir)
	}

	api := s.app.Group("/api")
	api.GET("/health", s.health)
	jwt := jwtMiddleware(s.tokens, s.opts.UserSvc)

	registerUserAPI(api, jwt, &userApi{
		svc:      s.opts.UserSvc,
		notifSvc: s.opts.NotificationSvc,
		ldgr:     s.opts.LedgerSvc,
		tokens:   s.tokens,
		validate: s.opts.Validate,
	})
	registerDoubtAPI(api, jwt, &doubtApi{svc: s.opts.DoubtSvc})
	registerSubmissionAPI(api, jwt, &submissionApi{
		svc:    s.opts.SubmissionSvc,
		upload: uploader{store: s.opts.Uploads, clock: s.opts.Clock},
	})
	registerCertificateAPI(api, jwt, &certificateApi{svc: s.opts.CertificateSvc})
	registerAnalyticsAPI(api, jwt, &analyticsApi{svc: s.opts.StatsSvc})
}

// Start blocks until the server is stopped. A graceful Stop is not an error.
func (s *server) Start() error {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}

func (s *server) health(ctx echo.Context) error {
	if s.opts.DB != nil {
		if err := s.opts.DB.PingContext(ctx.Request().Context()); err != nil {
			return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.opts.Conf.Build})
}

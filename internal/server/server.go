package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/yz4230/deployhook/internal/repository"
	"github.com/yz4230/deployhook/internal/runtime"
	"github.com/yz4230/deployhook/internal/server/routes"
	"github.com/yz4230/deployhook/internal/usecase"
	"github.com/yz4230/deployhook/internal/utils"
	"gorm.io/gorm"
)

type Config struct {
	Port int
	// StatusPort serves the deployment ledger; 0 disables it.
	StatusPort  int
	Logger      zerolog.Logger
	Runtime     runtime.ContainerRuntime
	Credentials runtime.CredentialsProvider
}

type Server struct {
	e        *echo.Echo
	status   *echo.Echo
	config   *Config
	injector *do.Injector
}

func New(config *Config) *Server {
	s := &Server{e: newEcho(config.Logger), config: config}
	if config.StatusPort > 0 {
		s.status = newEcho(config.Logger)
	}
	s.init()
	return s
}

func newEcho(logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HidePort = true
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogRemoteIP:  true,
		LogHost:      true,
		LogMethod:    true,
		LogURI:       true,
		LogUserAgent: true,
		LogStatus:    true,
		LogLatency:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info().
				Str("remote_ip", v.RemoteIP).
				Str("host", v.Host).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("user_agent", v.UserAgent).
				Int("status", v.Status).
				Int64("latency_ms", v.Latency.Milliseconds()).
				Msg("handled request")
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error().Err(err).Bytes("stack", stack).Send()
			return err
		},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := logger.WithContext(req.Context())
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	})
	return e
}

func (s *Server) init() {
	s.injector = do.New()
	s.injectDependencies(s.injector)
	s.registerRoutes(s.injector)
}

func (s *Server) injectDependencies(injector *do.Injector) {
	do.ProvideValue(injector, s.config.Runtime)
	do.ProvideValue(injector, s.config.Credentials)
	do.ProvideValue(injector, utils.NewKeyedMutex())
	do.Provide(injector, func(i *do.Injector) (*gorm.DB, error) {
		return repository.NewSQLiteDB()
	})
	do.Provide(injector, func(i *do.Injector) (repository.DeploymentRepository, error) {
		db := do.MustInvoke[*gorm.DB](i)
		return repository.NewDeploymentRepository(db), nil
	})
	do.Provide(injector, usecase.NewDeployPackageUsecase)
	do.Provide(injector, usecase.NewListDeploymentUsecase)
	do.Provide(injector, usecase.NewGetDeploymentByIdUsecase)
}

func (s *Server) registerRoutes(injector *do.Injector) {
	routes.RegisterWebhook(injector, s.e)
	if s.status != nil {
		routes.RegisterRestAPI(injector, s.status)
	}
}

// Handler exposes the webhook listener, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// StatusHandler exposes the status listener; nil when it is disabled.
func (s *Server) StatusHandler() http.Handler {
	if s.status == nil {
		return nil
	}
	return s.status
}

func (s *Server) Start() error {
	if s.status != nil {
		statusAddr := fmt.Sprintf(":%d", s.config.StatusPort)
		go func() {
			s.config.Logger.Info().Str("addr", statusAddr).Msg("starting status server")
			if err := s.status.Start(statusAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.config.Logger.Error().Err(err).Msg("status server error")
			}
		}()
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.config.Logger.Info().Str("addr", addr).Msg("starting webhook server")
	return s.e.Start(addr)
}

func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.status != nil {
		errs = append(errs, s.status.Shutdown(ctx))
	}
	errs = append(errs, s.e.Shutdown(ctx))
	errs = append(errs, s.injector.Shutdown())
	return errors.Join(errs...)
}

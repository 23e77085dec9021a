package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"karigari.shop/catalog/internal/catalog"
	"karigari.shop/catalog/internal/config"
	"karigari.shop/catalog/internal/db"
	"karigari.shop/catalog/internal/tenant"
)

const tenantHeader = "X-Tenant-ID"

type resolverService interface {
	ResolveProduct(ctx context.Context, req catalog.ProductRequest) (*db.ProductRow, error)
	ResolveVariant(ctx context.Context, productID int64, req catalog.VariantRequest) (*db.VariantRow, error)
}

type ingestService interface {
	SaveIngestionData(ctx context.Context, variantID int64, image catalog.ImageMetadata, listing catalog.ListingMetadata) (*db.ImageRow, error)
	SetDefaultImage(ctx context.Context, imageUUID string, isDefault bool) error
}

type mergeService interface {
	MergeProducts(ctx context.Context, req catalog.MergeRequest) (*catalog.MergeResult, error)
}

type readService interface {
	GetProduct(ctx context.Context, sku string) (*catalog.ProductView, error)
}

// Engine bundles the per-tenant catalog services the handlers call.
type Engine struct {
	Resolver resolverService
	Ingestor ingestService
	Merger   mergeService
	Reader   readService
}

// EngineFactory resolves the engine serving one tenant slug.
type EngineFactory func(ctx context.Context, tenantSlug string) (*Engine, error)

// RegistryEngineFactory builds engines over per-tenant pools from the
// registry. Services are cheap; only the pools are cached.
func RegistryEngineFactory(registry *tenant.Registry, logger zerolog.Logger) EngineFactory {
	return func(ctx context.Context, tenantSlug string) (*Engine, error) {
		pool, err := registry.Pool(ctx, tenantSlug)
		if err != nil {
			return nil, err
		}
		store := catalog.NewStore(pool)
		return &Engine{
			Resolver: catalog.NewResolver(store, logger),
			Ingestor: catalog.NewIngestor(store, logger),
			Merger:   catalog.NewMerger(store, logger),
			Reader:   catalog.NewReader(store),
		}, nil
	}
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg     *config.Config
	engines EngineFactory
	logger  zerolog.Logger
	opts    Options
}

func NewServer(cfg *config.Config, engines EngineFactory, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8086
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		cfg:     cfg,
		engines: engines,
		logger:  logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.engines == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.buildEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("catalog api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("catalog api server stopped")
	return nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	allowOrigins := s.cfg.CORSAllowedOriginsList()
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", apiKeyHeader, tenantHeader},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)

	protected := api.Group("", s.requireAPIKey())
	protected.POST("/ingest", s.handleIngest)
	protected.POST("/merge", s.handleMerge)
	protected.POST("/images/:image_uuid/default", s.handleSetDefaultImage)
	protected.GET("/products/:sku", s.handleGetProduct)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) engineFor(c echo.Context) (*Engine, error) {
	return s.engines(c.Request().Context(), c.Request().Header.Get(tenantHeader))
}

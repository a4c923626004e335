package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"

	"github.com/fmpsc/spa/app/common"
	"github.com/fmpsc/spa/app/config"
	"github.com/fmpsc/spa/app/viewstate"
)

const (
	sessionCookie = "spa_session"
	sessionKey    = "session"
	stateKey      = "viewstate"
)

// errorStatus picks the status code and the message shown to the user.
func errorStatus(err error) (int, string) {
	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	var uve *common.UserVisibleError
	switch {
	case errors.Is(err, common.ErrStale):
		code, msg = http.StatusConflict, err.Error()
	case errors.As(err, &uve):
		code, msg = uve.HttpCode, common.MessageOf(err, http.StatusText(uve.HttpCode))
	case errors.As(err, &he):
		code = he.Code
		msg = http.StatusText(code)
		if he.Message != nil {
			msg = fmt.Sprintf("%v", he.Message)
		}
	}
	return code, msg
}

// wantsJSON reports whether the route answers script calls rather than pages.
func wantsJSON(c echo.Context) bool {
	p := c.Request().URL.Path
	return strings.HasPrefix(p, "/ui/") ||
		strings.HasPrefix(p, "/charts/save/") ||
		p == "/charts/saved" ||
		p == "/activity" ||
		strings.HasPrefix(p, "/files/") ||
		p == "/upload"
}

// sessionMiddleware attaches the browser's view state, issuing a session
// cookie on the first visit.
func sessionMiddleware(sessions *viewstate.Sessions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var id string
			if cookie, err := c.Cookie(sessionCookie); err == nil && cookie.Value != "" {
				id = cookie.Value
			} else {
				id = viewstate.NewSessionID()
				c.SetCookie(&http.Cookie{
					Name:     sessionCookie,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(sessionKey, id)
			c.Set(stateKey, sessions.Get(id))
			return next(c)
		}
	}
}

func sessionOf(c echo.Context) string {
	id, _ := c.Get(sessionKey).(string)
	return id
}

func stateOf(c echo.Context) *viewstate.ViewState {
	if st, ok := c.Get(stateKey).(*viewstate.ViewState); ok {
		return st
	}
	return viewstate.New()
}

// NewEcho builds the router with all middleware and routes, without
// listening.
func NewEcho(controller *DashboardController, conf *config.DashboardConfig, serverConf config.ServerRuntimeConfig) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code, msg := errorStatus(err)
		if code >= http.StatusInternalServerError {
			c.Logger().Error(err)
		}
		if c.Response().Committed {
			return
		}

		var respErr error
		switch {
		case c.Request().Method == http.MethodHead:
			respErr = c.NoContent(code)
		case wantsJSON(c):
			respErr = c.JSON(code, map[string]any{"error": msg, "stale": code == http.StatusConflict})
		default:
			respErr = c.Render(code, "error", msg)
		}
		if respErr != nil {
			c.Logger().Error(respErr)
		}
	}
	e.HideBanner = true
	if serverConf.CertDir != "" {
		e.Pre(middleware.HTTPSRedirect())
	}
	e.Pre(middleware.RemoveTrailingSlash())
	e.Pre(echo.MiddlewareFunc(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			url := req.URL
			if serverConf.AcmeEnabled && req.Host != conf.Hostnames[0] {
				// Redirect
				url.Host = conf.Hostnames[0]
				slog.Info("redirect to canonical hostname", "original_hostname", req.Host)
				return c.Redirect(http.StatusPermanentRedirect, url.String())
			}
			return next(c)
		}
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	var identifierExtractor middleware.Extractor

	if serverConf.BehindLoadBalancer {
		identifierExtractor = func(ctx echo.Context) (string, error) {
			id := ctx.RealIP()
			return id, nil
		}
	} else {
		identifierExtractor = func(ctx echo.Context) (string, error) {
			id := ctx.Request().RemoteAddr
			return id, nil
		}
	}

	// configure rate limiting if enabled
	if serverConf.RateLimit > 0 {
		limiterConf := middleware.RateLimiterConfig{
			Skipper: middleware.DefaultSkipper,
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(serverConf.RateLimit),
					Burst:     3 * serverConf.RateLimit,
					ExpiresIn: 3 * time.Minute,
				},
			),
			IdentifierExtractor: identifierExtractor,
			ErrorHandler: func(context echo.Context, err error) error {
				return context.String(http.StatusForbidden, "Forbidden")
			},
			DenyHandler: func(context echo.Context, identifier string, err error) error {
				return context.String(http.StatusTooManyRequests, "Too Many Requests")
			},
		}

		e.Use(middleware.RateLimiterWithConfig(limiterConf))
	}

	if serverConf.GzipLevel != 0 {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: serverConf.GzipLevel, MinLength: 512}))
	}

	if conf.TimeoutSeconds != 0 {
		e.Use(middleware.ContextTimeout(time.Duration(conf.TimeoutSeconds) * time.Second))
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogRemoteIP: true,
		LogLatency:  conf.LogLatency,
		HandleError: true, // forwards error to the global error handler, so it can decide appropriate status code
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.LogAttrs(context.Background(), slog.LevelInfo, "REQUEST",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
					slog.String("remote_ip", v.RemoteIP),
				)
			} else {
				logger.LogAttrs(context.Background(), slog.LevelError, "REQUEST_ERROR",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("err", v.Error.Error()),
					slog.String("remote_ip", v.RemoteIP),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
				)
			}
			return nil
		},
	}))

	staticDir, err := fs.Sub(staticFs, "static")
	if err != nil {
		e.Logger.Fatal(err)
	}

	assets, err := NewAssetFS(staticDir)
	if err != nil {
		e.Logger.Fatal(err)
	}

	e.Renderer = NewTemplateRenderer(conf, assets)

	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", assets)))

	app := e.Group("", sessionMiddleware(controller.sessions))
	app.GET("/", controller.GetHome)
	app.GET("/quem-somos", controller.GetAbout)
	e.GET("/healthz", controller.GetHealth)
	app.POST("/upload", controller.PostUpload)
	app.GET("/files/search", controller.SearchFiles)
	app.POST("/ui/file", controller.PostFile)
	app.POST("/ui/chart", controller.PostChart)
	app.POST("/ui/compare", controller.PostCompare)
	app.POST("/ui/full", controller.PostFull)
	app.POST("/ui/map", controller.PostMap)
	app.POST("/ui/map/close", controller.PostMapClose)
	app.GET("/export/:plot", controller.GetExport)
	app.GET("/export-all", controller.GetExportAll)
	app.POST("/charts/save/:plot", controller.PostSaveChart)
	app.POST("/ui/exported", controller.PostExported)
	app.GET("/activity", controller.ListActivity)
	app.GET("/charts/saved", controller.ListSavedCharts)
	app.GET("/charts/saved/:name", controller.GetSavedChart).Name = "saved-chart"

	return e
}

func StartServer(controller *DashboardController, conf *config.DashboardConfig, serverConf config.ServerRuntimeConfig) {
	e := NewEcho(controller, conf, serverConf)

	host := serverConf.Addr
	port := serverConf.Port
	certDir := serverConf.CertDir
	acme := serverConf.AcmeEnabled

	addr := fmt.Sprintf("%s:%d", host, port)

	if certDir != "" {
		if acme {
			slog.Info("using TLS with ACME", "dir", certDir)
			e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(conf.Hostnames...)
			e.AutoTLSManager.Cache = autocert.DirCache(certDir)
			e.Logger.Fatal(e.StartAutoTLS(addr))
		} else {
			slog.Info("using TLS with certDir", "dir", certDir)
			e.Logger.Fatal(e.StartTLS(addr, path.Join(certDir, "fullchain.pem"), path.Join(certDir, "privkey.pem")))
		}
	} else {
		e.Logger.Fatal(e.Start(addr))
	}
}

package app

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/gosampling/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkglog"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/gosampling/internal/pkg/pkguid"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	configPath string
	config     pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	snowflake pkguid.NumberID
	goroutine *pkgroutine.Manager

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	// closers run in registration order on Stop
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New bootstraps the service. An empty configPath falls back to the default location.
func New(configPath string) *App {
	pkglog.InitLogging("info")

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:        ctx,
		cancel:     cancel,
		configPath: configPath,
	}

	app.initConfig()
	app.initLibraries()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}

package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/gosampling/internal/sampling"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.sampling.enabled") {
		closer, err := sampling.New(sampling.Dependency{
			Config:    a.config,
			Router:    a.router,
			Goroutine: a.goroutine,
			Context:   a.ctx,
			ID:        a.uuid,
			RunID:     a.snowflake,
		})
		if err != nil {
			slog.Error("failed to init module sampling", "error", err)
			os.Exit(1)
		}
		if closer != nil {
			a.addCloser("Sampling", closer)
		}
	}
}

package app

import (
	"context"
	"fmt"

	"sitebuilder/internal/httpapi"
)

// Serve runs the HTTP API until ctx is cancelled. The block library watcher
// and the publish schedule run alongside it when enabled in the config.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.Blocks.Watch {
		if err := a.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("watch blocks: %w", err)
		}
	} else if n, err := a.Watcher.ImportAll(ctx); err != nil {
		a.log.WithError(err).Warn("block library import failed")
	} else if n > 0 {
		a.log.WithField("blocks", n).Info("block library imported")
	}

	if a.Config.Publish.Schedule {
		if _, err := a.Publish.StartSchedule(ctx); err != nil {
			return fmt.Errorf("publish schedule: %w", err)
		}
	}

	api := httpapi.New(httpapi.Deps{
		Sites:   a.Sites,
		Blocks:  a.Blocks,
		Editor:  a.Editor,
		Publish: a.Publish,
	})
	return api.ListenAndServe(ctx, a.Config.HTTP.Addr)
}

package app

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"augur/internal/agent"
	"augur/internal/config"
	"augur/internal/gateway/lobby"
	"augur/internal/logger"
	livehttp "augur/internal/transport/http/live"
)

// UpdateSource produces lifecycle updates until ctx is done, then closes the channel.
type UpdateSource interface {
	Updates(ctx context.Context) <-chan lobby.GameUpdate
}

// App wires the lobby socket, the lifecycle handler and the status API.
type App struct {
	cfg      *config.Config
	updates  UpdateSource
	handler  *agent.Handler
	liveHTTP *livehttp.Server
	closers  []io.Closer
	Summary  *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer closeAll(a.closers)
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		err := a.handler.Run(ctx, a.updates.Updates(ctx))
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	return group.Wait()
}

// Handler exposes the lifecycle handler (status snapshots in tests).
func (a *App) Handler() *agent.Handler {
	if a == nil {
		return nil
	}
	return a.handler
}

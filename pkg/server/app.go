package server

import (
	"context"
	"errors"
	"io"
	"os/signal"
	"syscall"
	"time"

	xhttp "PolyChannel/pkg/http"
	applogger "PolyChannel/pkg/logger"
)

// Loop is a long-running job that returns once ctx is done.
type Loop interface {
	Loop(ctx context.Context) error
}

// App runs the scheduler loop next to the HTTP server and tears both down on SIGINT/SIGTERM.
type App struct {
	loop            Loop
	httpServer      *xhttp.Server
	closers         []io.Closer
	shutdownTimeout time.Duration
	l               *applogger.Logger
}

// New creates a new App instance. httpServer may be nil.
func New(loop Loop, httpServer *xhttp.Server, shutdownTimeout time.Duration, l *applogger.Logger, closers ...io.Closer) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		loop:            loop,
		httpServer:      httpServer,
		closers:         closers,
		shutdownTimeout: shutdownTimeout,
		l:               l.Component("app"),
	}
}

// Run blocks until an interrupt arrives or the loop stops on its own.
func (a *App) Run(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.l.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	loopErr := make(chan error, 1)
	go func() { loopErr <- a.loop.Loop(ctx) }()
	a.l.Info("daemon started")

	var err error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
		err = <-loopErr
	case err = <-loopErr:
		a.l.Warn("scheduler loop exited", applogger.Error(err))
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	a.shutdown()
	return err
}

func (a *App) shutdown() {
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.l.Warn("close error", applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
}

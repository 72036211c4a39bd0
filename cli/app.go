// Package cli implements leavectl, the operator tool that works directly on
// the configured datastore.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/warp/leave-portal/config"
	"github.com/warp/leave-portal/leave"
	"github.com/warp/leave-portal/store"
)

type App struct {
	Cfg        config.Config
	CfgPath    string
	JSONOutput bool
	Verbose    bool
	Stdout     io.Writer
	Stderr     io.Writer
	Stdin      io.Reader

	// Now overrides the clock, for tests.
	Now func() time.Time

	backend store.Backend
	svc     *leave.Service
}

func NewApp() *App {
	return &App{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Stdin:  os.Stdin,
	}
}

func (a *App) LoadConfig() error {
	cfg, err := config.Load(a.CfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.Cfg = cfg
	return nil
}

// Service opens the datastore on first use.
func (a *App) Service() (*leave.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	level := slog.LevelWarn
	if a.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{Level: level}))

	backend, err := store.Open(a.Cfg, logger)
	if err != nil {
		return nil, err
	}
	loc, err := config.ResolveTimezone(a.Cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}

	svc := leave.NewService(backend, a.Cfg.Policy, logger)
	svc.Location = loc
	if a.Now != nil {
		svc.Now = a.Now
	}
	a.backend, a.svc = backend, svc
	return svc, nil
}

// UseService injects an already opened service, for tests.
func (a *App) UseService(svc *leave.Service) {
	a.svc = svc
}

func (a *App) Close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend, a.svc = nil, nil
	return err
}

func (a *App) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// write prints human for terminals, payload with --json.
func (a *App) write(human string, payload any) error {
	if a.JSONOutput {
		enc := json.NewEncoder(a.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	_, err := fmt.Fprintln(a.Stdout, human)
	return err
}

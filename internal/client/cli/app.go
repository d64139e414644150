// Package cli implements the command-line client:
//
//	carelink-client login     authenticate and save the session
//	carelink-client status    show session state and offline access
//	carelink-client token     print a valid access token
//	carelink-client logout    revoke the device session
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/carelink-app/carelink/internal/client/api"
	"github.com/carelink-app/carelink/internal/client/config"
	"github.com/carelink-app/carelink/internal/client/session"
	"github.com/carelink-app/carelink/internal/logging"
)

type App struct {
	cfg     *config.Config
	manager *session.Manager
	out     io.Writer
	in      *bufio.Reader
}

func NewApp(cfg *config.Config) (*App, error) {
	deviceID, err := ensureDeviceID(cfg)
	if err != nil {
		return nil, fmt.Errorf("device id error: %w", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	client := api.NewClient(cfg.ServerBaseURL, cfg.RequestTimeout)
	store := session.NewFileStore(cfg.SessionFile)

	manager := session.NewManager(client, store, logger, session.Config{
		DeviceID:     deviceID,
		ExpiryBuffer: cfg.ExpiryBuffer,
		OfflineGrace: cfg.OfflineGrace,
	})

	return &App{
		cfg:     cfg,
		manager: manager,
		out:     os.Stdout,
		in:      bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context, args []string) error {
	if err := a.manager.Restore(); err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
		fmt.Fprintf(a.out, "warning: could not restore session: %v\n", err)
	}

	cmd := "status"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "login":
		return a.cmdLogin(ctx)
	case "logout":
		return a.cmdLogout(ctx)
	case "token":
		return a.cmdToken(ctx)
	case "status":
		return a.cmdStatus()
	default:
		return fmt.Errorf("unknown command %q (expected login, logout, token or status)", cmd)
	}
}

func (a *App) cmdLogin(ctx context.Context) error {
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	if err := a.manager.Login(ctx, email, string(password)); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func (a *App) cmdLogout(ctx context.Context) error {
	if err := a.manager.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) cmdToken(ctx context.Context) error {
	token, err := a.manager.GetAccessToken(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, token)
	return nil
}

func (a *App) cmdStatus() error {
	fmt.Fprintf(a.out, "state: %s\n", a.manager.State())
	ok, reason := a.manager.CheckOfflineAccess()
	fmt.Fprintf(a.out, "offline access: %v (%s)\n", ok, reason)
	return nil
}

// ensureDeviceID returns the configured device id, minting and persisting
// one next to the session file on first run. The id must survive restarts:
// refresh tokens are bound to it.
func ensureDeviceID(cfg *config.Config) (string, error) {
	if cfg.DeviceID != "" {
		return cfg.DeviceID, nil
	}

	path := filepath.Join(filepath.Dir(cfg.SessionFile), "device-id")
	if data, err := os.ReadFile(path); err == nil {
		if id, err := uuid.ParseBytes(data); err == nil {
			return id.String(), nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", err
	}
	return id, nil
}

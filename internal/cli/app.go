package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"replacechain/internal/config"
	"replacechain/internal/core"
	"replacechain/pkg/domain"
)

var errInvalidConfig = errors.New("invalid configuration")

// app is the per-invocation wiring: configuration, logger, store and manager.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   domain.StateStore
	manager *core.Manager
	closers []io.Closer
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	v := config.NewViper()
	if opts.StorageDriver != "" {
		v.Set("storage.driver", opts.StorageDriver)
	}
	if err := config.ReadFile(v, opts.ConfigFile); err != nil {
		return config.Config{}, fmt.Errorf("%w: %w", errInvalidConfig, err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: %w", errInvalidConfig, err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openApp loads configuration, opens the configured store and restores the
// manager from it. extra options are applied after the defaults.
func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions, extra ...core.Option) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	a := &app{cfg: cfg, logger: newLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)}

	managerOpts := []core.Option{
		core.WithLogger(a.logger),
		core.WithObserver(core.NewLogObserver(a.logger)),
	}
	if opts.TraceFile != "" {
		f, err := os.OpenFile(opts.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "open trace file", err)
		}
		a.closers = append(a.closers, f)
		managerOpts = append(managerOpts, core.WithTracer(core.NewJSONTracer(f)))
	}
	managerOpts = append(managerOpts, extra...)

	store, err := core.OpenStateStore(ctx, cfg, a.logger)
	if err != nil {
		a.close()
		return nil, WrapExitError(ExitFailure, "open state store", err)
	}
	a.store = store
	a.closers = append(a.closers, store)

	manager, err := core.NewManager(ctx, store, managerOpts...)
	if err != nil {
		a.close()
		return nil, WrapExitError(ExitFailure, "restore state", err)
	}
	a.manager = manager
	a.logger.Debug("state restored", "driver", manager.Driver(), "products", len(manager.ListProducts()))
	return a, nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withApp runs fn against a freshly opened app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error, extra ...core.Option) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, opts, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = WrapExitError(ExitFailure, "close state store", cerr)
		}
	}()
	return fn(ctx, a)
}

// operationError maps manager errors onto exit codes.
func operationError(message string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if errors.Is(err, domain.ErrEmptyProductName) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// errorCode picks the JSON error code for err.
func errorCode(err error) string {
	var (
		persist   *domain.PersistError
		malformed *domain.MalformedStateError
	)
	switch {
	case errors.Is(err, errInvalidConfig):
		return ErrCodeConfig
	case errors.As(err, &persist):
		return ErrCodePersistence
	case errors.As(err, &malformed):
		return ErrCodeMalformed
	case GetExitCode(err) == ExitCommandError:
		return ErrCodeInput
	default:
		return ErrCodeGeneric
	}
}

func fileError(action, path string, err error) error {
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s %s", action, path), err)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wurt83ow/locsync-client/pkg/appcontext"
	"github.com/wurt83ow/locsync-client/pkg/bdkeeper"
	"github.com/wurt83ow/locsync-client/pkg/bgsync"
	"github.com/wurt83ow/locsync-client/pkg/config"
	"github.com/wurt83ow/locsync-client/pkg/encription"
	"github.com/wurt83ow/locsync-client/pkg/gksync"
	"github.com/wurt83ow/locsync-client/pkg/logger"
	"github.com/wurt83ow/locsync-client/pkg/netstate"
	"github.com/wurt83ow/locsync-client/pkg/services"
	"github.com/wurt83ow/locsync-client/pkg/storage"
	"github.com/wurt83ow/locsync-client/pkg/syncinfo"
)

type app struct {
	opts    *config.Options
	log     *logrus.Logger
	keeper  *bdkeeper.Keeper
	cache   storage.Cache
	gate    *syncinfo.Gate
	monitor *netstate.Monitor
	service *services.Service
	trigger *bgsync.Trigger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, current := newRootCmd()
	if err := execute(ctx, root, current); err != nil {
		stop()
		os.Exit(1)
	}
}

// execute runs the command tree and releases the app whatever the outcome.
func execute(ctx context.Context, root *cobra.Command, current func() *app) error {
	err := root.ExecuteContext(ctx)
	if a := current(); a != nil {
		a.close()
	}
	return err
}

func newRootCmd() (*cobra.Command, func() *app) {
	opts := config.NewConfig()
	var a *app

	root := &cobra.Command{
		Use:          "locsync",
		Short:        "Offline-resilient location reporting client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Resolve(cmd.Flags()); err != nil {
				return err
			}
			var err error
			a, err = newApp(cmd.Context(), opts)
			return err
		},
	}
	opts.BindFlags(root.PersistentFlags())

	appRef := func() *app { return a }
	root.AddCommand(
		newSubmitCmd(appRef),
		newDrainCmd(appRef),
		newLatestCmd(appRef),
		newStatusCmd(appRef),
		newRunCmd(appRef),
		newShellCmd(appRef),
	)
	return root, appRef
}

func newApp(ctx context.Context, opts *config.Options) (*app, error) {
	log, err := logger.NewLogger(opts.GetLogLevel(), opts.LogFilePath, opts.LogMaxAgeDays)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	keeperOpts := []bdkeeper.Option{bdkeeper.WithLogger(log)}
	if opts.QueueKey != "" {
		keeperOpts = append(keeperOpts, bdkeeper.WithCodec(encription.NewEnc(opts.QueueKey)))
	}
	keeper := bdkeeper.New(opts.DBPath, keeperOpts...)

	cache, err := storage.Open(opts.CacheDriver, opts.Cache)
	if err != nil {
		log.WithError(err).Warnf("cache %q unavailable, falling back to memory", opts.CacheDriver)
		cache = storage.New()
	}

	gate := syncinfo.NewGate(cache, keeper, opts.Cooldown, syncinfo.WithLogger(log))

	remote, err := gksync.NewSync(opts.ServerURL,
		gksync.WithHTTPClient(&http.Client{}),
		gksync.WithRequestEditorFn(tagRunID),
	)
	if err != nil {
		keeper.Close()
		cache.Close()
		return nil, fmt.Errorf("failed to create sync client: %w", err)
	}

	probe, err := netstate.DialProbe(opts.ServerURL, opts.RequestTimeout)
	if err != nil {
		keeper.Close()
		cache.Close()
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	monitor := netstate.NewMonitor(probe, false, log)
	monitor.Check(ctx)

	service := services.NewServices(keeper, remote, gate, monitor,
		services.WithRequestTimeout(opts.RequestTimeout),
		services.WithLogger(log),
	)
	trigger := bgsync.New(service, monitor, log)
	service.SetRegistrar(trigger)
	monitor.Subscribe(func(online bool) {
		trigger.ConnectivityChanged(ctx, online)
	})

	return &app{
		opts:    opts,
		log:     log,
		keeper:  keeper,
		cache:   cache,
		gate:    gate,
		monitor: monitor,
		service: service,
		trigger: trigger,
	}, nil
}

// tagRunID lets the server correlate the writes of one drain run.
func tagRunID(ctx context.Context, req *http.Request) error {
	if id, ok := appcontext.GetRunID(ctx); ok {
		req.Header.Set("X-Run-ID", id)
	}
	return nil
}

func (a *app) close() {
	a.trigger.Stop()
	if err := a.cache.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close cache")
	}
	if err := a.keeper.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close local queue")
	}
}

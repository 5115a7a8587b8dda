package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wurt83ow/locsync-client/pkg/bgsync"
	"github.com/wurt83ow/locsync-client/pkg/client"
)

func newSubmitCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <lat> <lng>",
		Short: "Record one position sample",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if a.opts.OwnerID == "" {
				return errors.New("no user set, use --user or USER_ID")
			}
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude: %w", err)
			}
			lng, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude: %w", err)
			}

			out := a.service.Submit(cmd.Context(), a.opts.OwnerID, lat, lng)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newDrainCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Send queued samples to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if !a.monitor.Online() {
				return errors.New("server unreachable, samples stay queued")
			}
			return a.trigger.Dispatch(cmd.Context(), bgsync.TagLocationSync)
		},
	}
}

func newLatestCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the latest location of every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := app().service.LatestLocations(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		},
	}
}

func newStatusCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print queue size, watermark and connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app().service.Status(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}

// newRunCmd runs the host loop: connectivity probing, reconnect-triggered
// and periodic sync, until interrupted.
func newRunCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the local queue in sync in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()

			if err := startBackground(ctx, a); err != nil {
				return err
			}
			go a.monitor.Run(ctx, a.opts.ProbeInterval)

			a.log.WithField("server", a.opts.ServerURL).Info("location sync running")
			<-ctx.Done()
			a.log.Info("shutting down")
			return nil
		},
	}
}

func newShellCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell simulating the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := startBackground(cmd.Context(), a); err != nil {
				return err
			}

			sh, err := client.NewShell(a.service, a.trigger, a.monitor.Set, a.opts.OwnerID)
			if err != nil {
				return err
			}
			defer sh.Close()

			sh.Start(cmd.Context())
			return nil
		},
	}
}

// startBackground registers a sync for records left from an earlier run and
// schedules the periodic wake.
func startBackground(ctx context.Context, a *app) error {
	n, err := a.keeper.Count(ctx)
	if err != nil {
		a.log.WithError(err).Warn("failed to count queued locations")
	} else if n > 0 {
		a.log.WithField("queued", n).Info("queued locations found")
		if err := a.trigger.Register(bgsync.TagLocationSync); err != nil {
			return err
		}
	}

	return a.trigger.Start(ctx, a.opts.SyncSchedule)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/msomdec/gymtrack/internal/config"
	"github.com/msomdec/gymtrack/internal/statusui"
	"github.com/msomdec/gymtrack/internal/syncengine"
)

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Open the local mirror and seed reference data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				counts, err := a.store.CatalogCounts(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{"state": a.engine.State().String(), "catalog": counts}
				return a.print(out, func() string {
					if a.engine.State() != syncengine.StateReady {
						return warn.Render("local mirror opened without reference data; retry while online")
					}
					return good.Render("ready") + muted.Render(fmt.Sprintf(" %d exercises, %d groups, %d schedule days",
						counts.Exercises, counts.ExerciseGroups, counts.Schedule))
				})
			})
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and pending local changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				a.monitor.Check(ctx)
				st := a.engine.Status(ctx)
				return a.print(st, func() string { return renderStatus(st) })
			})
		},
	}
}

func newPullCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch server changes since the last pull",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				res, err := a.engine.Pull(ctx)
				if err != nil {
					return err
				}
				return a.print(res, func() string { return renderPull(res) })
			})
		},
	}
}

func newPushCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Send pending local changes to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				res, err := a.engine.Push(ctx)
				if err != nil {
					return err
				}
				return a.print(res, func() string { return renderPush(res.Synced, res.Failed) })
			})
		},
	}
}

func newSyncCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending changes, then pull",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				res, err := a.engine.SyncNow(ctx)
				if err != nil {
					return err
				}
				return a.print(res, func() string {
					return renderPush(res.Push.Synced, res.Push.Failed) + "\n" + renderPull(res.Pull)
				})
			})
		},
	}
}

func renderPull(res *syncengine.PullResult) string {
	return title.Render("pulled") + fmt.Sprintf(" %d received, %d applied, %d deleted ", res.Received, res.Applied, res.Deleted) +
		muted.Render("watermark "+string(res.Watermark))
}

func renderPush(synced, failed int) string {
	s := title.Render("pushed") + fmt.Sprintf(" %d synced", synced)
	if failed > 0 {
		s += ", " + warn.Render(fmt.Sprintf("%d rejected", failed))
	}
	return s
}

func newRunCmd(opts *options) *cobra.Command {
	var statusAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the mirror in sync until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if statusAddr == "" {
				statusAddr = opts.cfg.StatusAddr
			}
			return withApp(cmd, opts, true, func(ctx context.Context, a *app) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				config.Watch(opts.v, a.logger, func(c *config.Config) {
					a.engine.SetPullInterval(c.PullInterval)
				})

				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return a.engine.Run(ctx) })
				if statusAddr != "" {
					g.Go(func() error { return statusui.Serve(ctx, statusAddr, a.engine, a.logger) })
				}
				a.logger.Info("sync running", "pull_interval", a.engine.PullInterval(), "status_addr", statusAddr)

				if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "serve the sync status page on this address, e.g. 127.0.0.1:7070")
	return cmd
}

func newResetCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the local mirror, its persisted image and the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset discards unsynced changes; pass --yes to confirm")
			}
			return withApp(cmd, opts, false, func(ctx context.Context, a *app) error {
				if err := a.store.Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, warn.Render("local data reset"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

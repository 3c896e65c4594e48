package main

import (
	"context"
	"errors"
	"fmt"
	"mediumpilot/internal/pipeline"
	"mediumpilot/internal/registry"
	"mediumpilot/internal/scheduler"
	"mediumpilot/internal/server"
	"time"

	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one publish cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			cycleCtx, cancel := context.WithTimeout(ctx, a.cfg.CycleTimeout)
			defer cancel()

			report, err := a.orchestrator.RunCycle(cycleCtx)
			if err != nil {
				return fmt.Errorf("run cycle: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "published: %d, skipped: %d, failed: %d\n",
				report.Count(pipeline.StatusPublished),
				report.Count(pipeline.StatusSkipped),
				report.Count(pipeline.StatusFailed))

			return err
		},
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the share and register API, with an optional in-process cron",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			start := time.Now()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if a.cfg.CycleSpec != "" {
				loc, locErr := a.cfg.Location()
				if locErr != nil {
					return locErr
				}

				sched := scheduler.New(ctx, a.cfg.CycleSpec, loc, a.orchestrator, a.cfg.CycleTimeout, a.log)
				if err = sched.Start(); err != nil {
					return fmt.Errorf("start scheduler %q: %w", a.cfg.CycleSpec, err)
				}
				defer sched.Stop()
				a.log.InfoContext(ctx, "Scheduler is started",
					"spec", a.cfg.CycleSpec,
					"timezone", loc.String())
			}

			srv := server.New(a.orchestrator, a.registry, a.cfg.CycleTimeout, a.log)
			a.log.InfoContext(ctx, "Server is started",
				"addr", a.cfg.ListenAddr)

			if err = srv.ListenAndServe(ctx, a.cfg.ListenAddr); err != nil {
				return fmt.Errorf("serve %s: %w", a.cfg.ListenAddr, err)
			}

			a.log.InfoContext(ctx, "Exiting...",
				"uptimeSeconds", time.Since(start).Seconds())

			return nil
		},
	}
}

func newRegisterCommand() *cobra.Command {
	var reg registry.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register or update a user's feed and LinkedIn credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			userID, err := a.registry.Register(ctx, reg)
			if errors.Is(err, registry.ErrMissingUserID) || errors.Is(err, registry.ErrMissingFields) {
				return fmt.Errorf("%w (see --help)", err)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", userID)

			return err
		},
	}

	cmd.Flags().StringVar(&reg.UserID, "user", "", "user ID")
	cmd.Flags().StringVar(&reg.FeedURL, "feed", "", "RSS/Atom feed URL")
	cmd.Flags().StringVar(&reg.SocialToken, "token", "", "LinkedIn access token")
	cmd.Flags().StringVar(&reg.SocialActorID, "actor", "", "LinkedIn member ID")

	return cmd
}

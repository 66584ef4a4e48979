package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shelter-media/internal/media"
)

func newExpireCommand(opts *rootOptions) *cobra.Command {
	var today string

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Remove media past its retain-until date and expired documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(today)
			if err != nil {
				return err
			}

			env, err := openEnv(cmd.Context(), !opts.noLock)
			if err != nil {
				return err
			}
			defer env.close()

			res, err := env.svc.ExpirySweep(cmd.Context(), day)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Expired by retain date: %d\n", res.RetainUntil)
			fmt.Fprintf(out, "Expired documents:      %d\n", res.Documents)
			return nil
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "Treat this date (YYYY-MM-DD) as today")
	return cmd
}

type bulkFunc func(ctx context.Context, svc *media.Service) (media.BulkResult, error)

func scaleImages(ctx context.Context, svc *media.Service) (media.BulkResult, error) {
	return svc.ScaleAllAnimalImages(ctx)
}

func scalePDFs(ctx context.Context, svc *media.Service) (media.BulkResult, error) {
	return svc.ScaleAllPDFs(ctx)
}

func scaleODTs(ctx context.Context, svc *media.Service) (media.BulkResult, error) {
	return svc.ScaleAllODTs(ctx)
}

func newScaleCommand(opts *rootOptions, use, short string, run bulkFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context(), !opts.noLock)
			if err != nil {
				return err
			}
			defer env.close()

			res, err := run(cmd.Context(), env.svc)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd, res)
			}
			printBulk(cmd, res)
			return nil
		},
	}
}

func printBulk(cmd *cobra.Command, res media.BulkResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", res.Job)
	fmt.Fprintf(out, "Total:    %d\n", res.Total)
	fmt.Fprintf(out, "Updated:  %d\n", res.Updated)
	fmt.Fprintf(out, "Skipped:  %d\n", res.Skipped)
	fmt.Fprintf(out, "Failed:   %d\n", res.Failed)
	fmt.Fprintf(out, "Duration: %s\n", res.Duration.Round(time.Millisecond))
}

func newVacuumCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the media database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context(), !opts.noLock)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.db.Vacuum(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database vacuumed.")
			return nil
		},
	}
}

// parseDay returns midnight of s in local time, or of the current day when
// s is empty.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	day, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --today %q, want YYYY-MM-DD", s)
	}
	return day, nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"contest-ranking-service/internal/config"
	"contest-ranking-service/internal/domain"
	"contest-ranking-service/internal/logger"
	"github.com/spf13/cobra"
)

// NewRebuildCmd recomputes leaderboards from the ledger and prints the top of each.
func NewRebuildCmd(configPath *string) *cobra.Command {
	var (
		window string
		top    int
	)
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute leaderboards from the score ledger and republish them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd.Context(), cmd.OutOrStdout(), *configPath, window, top)
		},
	}
	cmd.Flags().StringVar(&window, "window", "", "only print this window (global, weekly, monthly)")
	cmd.Flags().IntVar(&top, "top", 10, "rows to print per window")
	return cmd
}

func runRebuild(ctx context.Context, out io.Writer, configPath, window string, top int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	flush, err := logger.Init(cfg.Log.Environment, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer flush()

	kinds := domain.WindowKinds()
	if window != "" {
		kind, err := domain.ParseWindowKind(window)
		if err != nil {
			return err
		}
		kinds = []domain.WindowKind{kind}
	}

	eng, cleanup, err := buildEngine(ctx, cfg)
	defer cleanup()
	if err != nil {
		return err
	}
	if !eng.durable {
		return fmt.Errorf("rebuild needs postgres.url: the in-memory ledger is empty")
	}
	if err := eng.board.RebuildAll(ctx); err != nil {
		return err
	}
	for _, kind := range kinds {
		lb, err := eng.board.Snapshot(ctx, kind, 0, top)
		if err != nil {
			return err
		}
		printLeaderboard(out, lb)
		if eng.sink != nil {
			if err := printMirror(ctx, out, eng.sink, lb); err != nil {
				return err
			}
		}
	}
	return nil
}

// printMirror reports what Redis holds for the window after the rebuild. The
// mirror may come from a running server that holds the mirror lock.
func printMirror(ctx context.Context, out io.Writer, sink mirrorReader, rebuilt domain.Leaderboard) error {
	latest, ok, err := sink.LatestSnapshot(ctx, rebuilt.Window)
	if err != nil {
		return fmt.Errorf("read %s mirror: %w", rebuilt.Window, err)
	}
	switch {
	case !ok:
		fmt.Fprintf(out, "redis mirror: empty\n\n")
	case latest.Version == rebuilt.Version && latest.TotalCount == rebuilt.TotalCount:
		fmt.Fprintf(out, "redis mirror: version %d published by this rebuild\n\n", latest.Version)
	default:
		fmt.Fprintf(out, "redis mirror: version %d, %d users (owned by another instance)\n\n", latest.Version, latest.TotalCount)
	}
	return nil
}

type mirrorReader interface {
	LatestSnapshot(ctx context.Context, window domain.WindowKind) (domain.Leaderboard, bool, error)
}

func printLeaderboard(out io.Writer, lb domain.Leaderboard) {
	fmt.Fprintf(out, "%s leaderboard (version %d, %d users)\n", lb.Window, lb.Version, lb.TotalCount)
	if !lb.WindowStart.IsZero() {
		fmt.Fprintf(out, "window %s .. %s\n", lb.WindowStart.Format("2006-01-02"), lb.WindowEnd.Format("2006-01-02"))
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tUSER\tNAME\tTOTAL")
	for _, e := range lb.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", e.Rank, e.UserID, e.DisplayName, e.Total)
	}
	_ = tw.Flush()
	fmt.Fprintln(out)
}

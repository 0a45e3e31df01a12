package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openshelf/catkey/internal/config"
	"github.com/openshelf/catkey/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs from the history database",
		Long: `History lists past runs with their totals. Given a run ID, it shows the
per-book outcomes of that run instead.

Examples:
  # List the most recent runs
  catkey history

  # Show every resolution of one run
  catkey history 2f1c9c3a-5a7e-4a61-9f6e-1a2b3c4d5e6f`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory holding the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	// History only reads; never create an empty database here.
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no run history available: %w", err)
	}
	defer func() { _ = db.Close() }()

	if len(args) == 1 {
		return printRunDetail(cmd, db, args[0])
	}
	return printRunList(cmd, db, limit)
}

// printRunList renders the stored runs, newest first.
func printRunList(cmd *cobra.Command, db *database.HistoryDB, limit int) error {
	runs, err := db.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tFOUND\tNOT FOUND\tNOTIFIED\tLISTS")
	for _, r := range runs {
		notified := "no"
		if r.Notified {
			notified = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04"),
			r.TotalFound,
			r.TotalNotFound,
			notified,
			r.Lists,
		)
	}
	return w.Flush()
}

// printRunDetail renders the per-book outcomes of one run.
func printRunDetail(cmd *cobra.Command, db *database.HistoryDB, runID string) error {
	outcomes, err := db.RunResolutions(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No resolutions recorded for run %s.\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LIST\tISBN\tTITLE\tKEY\tREASON")
	for _, o := range outcomes {
		key := o.Resolution.Key
		if key == "" {
			key = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			o.Candidate.List,
			o.Candidate.ISBN,
			o.Candidate.Title,
			key,
			string(o.Resolution.Reason),
		)
	}
	return w.Flush()
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/SP963/pageminer/internal/config"
	"github.com/SP963/pageminer/internal/database"
	"github.com/SP963/pageminer/internal/model"
	"github.com/SP963/pageminer/internal/report"
	"github.com/spf13/cobra"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed-url]",
		Short: "Show and compare recorded crawl runs",
		Long: `History reads the runs recorded by 'pageminer crawl'.

Without arguments it lists every crawled seed. With a seed URL it lists the
runs of that seed, newest first. A single run is shown in full with --id.

--diff compares the pages of the latest two runs of a seed: pages that
appeared, disappeared, or whose content changed.

Examples:
  # List crawled seeds
  pageminer history

  # List the runs of a seed
  pageminer history https://example.com

  # Show one run as JSON
  pageminer history --id 7d0c3f5e-... --json

  # Compare the latest two runs of a seed
  pageminer history --diff https://example.com

  # Compare the latest run with a specific older one
  pageminer history --diff --with-id 7d0c3f5e-... https://example.com

  # Delete a run
  pageminer history --delete 7d0c3f5e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("id", "i", "",
		"Show the run with this ID")
	cmd.Flags().BoolP("diff", "d", false,
		"Compare the latest two runs of the seed")
	cmd.Flags().String("with-id", "",
		"With --diff, compare the latest run with this run instead of the previous one")
	cmd.Flags().String("delete", "",
		"Delete the run with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a shown run in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")

	return cmd
}

type historyOptions struct {
	seed     string
	runID    string
	diff     bool
	withID   string
	deleteID string
	json     bool
	markdown bool
	dbDir    string
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := historyOptionsFromFlags(cmd, args)
	if err != nil {
		return err
	}

	// Validate before opening the database.
	switch {
	case opts.json && opts.markdown:
		return config.ErrConflictingReportFormats
	case opts.diff && opts.seed == "":
		return errors.New("--diff needs a seed URL")
	case opts.withID != "" && !opts.diff:
		return errors.New("--with-id is only valid with --diff")
	}

	db, err := database.Open(opts.dbDir, database.Options{})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No crawl history found.")
		fmt.Fprintln(cmd.OutOrStdout(), "\nUse 'pageminer crawl <url>' to record a crawl.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case opts.deleteID != "":
		return deleteRun(ctx, db, out, opts.deleteID)
	case opts.runID != "":
		return showRun(ctx, db, out, opts)
	case opts.diff:
		return diffRuns(ctx, db, out, opts)
	case opts.seed != "":
		return listRuns(ctx, db, out, opts)
	default:
		return listSeeds(ctx, db, out, opts.json)
	}
}

func historyOptionsFromFlags(cmd *cobra.Command, args []string) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	if len(args) > 0 {
		opts.seed = args[0]
	}

	flags := cmd.Flags()
	if opts.runID, err = flags.GetString("id"); err != nil {
		return opts, err
	}
	if opts.diff, err = flags.GetBool("diff"); err != nil {
		return opts, err
	}
	if opts.withID, err = flags.GetString("with-id"); err != nil {
		return opts, err
	}
	if opts.deleteID, err = flags.GetString("delete"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	return opts, nil
}

// listSeeds prints every seed that has recorded runs.
func listSeeds(ctx context.Context, db *database.CrawlDB, out io.Writer, asJSON bool) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}

	if asJSON {
		if seeds == nil {
			seeds = []string{}
		}
		return writeJSON(out, seeds)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawled seeds found in the database.")
		fmt.Fprintln(out, "\nUse 'pageminer crawl <url>' to record a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Crawled seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'pageminer history <url>' to see the runs of a seed.")
	return nil
}

// listRuns prints the runs of opts.seed, newest first.
func listRuns(ctx context.Context, db *database.CrawlDB, out io.Writer, opts historyOptions) error {
	runs, err := db.ListRuns(ctx, opts.seed)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if opts.json {
		if runs == nil {
			runs = []database.RunSummary{}
		}
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No crawl history found for %s\n", opts.seed)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d runs):\n\n", opts.seed, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %6s  %6s  %6s\n", "ID", "Started", "State", "Pages", "Failed", "Links")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 92))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-9s  %6d  %6d  %6d\n",
			r.ID,
			r.StartedAt.Local().Format(historyTimeLayout),
			r.State,
			r.PagesScraped,
			r.PagesFailed,
			r.LinksDiscovered,
		)
	}
	fmt.Fprintln(out, "\nUse 'pageminer history --id <id>' to show a run.")
	fmt.Fprintln(out, "Use 'pageminer history --diff <url>' to compare the latest two runs.")
	return nil
}

// showRun prints one stored run with the report writer selected by opts.
func showRun(ctx context.Context, db *database.CrawlDB, out io.Writer, opts historyOptions) error {
	run, err := db.GetRun(ctx, opts.runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", opts.runID)
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}
	if _, err := w.Write(run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// diffRuns compares the latest run of opts.seed with the run before it, or
// with opts.withID.
func diffRuns(ctx context.Context, db *database.CrawlDB, out io.Writer, opts historyOptions) error {
	summaries, err := db.ListRuns(ctx, opts.seed)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(summaries) == 0 {
		return fmt.Errorf("no crawl history found for %s", opts.seed)
	}
	if len(summaries) < 2 && opts.withID == "" {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(summaries))
	}

	olderID := opts.withID
	if olderID == "" {
		olderID = summaries[1].ID
	}
	if olderID == summaries[0].ID {
		return errors.New("cannot compare the latest run with itself")
	}

	newer, err := db.GetRun(ctx, summaries[0].ID)
	if err != nil {
		return err
	}
	older, err := db.GetRun(ctx, olderID)
	if err != nil {
		return err
	}
	if older == nil {
		return fmt.Errorf("run %s not found", olderID)
	}
	if older.Seed != opts.seed {
		return fmt.Errorf("run %s belongs to %s, not %s", olderID, older.Seed, opts.seed)
	}

	diff := model.CompareRuns(older, newer)
	if opts.json {
		return writeJSON(out, diff)
	}
	writeDiffText(out, opts.seed, older, newer, diff)
	return nil
}

func writeDiffText(out io.Writer, seed string, older, newer *model.CrawlRun, diff model.RunDiff) {
	fmt.Fprintf(out, "Run Comparison: %s\n", seed)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "\nPrevious run: %s  (%s, %d pages)\n",
		older.StartedAt.Local().Format(historyTimeLayout), older.ID, len(older.Pages))
	fmt.Fprintf(out, "Current run:  %s  (%s, %d pages)\n",
		newer.StartedAt.Local().Format(historyTimeLayout), newer.ID, len(newer.Pages))

	if !diff.HasChanges() {
		fmt.Fprintf(out, "\nNo changes (%d pages unchanged)\n", diff.Unchanged)
		return
	}

	writeURLGroup(out, "Added", "+", diff.Added)
	writeURLGroup(out, "Removed", "-", diff.Removed)
	writeURLGroup(out, "Changed", "~", diff.Changed)
	fmt.Fprintf(out, "\nUnchanged: %d pages\n", diff.Unchanged)
}

func writeURLGroup(out io.Writer, title, marker string, urls []string) {
	if len(urls) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  [%s] %s\n", marker, u)
	}
}

func deleteRun(ctx context.Context, db *database.CrawlDB, out io.Writer, id string) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	if err := db.DeleteRun(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted run %s (%s)\n", id, run.Seed)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

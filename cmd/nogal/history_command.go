package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"nogal/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		runID  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded delete and move runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			switch format {
			case formatTable, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unsupported --format %q (want table, json, or yaml)", format)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.JournalPath()
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				if runID != "" {
					return fmt.Errorf("%w: %s", journal.ErrRunNotFound, runID)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			store, err := journal.Open(path)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			if runID != "" {
				return showRun(cmd, store, runID, format)
			}

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			switch format {
			case formatJSON:
				return writeJSON(cmd, runs)
			case formatYAML:
				return writeYAML(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the file actions of one run (full id or unique prefix)")
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, json, or yaml")
	return cmd
}

func showRun(cmd *cobra.Command, store *journal.Store, prefix, format string) error {
	runID, err := store.Resolve(cmd.Context(), prefix)
	if err != nil {
		return err
	}
	run, err := store.Get(cmd.Context(), runID)
	if err != nil {
		return err
	}
	actions, err := store.Actions(cmd.Context(), runID)
	if err != nil {
		return err
	}

	detail := struct {
		journal.Run `yaml:",inline"`
		Actions     []journal.Action `json:"actions" yaml:"actions"`
	}{Run: run, Actions: actions}

	switch format {
	case formatJSON:
		return writeJSON(cmd, detail)
	case formatYAML:
		return writeYAML(cmd, detail)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s %s (%s)\n", run.ID, run.Disposition, run.Directory, run.Status)
	if run.BackupDir != "" {
		fmt.Fprintf(out, "Backup: %s\n", run.BackupDir)
	}
	fmt.Fprintf(out, "Filter: %s, videos: %s\n", run.Filter, yesNo(run.Videos))
	fmt.Fprintf(out, "Started %s, %d succeeded, %d failed\n", humanize.Time(run.StartedAt), run.Succeeded, run.Failed)
	if len(actions) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(actions))
	for _, a := range actions {
		result := "ok"
		if !a.Succeeded() {
			result = a.Error
		}
		rows = append(rows, []string{strconv.Itoa(a.Seq), string(a.Kind), a.Name, result})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Kind", "File", "Result"},
		rows,
		nil,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

func renderRuns(runs []journal.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			humanize.Time(r.StartedAt),
			string(r.Disposition),
			r.Directory,
			r.Filter,
			strconv.Itoa(r.Matched),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			string(r.Status),
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Mode", "Directory", "Filter", "Matched", "Done", "Failed", "Status"},
		rows,
		nil,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

// shortID trims a run uuid to its first group, which `history --run` accepts.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

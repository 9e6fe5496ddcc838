package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nogal/internal/curate"
)

const (
	formatText  = "text"
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML encodes v as YAML to the command's stdout.
func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

type planOutput struct {
	Directory string         `json:"directory" yaml:"directory"`
	Filter    string         `json:"filter" yaml:"filter"`
	Count     int            `json:"count" yaml:"count"`
	TotalSize int64          `json:"total_size" yaml:"total_size"`
	Matches   []curate.Match `json:"matches" yaml:"matches"`
}

// printPlan renders list mode in a structured format. It never mutates.
func printPlan(cmd *cobra.Command, engine *curate.Engine, opts curate.Options, format string, stderr io.Writer) error {
	matches, err := engine.Plan(cmd.Context(), opts)
	if err != nil {
		if errors.Is(err, curate.ErrDirectoryNotFound) {
			fmt.Fprintf(stderr, "Directory not found: %s\n", opts.Directory)
			return reportedError{err: err}
		}
		return err
	}

	out := planOutput{
		Directory: opts.Directory,
		Filter:    opts.Filter.String(),
		Count:     len(matches),
		Matches:   matches,
	}
	for _, m := range matches {
		out.TotalSize += m.Size
	}

	switch format {
	case formatJSON:
		return writeJSON(cmd, out)
	case formatYAML:
		return writeYAML(cmd, out)
	default:
		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matching games found.")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), renderMatches(matches, out.TotalSize))
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	}
}

func renderMatches(matches []curate.Match, total int64) string {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{m.Name, m.Category, humanize.Bytes(uint64(m.Size))})
	}
	footer := []string{strconv.Itoa(len(matches)) + " games", "", humanize.Bytes(uint64(total))}
	return renderTable(
		[]string{"File", "Category", "Size"},
		rows,
		footer,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

// errorWriter colors each failure line red on an interactive terminal.
type errorWriter struct {
	w     io.Writer
	color *color.Color
}

func newErrorWriter(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if !ok || !isTerminal(f) {
		return w
	}
	c := color.New(color.FgRed)
	c.EnableColor()
	return errorWriter{w: w, color: c}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (e errorWriter) Write(p []byte) (int, error) {
	line := strings.TrimSuffix(string(p), "\n")
	if _, err := e.color.Fprint(e.w, line); err != nil {
		return 0, err
	}
	if len(line) < len(p) {
		if _, err := io.WriteString(e.w, "\n"); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

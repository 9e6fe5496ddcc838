package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

type curateFlags struct {
	directory       string
	category        string
	caseInsensitive bool
	list            bool
	video           bool
	backup          string
	catver          string
	format          string
}

func newRootCommand() *cobra.Command {
	var configFlag string
	flags := &curateFlags{}

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "nogal",
		Short:         "NoGAL - MAME game purging tool",
		Long:          "List, delete, or move MAME ROMs whose catver.ini category matches a filter.\nWithout -c the filter is the \"* Mature *\" marker.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			return ctx.runCurate(cmd, flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Configuration file path")

	f := rootCmd.Flags()
	f.StringVarP(&flags.directory, "directory", "d", "", "directory containing MAME files")
	f.StringVarP(&flags.category, "category", "c", "", "category to filter (default: mature games)")
	f.BoolVarP(&flags.caseInsensitive, "case-insensitive", "i", false, "case insensitive category matching")
	f.BoolVarP(&flags.list, "list", "l", false, "list matching games instead of deleting them")
	f.BoolVarP(&flags.video, "video", "o", false, "delete/move videos as well")
	f.StringVarP(&flags.backup, "backup", "b", "", "backup directory to move files instead of deleting")
	f.StringVar(&flags.catver, "catver", "", "category file (default: catver.ini beside the executable)")
	f.StringVar(&flags.format, "format", formatText, "list output format: text, table, json, or yaml")
	_ = rootCmd.MarkFlagRequired("directory")

	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func (f *curateFlags) validate() error {
	f.format = strings.ToLower(strings.TrimSpace(f.format))
	switch f.format {
	case formatText, formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unsupported --format %q (want text, table, json, or yaml)", f.format)
	}
	if f.format != formatText && !f.list {
		return fmt.Errorf("--format %s requires --list", f.format)
	}
	if strings.TrimSpace(f.directory) == "" {
		return fmt.Errorf("--directory must not be empty")
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gifcut/gifcut/internal/catalog"
	"github.com/gifcut/gifcut/internal/config"
	"github.com/gifcut/gifcut/internal/db"
	"github.com/gifcut/gifcut/internal/logging"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newHistoryCmd(cfg config.Config) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be at least 1")
			}

			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel(), false)
			database, err := db.New(cfg.DBPath(), logger)
			if err != nil {
				return fmt.Errorf("failed to open job history: %w", err)
			}
			defer database.Close()

			jobs, err := catalog.NewRepository(database.Conn()).ListJobs(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if jobs == nil {
					jobs = []*catalog.Job{}
				}
				return enc.Encode(jobs)
			}
			writeHistoryTable(cmd.OutOrStdout(), jobs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of jobs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print jobs as JSON")
	return cmd
}

func writeHistoryTable(w io.Writer, jobs []*catalog.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "no conversions recorded yet")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Status", "When", "Clip", "Size", "Output"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, j := range jobs {
		size := "-"
		if j.OutputSize > 0 {
			size = humanize.Bytes(uint64(j.OutputSize))
		}
		clip := "-"
		if j.Duration != "" {
			clip = j.Duration + "s"
		}
		status := j.Status
		if j.Error != "" {
			status += " (" + firstLine(j.Error, 40) + ")"
		}
		table.Append([]string{
			shortID(j.ID),
			status,
			humanize.Time(j.CreatedAt),
			clip,
			size,
			logging.SanitizePath(j.Output),
		})
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string, maxLen int) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medline2sql/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show table sizes and ingested files",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	showFiles, _ := cmd.Flags().GetBool("files")

	ctx := context.Background()
	s, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Database: %s\n\n", cfg.Store.Path)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tROWS")
	for _, table := range s.Tables() {
		n, err := s.Count(ctx, table)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%d\n", table, n)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	files, err := s.IngestedFiles(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d file(s) ingested\n", len(files))
	if !showFiles || len(files) == 0 {
		return nil
	}

	fmt.Println()
	tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tRECORDS\tFINISHED\tRUN")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.Name, f.Records, f.FinishedAt.Format("2006-01-02 15:04:05"), f.RunID)
	}
	return tw.Flush()
}

func init() {
	statusCmd.Flags().Bool("files", false, "list every ingested file")

	rootCmd.AddCommand(statusCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medline2sql/internal/affil"
	"github.com/pdiddy/medline2sql/internal/store"
)

var affiliationsCmd = &cobra.Command{
	Use:   "affiliations",
	Short: "Work with stored affiliation strings",
}

var affiliationsParseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Split stored affiliations into department, institution and location",
	Long: `Parse reads the affiliations table page by page and rebuilds
affiliations_parsed, one row per distinct affiliation with its department,
institution, location, country, zipcode and email. Existing parsed rows are
replaced.`,
	Args: cobra.NoArgs,
	RunE: runAffiliationsParse,
}

func runAffiliationsParse(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = affil.NewJob(s, affil.Heuristic{}, cfg.Affiliations, logger).Run(ctx, os.Stdout)
	return err
}

func init() {
	affiliationsParseCmd.Flags().Int("page-size", affil.DefaultPageSize, "affiliation rows read per page")
	mustBind("affiliations.page_size", affiliationsParseCmd.Flags().Lookup("page-size"))

	affiliationsCmd.AddCommand(affiliationsParseCmd)
	rootCmd.AddCommand(affiliationsCmd)
}

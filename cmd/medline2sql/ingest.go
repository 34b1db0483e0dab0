// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medline2sql/internal/classify"
	"github.com/pdiddy/medline2sql/internal/ingest"
	"github.com/pdiddy/medline2sql/internal/metrics"
	"github.com/pdiddy/medline2sql/internal/store"
	"github.com/pdiddy/medline2sql/internal/transform"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load every record file in a directory into the database",
	Long: `Ingest reads every .xml and .xml.gz file in the input directory in name
order, flattens each PubmedArticle into a publication row, and writes the
publication, author and affiliation rows to the database.

Files already ingested with the same modification time are skipped unless
--force is given. A file that cannot be decoded is reported and counted as
failed; the run continues with the next file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := cfg.Ingest.InputDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no input directory: pass one as an argument or set --input-dir")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	labeler, err := classify.New(cfg.Classifier, &http.Client{Timeout: cfg.Classifier.Timeout}, logger)
	if err != nil {
		return err
	}

	s, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	p := ingest.New(s, transform.New(labeler, logger), metrics.New(), cfg.Ingest, logger)
	summary, err := p.Run(ctx, dir, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed ingest", summary.Failed)
	}
	return nil
}

func init() {
	flags := ingestCmd.Flags()
	flags.String("input-dir", "", "directory holding .xml or .xml.gz record files")
	flags.Int("workers", ingest.DefaultWorkers, "number of files decoded ahead of the writer")
	flags.Bool("force", false, "re-ingest files already recorded as ingested")
	flags.Int("limit", 0, "stop after this many files (0 = all)")
	flags.String("metrics-file", "", "write a Prometheus textfile here when the run ends")
	flags.String("classifier", "lexical", "abstract label classifier: lexical or http")
	flags.String("classifier-url", "", "zero-shot classification endpoint for the http classifier")

	mustBind("ingest.input_dir", flags.Lookup("input-dir"))
	mustBind("ingest.workers", flags.Lookup("workers"))
	mustBind("ingest.force", flags.Lookup("force"))
	mustBind("ingest.limit", flags.Lookup("limit"))
	mustBind("ingest.metrics_file", flags.Lookup("metrics-file"))
	mustBind("classifier.backend", flags.Lookup("classifier"))
	mustBind("classifier.url", flags.Lookup("classifier-url"))

	rootCmd.AddCommand(ingestCmd)
}

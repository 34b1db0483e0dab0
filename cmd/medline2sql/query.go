// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/medline2sql/internal/store"
	"github.com/pdiddy/medline2sql/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query <table>",
	Short: "Look up rows by column values",
	Long: `Query returns the rows of a table matching every filter. Each --by names
a column and the --in at the same position lists its accepted values,
separated by commas. Requested values no row carries are reported after the
results.

  medline2sql query publications --by PMID --in 100,200
  medline2sql query authors --by PMID --in 100 --by LastName --in Doe,Roe`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	by, _ := cmd.Flags().GetStringArray("by")
	in, _ := cmd.Flags().GetStringArray("in")
	asJSON, _ := cmd.Flags().GetBool("json")

	values, err := filterValues(by, in)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.Lookup(ctx, args[0], by, values)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(result.Rows, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printRows(os.Stdout, result.Rows)
	}
	printMissing(os.Stderr, by, result.Missing)
	return nil
}

// filterValues pairs each --by column with the comma list at the same
// position in --in.
func filterValues(by, in []string) ([][]any, error) {
	if len(by) == 0 {
		return nil, fmt.Errorf("at least one --by column is required")
	}
	if len(by) != len(in) {
		return nil, fmt.Errorf("got %d --by column(s) but %d --in list(s)", len(by), len(in))
	}
	values := make([][]any, len(in))
	for i, list := range in {
		for _, v := range strings.Split(list, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values[i] = append(values[i], v)
			}
		}
		if len(values[i]) == 0 {
			return nil, fmt.Errorf("--in for %s has no values", by[i])
		}
	}
	return values, nil
}

func printRows(w io.Writer, rows []types.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No rows found.")
		return
	}
	for i, row := range rows {
		if i > 0 {
			fmt.Fprintln(w)
		}
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if row[k] == nil {
				continue
			}
			fmt.Fprintf(w, "%s: %s\n", k, types.Text(row[k]))
		}
	}
	fmt.Fprintf(w, "\n%d row(s)\n", len(rows))
}

func printMissing(w io.Writer, by []string, missing map[string][]any) {
	for _, col := range by {
		vals := missing[col]
		if len(vals) == 0 {
			continue
		}
		texts := make([]string, len(vals))
		for i, v := range vals {
			texts[i] = types.Text(v)
		}
		fmt.Fprintf(w, "not found by %s: %s\n", col, strings.Join(texts, ", "))
	}
}

func init() {
	queryCmd.Flags().StringArray("by", nil, "column to filter on (repeatable)")
	queryCmd.Flags().StringArray("in", nil, "comma-separated values for the matching --by (repeatable)")
	queryCmd.Flags().Bool("json", false, "print rows as JSON")

	rootCmd.AddCommand(queryCmd)
}

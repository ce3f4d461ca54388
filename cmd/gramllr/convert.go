package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/gramllr/internal/batch"
	"github.com/inodb/gramllr/internal/duckdb"
	"github.com/inodb/gramllr/internal/llr"
	"github.com/inodb/gramllr/internal/output"
)

func newConvertCmd() *cobra.Command {
	var (
		dbPath string
		track  string
	)

	cmd := &cobra.Command{
		Use:   "convert --duckdb <file> [flags] <results.csv>...",
		Short: "Load LLR result files into DuckDB",
		Long: `Load LLR result CSV files into the llr_results table of a DuckDB database.

Results are grouped by their label column. Any results already stored for a
label on the same track are replaced.`,
		Example: `  # Load protein-track results
  gramllr convert --duckdb llr.duckdb LLR/benign_LLR_results.csv LLR/pathogenic_LLR_results.csv

  # Load gene-track results
  gramllr convert --duckdb llr.duckdb --track gene LLR/*_LLR_CaLM_results.csv`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return usagef("--duckdb is required")
			}
			t, err := batch.ParseTrack(track)
			if err != nil {
				return usageError{err}
			}
			return runConvert(cmd.ErrOrStderr(), dbPath, t, args, viper.GetInt(keyBatchSize))
		},
	}

	cmd.Flags().StringVar(&dbPath, "duckdb", "", "output DuckDB file")
	cmd.Flags().StringVarP(&track, "track", "t", string(batch.TrackProtein), "track the results were scored on")

	return cmd
}

func runConvert(w io.Writer, dbPath string, track batch.Track, paths []string, batchSize int) error {
	if batchSize < 1 {
		batchSize = batch.DefaultBatchSize
	}

	fmt.Fprintf(w, "Converting LLR results to DuckDB...\n")
	fmt.Fprintf(w, "  Output: %s\n", dbPath)
	fmt.Fprintf(w, "  Track:  %s\n", track)

	byLabel := make(map[string][]llr.Result)
	for _, p := range paths {
		results, err := output.LoadResults(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  Loaded %d results from %s\n", len(results), p)
		for _, r := range results {
			byLabel[r.Label] = append(byLabel[r.Label], r)
		}
	}
	if len(byLabel) == 0 {
		fmt.Fprintf(w, "Warning: No results loaded\n")
		return nil
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	fmt.Fprintf(w, "\nWriting results to DuckDB...\n")
	var inserted int
	for _, label := range labels {
		sink, err := store.Sink(label, string(track), 0)
		if err != nil {
			return err
		}
		results := byLabel[label]
		for start := 0; start < len(results); start += batchSize {
			end := min(start+batchSize, len(results))
			if err := sink.WriteBatch(results[start:end]); err != nil {
				return fmt.Errorf("write %s results: %w", label, err)
			}
		}
		inserted += len(results)
		fmt.Fprintf(w, "  %s: %d results\n", label, len(results))
	}

	stored, err := store.Labels(string(track))
	if err != nil {
		return err
	}

	var sizeStr string
	if stat, err := os.Stat(dbPath); err == nil {
		sizeStr = fmt.Sprintf("%.2f MB", float64(stat.Size())/(1024*1024))
	} else {
		sizeStr = "unknown"
	}

	fmt.Fprintf(w, "\nConversion complete!\n")
	fmt.Fprintf(w, "  Results:      %d\n", inserted)
	fmt.Fprintf(w, "  Track labels: %v\n", stored)
	fmt.Fprintf(w, "  Output size:  %s\n", sizeStr)
	fmt.Fprintf(w, "  Output file:  %s\n", dbPath)
	return nil
}

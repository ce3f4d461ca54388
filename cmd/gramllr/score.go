package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/gramllr/internal/batch"
	"github.com/inodb/gramllr/internal/checkpoint"
	"github.com/inodb/gramllr/internal/duckdb"
	"github.com/inodb/gramllr/internal/grammar"
	"github.com/inodb/gramllr/internal/output"
	"github.com/inodb/gramllr/internal/sequence"
	"github.com/inodb/gramllr/internal/table"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [flags] [label=]<table>...",
		Short: "Compute LLRs for variant tables",
		Long: `Compute log-likelihood ratios for every variant name in one or more tables.

Each table is a CSV or TSV file (optionally gzipped) with a Name column. The
label is taken from LABEL=PATH arguments or derived from the file name
(benign_data.csv -> benign). Results are written to
<output-dir>/<label>_LLR_results.csv (protein track) or
<output-dir>/<label>_LLR_CaLM_results.csv (gene track).`,
		Example: `  # Amino-acid LLRs from ESM2 matrices
  gramllr score data/benign_data.csv data/pathogenic_data.csv

  # Codon LLRs from CaLM matrices and per-gene FASTA files
  gramllr score --track gene --sequences-dir data/Gene data/*_data.csv

  # Resumable run that also fills a DuckDB table
  gramllr score --checkpoint llr.ckpt --duckdb llr.duckdb cohort=variants.tsv.gz`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringP("track", "t", "", "scoring track: gene (codons) or protein (amino acids)")
	f.IntP("batch-size", "b", 0, "results per flush")
	f.StringP("output-dir", "o", "", "directory for result files")
	f.String("sequences-dir", "", "directory of per-gene FASTA files (gene track)")
	f.String("sequences-pattern", "", "FASTA file name pattern, {gene} is replaced")
	f.String("matrices-dir", "", "directory of per-gene grammaticality matrices")
	f.String("matrices-pattern", "", "matrix file name pattern, {gene} is replaced")
	f.String("alphabet", "", "comma-separated column tokens for .npy matrices")
	f.String("duckdb", "", "also append results to this DuckDB database")
	f.String("checkpoint", "", "checkpoint database for resumable runs")
	f.IntP("parallel", "j", 0, "labels scored concurrently (0 = all)")

	for key, name := range map[string]string{
		keyTrack:            "track",
		keyBatchSize:        "batch-size",
		keyOutputDir:        "output-dir",
		keySequencesDir:     "sequences-dir",
		keySequencesPattern: "sequences-pattern",
		keyMatricesDir:      "matrices-dir",
		keyMatricesPattern:  "matrices-pattern",
		keyMatricesAlphabet: "alphabet",
		keyDuckDB:           "duckdb",
		keyCheckpoint:       "checkpoint",
		keyParallel:         "parallel",
	} {
		viper.BindPFlag(key, f.Lookup(name))
	}

	return cmd
}

// scoreOptions is the resolved configuration of one score invocation.
type scoreOptions struct {
	track            batch.Track
	batchSize        int
	outputDir        string
	sequencesDir     string
	sequencesPattern string
	matricesDir      string
	matricesPattern  string
	alphabet         []string
	duckdbPath       string
	checkpointPath   string
	parallel         int
}

func loadScoreOptions() (scoreOptions, error) {
	track, err := batch.ParseTrack(viper.GetString(keyTrack))
	if err != nil {
		return scoreOptions{}, usageError{err}
	}
	def := defaultsFor(track)
	opts := scoreOptions{
		track:            track,
		batchSize:        viper.GetInt(keyBatchSize),
		outputDir:        viper.GetString(keyOutputDir),
		sequencesDir:     viper.GetString(keySequencesDir),
		sequencesPattern: viper.GetString(keySequencesPattern),
		matricesDir:      stringOr(keyMatricesDir, def.matricesDir),
		matricesPattern:  stringOr(keyMatricesPattern, def.matricesPattern),
		alphabet:         parseAlphabet(viper.GetString(keyMatricesAlphabet), track),
		duckdbPath:       viper.GetString(keyDuckDB),
		checkpointPath:   viper.GetString(keyCheckpoint),
		parallel:         viper.GetInt(keyParallel),
	}
	if opts.batchSize < 1 {
		return opts, usagef("batch size must be positive, got %d", opts.batchSize)
	}
	if !strings.Contains(opts.matricesPattern, grammar.GenePlaceholder) {
		return opts, usagef("matrices pattern %q has no %s placeholder", opts.matricesPattern, grammar.GenePlaceholder)
	}
	if track == batch.TrackGene && !strings.Contains(opts.sequencesPattern, grammar.GenePlaceholder) {
		return opts, usagef("sequences pattern %q has no %s placeholder", opts.sequencesPattern, grammar.GenePlaceholder)
	}
	return opts, nil
}

// parseJobs turns [label=]path arguments into jobs.
func parseJobs(args []string) ([]batch.Job, error) {
	jobs := make([]batch.Job, 0, len(args))
	for _, arg := range args {
		label, path, ok := strings.Cut(arg, "=")
		if !ok {
			path = arg
			label = table.LabelFromPath(arg)
		}
		if label == "" || path == "" {
			return nil, usagef("invalid table argument %q", arg)
		}
		jobs = append(jobs, batch.Job{Label: label, Path: path})
	}
	return jobs, nil
}

func runScore(cmd *cobra.Command, args []string) error {
	opts, err := loadScoreOptions()
	if err != nil {
		return err
	}
	jobs, err := parseJobs(args)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	var store *duckdb.Store
	if opts.duckdbPath != "" {
		if store, err = duckdb.Open(opts.duckdbPath); err != nil {
			return err
		}
		defer store.Close()
	}

	var ckpt *checkpoint.Store
	if opts.checkpointPath != "" {
		if ckpt, err = checkpoint.Open(opts.checkpointPath); err != nil {
			return err
		}
		defer ckpt.Close()
	}

	logger.Info("scoring variant tables",
		zap.String("track", string(opts.track)),
		zap.Int("tables", len(jobs)),
		zap.String("matrices", filepath.Join(opts.matricesDir, opts.matricesPattern)),
		zap.String("output_dir", opts.outputDir))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summaries, err := scoreJobs(ctx, opts, jobs, store, ckpt, logger)
	printSummaries(cmd.OutOrStdout(), opts, summaries)
	return err
}

// scoreJobs runs all jobs with one processor and provider set per label.
func scoreJobs(ctx context.Context, opts scoreOptions, jobs []batch.Job, store *duckdb.Store, ckpt *checkpoint.Store, logger *zap.Logger) ([]batch.Summary, error) {
	factory := func(job batch.Job) (*batch.Processor, batch.SinkOpener, error) {
		l := logger.With(zap.String("label", job.Label))

		matrices := grammar.NewFileProvider(opts.matricesDir, opts.matricesPattern, opts.alphabet)
		matrices.SetLogger(l)

		var seqs sequence.Provider
		if opts.track == batch.TrackGene {
			fp := sequence.NewFileProvider(opts.sequencesDir, opts.sequencesPattern)
			fp.SetLogger(l)
			seqs = fp
		}

		proc := batch.NewProcessor(opts.track, matrices, seqs)
		proc.SetBatchSize(opts.batchSize)
		proc.SetLogger(l)

		path := filepath.Join(opts.outputDir, resultFileName(opts.track, job.Label))
		if ckpt != nil {
			outputs, err := outputIdentity(path, store)
			if err != nil {
				return nil, nil, err
			}
			proc.SetCheckpoint(ckpt)
			proc.SetOutputs(outputs[0], outputs[1:]...)
		}
		open := func(label string, pos output.Position) (output.Sink, error) {
			csvSink, err := output.OpenCSVAt(path, pos.Offset)
			if err != nil {
				return nil, err
			}
			if store == nil {
				return csvSink, nil
			}
			dbSink, err := store.Sink(label, string(opts.track), pos.Rows)
			if err != nil {
				csvSink.Close()
				return nil, err
			}
			return output.MultiSink{csvSink, dbSink}, nil
		}
		return proc, open, nil
	}

	return batch.RunAll(ctx, jobs, opts.parallel, factory)
}

// outputIdentity lists the absolute destinations of one label's results,
// so checkpoints survive a change of working directory.
func outputIdentity(resultFile string, store *duckdb.Store) ([]string, error) {
	abs, err := filepath.Abs(resultFile)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	outputs := []string{abs}
	if store != nil {
		db, err := filepath.Abs(store.Path())
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		outputs = append(outputs, "duckdb:"+db)
	}
	return outputs, nil
}

func printSummaries(w io.Writer, opts scoreOptions, summaries []batch.Summary) {
	if len(summaries) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tTOTAL\tPROCESSED\tSKIPPED\tSKIP REASONS\tOUTPUT")
	for _, s := range summaries {
		if s.Label == "" {
			continue
		}
		var reasons []string
		for _, r := range s.SortedReasons() {
			reasons = append(reasons, fmt.Sprintf("%s=%d", r, s.Reasons[r]))
		}
		reasonStr := "-"
		if len(reasons) > 0 {
			reasonStr = strings.Join(reasons, ",")
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			s.Label, s.Total, s.Processed, s.Skipped, reasonStr,
			filepath.Join(opts.outputDir, resultFileName(opts.track, s.Label)))
	}
	tw.Flush()
}

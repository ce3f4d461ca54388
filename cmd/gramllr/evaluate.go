package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inodb/gramllr/internal/batch"
	"github.com/inodb/gramllr/internal/duckdb"
	"github.com/inodb/gramllr/internal/evaluate"
	"github.com/inodb/gramllr/internal/llr"
	"github.com/inodb/gramllr/internal/output"
)

func newEvaluateCmd() *cobra.Command {
	var (
		geneFiles    []string
		proteinFiles []string
		dbPath       string
	)

	cmd := &cobra.Command{
		Use:   "evaluate [flags] [results.csv...]",
		Short: "Report ROC/PR AUC of LLR results",
		Long: `Evaluate how well LLRs separate pathogenic from benign variants.

Labels pathogenic and likely_pathogenic are positives, benign and
likely_benign negatives; other labels are ignored. Lower LLR predicts
pathogenic. When both gene-track and protein-track results are given, a
combined score 0.265*g + 0.006*p^3 + 0.04*g*p is evaluated as well, joining
results on label, gene, site and amino-acid change.`,
		Example: `  gramllr evaluate LLR/benign_LLR_results.csv LLR/pathogenic_LLR_results.csv
  gramllr evaluate --gene LLR/benign_LLR_CaLM_results.csv,LLR/pathogenic_LLR_CaLM_results.csv \
                   --protein LLR/benign_LLR_results.csv,LLR/pathogenic_LLR_results.csv
  gramllr evaluate --duckdb llr.duckdb`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(geneFiles) == 0 && len(proteinFiles) == 0 && dbPath == "" {
				return usagef("no results given")
			}

			var sets []scoreSet
			if len(args) > 0 {
				results, err := loadResultFiles(args)
				if err != nil {
					return err
				}
				sets = append(sets, scoreSet{name: "results", results: results})
			}

			gene, err := loadResultFiles(geneFiles)
			if err != nil {
				return err
			}
			protein, err := loadResultFiles(proteinFiles)
			if err != nil {
				return err
			}
			if dbPath != "" {
				g, p, err := loadStoreResults(dbPath)
				if err != nil {
					return err
				}
				gene = append(gene, g...)
				protein = append(protein, p...)
			}
			sets = append(sets, trackSets(gene, protein)...)

			return writeEvaluation(cmd.OutOrStdout(), sets)
		},
	}

	cmd.Flags().StringSliceVar(&geneFiles, "gene", nil, "gene-track (codon) result files")
	cmd.Flags().StringSliceVar(&proteinFiles, "protein", nil, "protein-track (amino acid) result files")
	cmd.Flags().StringVar(&dbPath, "duckdb", "", "read results from a DuckDB database")

	return cmd
}

type scoreSet struct {
	name      string
	results   []llr.Result
	unmatched int
}

func loadResultFiles(paths []string) ([]llr.Result, error) {
	var all []llr.Result
	for _, p := range paths {
		results, err := output.LoadResults(p)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}
	return all, nil
}

func loadStoreResults(path string) (gene, protein []llr.Result, err error) {
	store, err := duckdb.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	if gene, err = store.Results(string(batch.TrackGene)); err != nil {
		return nil, nil, err
	}
	if protein, err = store.Results(string(batch.TrackProtein)); err != nil {
		return nil, nil, err
	}
	return gene, protein, nil
}

// trackSets builds the gene, protein and combined score sets from whatever
// tracks are present.
func trackSets(gene, protein []llr.Result) []scoreSet {
	var sets []scoreSet
	if len(gene) > 0 {
		sets = append(sets, scoreSet{name: "gene", results: gene})
	}
	if len(protein) > 0 {
		sets = append(sets, scoreSet{name: "protein", results: protein})
	}
	if len(gene) > 0 && len(protein) > 0 {
		combined, unmatched := evaluate.Combine(gene, protein)
		sets = append(sets, scoreSet{name: "combined", results: combined, unmatched: unmatched})
	}
	return sets
}

func writeEvaluation(w io.Writer, sets []scoreSet) error {
	if len(sets) == 0 {
		return fmt.Errorf("no results found")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SET\tN\tPOSITIVES\tNEGATIVES\tROC_AUC\tPR_AUC\tNOTE")
	evaluated := 0
	for _, s := range sets {
		m, err := evaluate.Evaluate(s.results)
		note := "-"
		if s.unmatched > 0 {
			note = fmt.Sprintf("%d unmatched", s.unmatched)
		}
		if err != nil {
			if !errors.Is(err, evaluate.ErrSingleClass) {
				return fmt.Errorf("evaluate %s: %w", s.name, err)
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\tNA\tNA\t%v\n", s.name, m.N, m.Positives, m.Negatives, err)
			continue
		}
		evaluated++
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.4f\t%.4f\t%s\n",
			s.name, m.N, m.Positives, m.Negatives, m.ROCAUC, m.PRAUC, note)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "SET\tLABEL\tN\tMEAN_LLR\tSTD_LLR")
	for _, s := range sets {
		for _, st := range evaluate.Describe(s.results) {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.4f\t%.4f\n", s.name, st.Label, st.N, st.Mean, st.StdDev)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if evaluated == 0 {
		return evaluate.ErrSingleClass
	}
	return nil
}

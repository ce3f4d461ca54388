package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/gramllr/internal/alphabet"
	"github.com/inodb/gramllr/internal/checkpoint"
	"github.com/inodb/gramllr/internal/grammar"
	"github.com/inodb/gramllr/internal/llr"
	"github.com/inodb/gramllr/internal/output"
	"github.com/inodb/gramllr/internal/sequence"
	"github.com/inodb/gramllr/internal/table"
)

// proteinMatrices has one 3-site TP53 matrix over a reduced residue alphabet.
func proteinMatrices(t *testing.T) grammar.MapProvider {
	t.Helper()
	m, err := grammar.NewMatrix([]string{"R", "Q", "G", "E"}, [][]float64{
		{0.4, 0.3, 0.2, 0.1},
		{0.7, 0.1, 0.1, 0.1},
		{0.5, 0.0, 0.3, 0.2},
	})
	require.NoError(t, err)
	return grammar.MapProvider{"TP53": m}
}

// codonMatrices has 3-site matrices over all 64 codons for TP53 and KRAS.
func codonMatrices(t *testing.T) grammar.MapProvider {
	t.Helper()
	codons := alphabet.Codons()
	rows := make([][]float64, 3)
	for i := range rows {
		rows[i] = make([]float64, len(codons))
		for j, c := range codons {
			switch {
			case i == 1 && c == "GAA":
				rows[i][j] = 0.7
			case i == 1 && c == "CAA":
				rows[i][j] = 0.1
			default:
				rows[i][j] = 0.2 / 62
			}
		}
	}
	m, err := grammar.NewMatrix(codons, rows)
	require.NoError(t, err)
	return grammar.MapProvider{"TP53": m, "KRAS": m}
}

type sliceSource struct {
	names []string
	next  int
}

func (s *sliceSource) Next() (*table.Row, error) {
	if s.next >= len(s.names) {
		return nil, nil
	}
	row := &table.Row{Index: s.next, Line: s.next + 2, Name: s.names[s.next]}
	s.next++
	return row, nil
}

type recordingSink struct {
	batches [][]llr.Result
	closed  bool
}

func (r *recordingSink) WriteBatch(results []llr.Result) error {
	r.batches = append(r.batches, append([]llr.Result(nil), results...))
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func (r *recordingSink) all() []llr.Result {
	var out []llr.Result
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func recordTo(sink *recordingSink) SinkOpener {
	return func(string, output.Position) (output.Sink, error) { return sink, nil }
}

func TestScore_Protein(t *testing.T) {
	p := NewProcessor(TrackProtein, proteinMatrices(t), nil)

	res, err := p.Score("pathogenic", "NM_000546.6(TP53):c.5G>A (p.Arg2Gln)")
	require.NoError(t, err)
	assert.Equal(t, "pathogenic", res.Label)
	assert.Equal(t, "TP53", res.Gene)
	assert.Equal(t, 2, res.Site)
	assert.Equal(t, "R", res.Ref)
	assert.Equal(t, "Q", res.Mut)
	assert.InDelta(t, -1.9459, res.LLR, 1e-4)

	res, err = p.Score("benign", "NM_000546.6(TP53):c.6G>A (p.Arg2=)")
	require.NoError(t, err)
	assert.Zero(t, res.LLR)
}

func TestScore_Gene(t *testing.T) {
	seqs := sequence.MapProvider{"TP53": "ATGGAAGGC"}
	p := NewProcessor(TrackGene, codonMatrices(t), seqs)

	res, err := p.Score("pathogenic", "NM_000546.6(TP53):c.4G>C (p.Glu2Gln)")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Site)
	assert.Equal(t, "GAA", res.Ref)
	assert.Equal(t, "CAA", res.Mut)
	assert.InDelta(t, -1.9459, res.LLR, 1e-4)
}

func TestScore_SkipReasons(t *testing.T) {
	protein := NewProcessor(TrackProtein, proteinMatrices(t), nil)
	gene := NewProcessor(TrackGene, codonMatrices(t), sequence.MapProvider{"TP53": "ATGGAAGGC"})

	tests := []struct {
		name string
		proc *Processor
		in   string
		want SkipReason
	}{
		{"empty", protein, "", SkipNoGene},
		{"no gene", protein, "c.743G>A p.Arg248Gln", SkipNoGene},
		{"missing matrix", protein, "NM_007294.4(BRCA1):c.5G>A (p.Arg2Gln)", SkipMissingMatrix},
		{"no protein change", protein, "NM_000546.6(TP53):c.5G>A", SkipNoSite},
		{"stop gained Ter", protein, "NM_000546.6(TP53):c.4C>T (p.Arg2Ter)", SkipNonsense},
		{"stop gained star", protein, "NM_000546.6(TP53):c.4C>T (p.Arg2*)", SkipNonsense},
		{"unknown residue code", protein, "NM_000546.6(TP53):c.4C>T (p.Xaa2Gln)", SkipNonsense},
		{"site beyond matrix", protein, "NM_000546.6(TP53):c.26G>A (p.Arg9Gln)", SkipSiteOutOfRange},
		{"residue not in alphabet", protein, "NM_000546.6(TP53):c.4C>T (p.Arg2Trp)", SkipUnknownToken},
		{"zero probability", protein, "NM_000546.6(TP53):c.8G>A (p.Arg3Gln)", SkipDegenerateProbability},
		{"missing sequence", gene, "NM_004985.5(KRAS):c.35G>T (p.Gly2Val)", SkipMissingSequence},
		{"no nucleotide change", gene, "NM_000546.6(TP53) (p.Glu2Gln)", SkipNoNucleotideChange},
		{"site beyond sequence", gene, "NM_000546.6(TP53):c.10G>C (p.Glu4Gln)", SkipSiteOutOfRange},
		{"nonsense gene track", gene, "NM_000546.6(TP53):c.4G>T (p.Glu2Ter)", SkipNonsense},
		{"non-ACGT base", gene, "NM_000546.6(TP53):c.4G>N (p.Glu2Gln)", SkipInvalidCodon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.proc.Score("benign", tt.in)
			require.Error(t, err)
			var se *SkipError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.want, se.Reason)
		})
	}
}

func TestScore_NilSequenceProvider(t *testing.T) {
	p := NewProcessor(TrackGene, codonMatrices(t), nil)
	_, err := p.Score("benign", "NM_000546.6(TP53):c.4G>C (p.Glu2Gln)")
	var se *SkipError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, SkipMissingSequence, se.Reason)
	assert.ErrorIs(t, err, sequence.ErrNotFound)
}

func TestRun_CountsAndOrder(t *testing.T) {
	names := []string{
		"NM_000546.6(TP53):c.5G>A (p.Arg2Gln)",
		"NM_000546.6(TP53):c.4C>T (p.Arg2Ter)",
		"NM_007294.4(BRCA1):c.5G>A (p.Arg2Gln)",
		"NM_000546.6(TP53):c.2G>A (p.Arg1Gly)",
		"",
		"NM_000546.6(TP53):c.5G>A (p.Arg2Gln)",
		"NM_000546.6(TP53):c.8G>A (p.Arg3Gln)",
	}
	core, logs := observer.New(zap.WarnLevel)
	p := NewProcessor(TrackProtein, proteinMatrices(t), nil)
	p.SetLogger(zap.New(core))
	sink := &recordingSink{}

	sum, err := p.Run(context.Background(), "pathogenic", &sliceSource{names: names}, recordTo(sink))
	require.NoError(t, err)

	assert.Equal(t, 7, sum.Total)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 4, sum.Skipped)
	assert.Equal(t, sum.Total, sum.Processed+sum.Skipped)
	assert.Equal(t, map[SkipReason]int{
		SkipNonsense:              1,
		SkipMissingMatrix:         1,
		SkipNoGene:                1,
		SkipDegenerateProbability: 1,
	}, sum.Reasons)

	got := sink.all()
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].Site)
	assert.Equal(t, "G", got[1].Mut)
	assert.Equal(t, got[0], got[2], "duplicates are kept")
	assert.True(t, sink.closed)

	assert.Equal(t, 4, logs.FilterMessage("skipping record").Len())
	entry := logs.FilterField(zap.String("reason", string(SkipNonsense))).All()
	require.Len(t, entry, 1)
	assert.Equal(t, "TP53", entry[0].ContextMap()["gene"])
}

func TestRun_NonsenseOnly(t *testing.T) {
	p := NewProcessor(TrackProtein, proteinMatrices(t), nil)
	sink := &recordingSink{}

	sum, err := p.Run(context.Background(), "pathogenic",
		&sliceSource{names: []string{"NM_000546.6(TP53):c.4C>T (p.Arg2Ter)"}}, recordTo(sink))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, 1, sum.Reasons[SkipNonsense])
	assert.Empty(t, sink.all())
}

func TestRun_FlushBatches(t *testing.T) {
	names := make([]string, 5)
	for i := range names {
		names[i] = "NM_000546.6(TP53):c.5G>A (p.Arg2Gln)"
	}
	p := NewProcessor(TrackProtein, proteinMatrices(t), nil)
	p.SetBatchSize(2)
	sink := &recordingSink{}

	_, err := p.Run(context.Background(), "benign", &sliceSource{names: names}, recordTo(sink))
	require.NoError(t, err)

	require.Len(t, sink.batches, 3)
	assert.Len(t, sink.batches[0], 2)
	assert.Len(t, sink.batches[1], 2)
	assert.Len(t, sink.batches[2], 1)
}

func TestRun_SinkOpenFailure(t *testing.T) {
	p := NewProcessor(TrackProtein, proteinMatrices(t), nil)
	boom := errors.New("read-only filesystem")

	_, err := p.Run(context.Background(), "benign", &sliceSource{},
		func(string, output.Position) (output.Sink, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

type failingSink struct{ recordingSink }

func (f *failingSink) WriteBatch([]llr.Result) error { return errors.New("disk full") }

func TestRun_WriteFailureIsFatal(t *testing.T) {
	p := NewProcessor(TrackProtein, proteinMatrices(t), nil)
	p.SetBatchSize(1)
	sink := &failingSink{}

	_, err := p.Run(context.Background(), "benign",
		&sliceSource{names: []string{"NM_000546.6(TP53):c.5G>A (p.Arg2Gln)"}},
		func(string, output.Position) (output.Sink, error) { return sink, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, sink.closed)
}

func writeTable(t *testing.T, path string, names ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Name\n")
	for _, n := range names {
		b.WriteString(n + "\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func csvAt(path string) SinkOpener {
	return func(_ string, pos output.Position) (output.Sink, error) {
		return output.OpenCSVAt(path, pos.Offset)
	}
}

// cancelingSink cancels the run after its first batch is written.
type cancelingSink struct {
	*output.CSVSink
	cancel context.CancelFunc
}

func (c *cancelingSink) WriteBatch(results []llr.Result) error {
	err := c.CSVSink.WriteBatch(results)
	c.cancel()
	return err
}

func TestRunFile_Resume(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "pathogenic_data.csv")
	writeTable(t, input,
		"NM_000546.6(TP53):c.5G>A (p.Arg2Gln)",
		"NM_000546.6(TP53):c.2G>A (p.Arg1Gly)",
		"NM_000546.6(TP53):c.4C>T (p.Arg2Ter)",
		"NM_000546.6(TP53):c.2G>A (p.Arg1Gln)",
		"NM_000546.6(TP53):c.8G>A (p.Arg3Gly)",
	)

	// Reference run without checkpoints.
	want := filepath.Join(dir, "want.csv")
	p := NewProcessor(TrackProtein, proteinMatrices(t), nil)
	p.SetBatchSize(2)
	wantSum, err := p.RunFile(context.Background(), "pathogenic", input, csvAt(want))
	require.NoError(t, err)

	store, err := checkpoint.Open(filepath.Join(dir, "ckpt.db"))
	require.NoError(t, err)
	defer store.Close()

	// Interrupted run: stops after the first batch.
	got := filepath.Join(dir, "got.csv")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p = NewProcessor(TrackProtein, proteinMatrices(t), nil)
	p.SetBatchSize(2)
	p.SetCheckpoint(store)
	p.SetOutputs(got)
	sum, err := p.RunFile(ctx, "pathogenic", input, func(_ string, pos output.Position) (output.Sink, error) {
		s, err := output.OpenCSVAt(got, pos.Offset)
		if err != nil {
			return nil, err
		}
		return &cancelingSink{CSVSink: s, cancel: cancel}, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, sum.Processed)

	prog, ok, err := store.Load(checkpoint.Key("protein", "pathogenic"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, prog.RowsConsumed)
	assert.False(t, prog.Final)

	// A partial batch after the checkpoint is discarded on resume.
	f, err := os.OpenFile(got, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("pathogenic,TP53,9,R,")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p = NewProcessor(TrackProtein, proteinMatrices(t), nil)
	p.SetBatchSize(2)
	p.SetCheckpoint(store)
	p.SetOutputs(got)
	sum, err = p.RunFile(context.Background(), "pathogenic", input, csvAt(got))
	require.NoError(t, err)
	assert.True(t, sum.Resumed)
	assert.Equal(t, wantSum.Total, sum.Total)
	assert.Equal(t, wantSum.Processed, sum.Processed)
	assert.Equal(t, wantSum.Reasons, sum.Reasons)

	wantData, err := os.ReadFile(want)
	require.NoError(t, err)
	gotData, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, string(wantData), string(gotData))

	// Completed: a rerun does nothing.
	sum, err = p.RunFile(context.Background(), "pathogenic", input, func(string, output.Position) (output.Sink, error) {
		t.Fatal("sink opened for a completed label")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, wantSum.Processed, sum.Processed)

	// Changed input: starts over.
	writeTable(t, input, "NM_000546.6(TP53):c.5G>A (p.Arg2Gln)")
	sum, err = p.RunFile(context.Background(), "pathogenic", input, csvAt(got))
	require.NoError(t, err)
	assert.False(t, sum.Resumed)
	assert.Equal(t, 1, sum.Total)

	results, err := output.LoadResults(got)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRunFile_CompletedCheckpoint(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "benign_data.csv")
	writeTable(t, input,
		"NM_000546.6(TP53):c.5G>A (p.Arg2Gln)",
		"NM_000546.6(TP53):c.4C>T (p.Arg2Ter)")

	store, err := checkpoint.Open(filepath.Join(dir, "ckpt.db"))
	require.NoError(t, err)
	defer store.Close()

	run := func(out string, others ...string) (Summary, int) {
		t.Helper()
		opened := 0
		p := NewProcessor(TrackProtein, proteinMatrices(t), nil)
		p.SetCheckpoint(store)
		p.SetOutputs(out, others...)
		sum, err := p.RunFile(context.Background(), "benign", input, func(label string, pos output.Position) (output.Sink, error) {
			opened++
			return csvAt(out)(label, pos)
		})
		require.NoError(t, err)
		return sum, opened
	}
	requireRows := func(path string, n int) {
		t.Helper()
		results, err := output.LoadResults(path)
		require.NoError(t, err)
		assert.Len(t, results, n)
	}

	first := filepath.Join(dir, "LLR", "benign_LLR_results.csv")
	sum, opened := run(first)
	assert.Equal(t, 1, opened)
	assert.False(t, sum.Resumed)
	requireRows(first, 1)

	tests := []struct {
		name       string
		setup      func()
		out        string
		others     []string
		wantOpened int
	}{
		{"same outputs", nil, first, nil, 0},
		{"result file removed", func() { require.NoError(t, os.Remove(first)) }, first, nil, 1},
		{"result file truncated", func() { require.NoError(t, os.Truncate(first, 10)) }, first, nil, 1},
		{"new output directory", nil, filepath.Join(dir, "other", "benign_LLR_results.csv"), nil, 1},
		{"database added", nil, filepath.Join(dir, "other", "benign_LLR_results.csv"), []string{"duckdb:llr.duckdb"}, 1},
		{"unchanged again", nil, filepath.Join(dir, "other", "benign_LLR_results.csv"), []string{"duckdb:llr.duckdb"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			sum, opened := run(tt.out, tt.others...)
			assert.Equal(t, tt.wantOpened, opened)
			assert.Equal(t, 2, sum.Total)
			assert.Equal(t, 1, sum.Processed)
			assert.Equal(t, tt.wantOpened == 0, sum.Resumed)
			requireRows(tt.out, 1)
		})
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProcessor(TrackProtein, proteinMatrices(t), nil)
	sum, err := p.Run(ctx, "benign", &sliceSource{names: []string{"NM_000546.6(TP53):c.5G>A (p.Arg2Gln)"}},
		func(string, output.Position) (output.Sink, error) {
			t.Fatal("sink opened for a canceled run")
			return nil, nil
		})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Total)
}

func TestRunFile_MissingInput(t *testing.T) {
	p := NewProcessor(TrackProtein, proteinMatrices(t), nil)
	_, err := p.RunFile(context.Background(), "benign", filepath.Join(t.TempDir(), "none.csv"), csvAt(filepath.Join(t.TempDir(), "o.csv")))
	assert.Error(t, err)
}

func TestParseTrack(t *testing.T) {
	tr, err := ParseTrack("gene")
	require.NoError(t, err)
	assert.Equal(t, TrackGene, tr)

	tr, err = ParseTrack("protein")
	require.NoError(t, err)
	assert.Equal(t, TrackProtein, tr)

	_, err = ParseTrack("codon")
	assert.Error(t, err)
}

func TestSummary_SortedReasons(t *testing.T) {
	s := newSummary("benign", TrackGene)
	s.skip(SkipNoGene)
	s.skip(SkipNonsense)
	s.skip(SkipNonsense)
	s.skip(SkipMissingMatrix)

	assert.Equal(t, []SkipReason{SkipNonsense, SkipMissingMatrix, SkipNoGene}, s.SortedReasons())
	assert.Equal(t, 4, s.Skipped)
}

// Package batch scores variant tables record by record, streaming results
// to a sink in fixed-size batches.
package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/gramllr/internal/checkpoint"
	"github.com/inodb/gramllr/internal/codon"
	"github.com/inodb/gramllr/internal/grammar"
	"github.com/inodb/gramllr/internal/llr"
	"github.com/inodb/gramllr/internal/output"
	"github.com/inodb/gramllr/internal/sequence"
	"github.com/inodb/gramllr/internal/table"
	"github.com/inodb/gramllr/internal/variant"
)

// DefaultBatchSize is the number of results buffered between flushes.
const DefaultBatchSize = 100

// Source yields variant table rows. Next returns nil, nil at end of input.
// *table.Reader implements it.
type Source interface {
	Next() (*table.Row, error)
}

// SinkOpener opens the output of one label, resuming at pos.
type SinkOpener func(label string, pos output.Position) (output.Sink, error)

// Processor scores records of one track. A Processor is used by a single
// goroutine; parallel runs each get their own Processor and providers.
type Processor struct {
	track       Track
	matrices    grammar.Provider
	sequences   sequence.Provider
	batchSize   int
	checkpoints *checkpoint.Store
	outputs     []string
	logger      *zap.Logger
}

// NewProcessor creates a processor. sequences may be nil for the protein
// track.
func NewProcessor(track Track, matrices grammar.Provider, sequences sequence.Provider) *Processor {
	return &Processor{
		track:     track,
		matrices:  matrices,
		sequences: sequences,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
	}
}

// SetBatchSize sets the flush size. Values below 1 are ignored.
func (p *Processor) SetBatchSize(n int) {
	if n > 0 {
		p.batchSize = n
	}
}

// SetCheckpoint enables resumable runs for RunFile.
func (p *Processor) SetCheckpoint(s *checkpoint.Store) {
	p.checkpoints = s
}

// SetOutputs names where the sink writes: the result file first, then any
// other destinations (a database, say). Saved progress is reused only while
// a rerun writes to the same destinations and the result file still holds
// every checkpointed byte.
func (p *Processor) SetOutputs(resultFile string, others ...string) {
	p.outputs = append([]string{resultFile}, others...)
}

// SetLogger sets the logger for skip diagnostics and progress.
func (p *Processor) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Track returns the processor's track.
func (p *Processor) Track() Track {
	return p.track
}

// Score parses name and computes its LLR. Failures are returned as
// *SkipError.
func (p *Processor) Score(label, name string) (llr.Result, error) {
	res, _, err := p.score(label, name)
	return res, err
}

func (p *Processor) score(label, name string) (llr.Result, string, error) {
	rec, err := variant.Parse(name)
	if err != nil {
		return llr.Result{}, rec.Gene, skip(SkipNoGene, err)
	}
	gene := rec.Gene

	m, err := p.matrices.Matrix(gene)
	if err != nil {
		return llr.Result{}, gene, skip(SkipMissingMatrix, err)
	}

	site, ok := rec.AminoAcidSite()
	if !ok {
		return llr.Result{}, gene, skip(SkipNoSite, fmt.Errorf("no amino-acid site in %q", name))
	}
	if rec.IsNonsense() {
		return llr.Result{}, gene, skip(SkipNonsense, fmt.Errorf("absent residue in %s", rec.Protein))
	}

	var ref, mut string
	switch p.track {
	case TrackGene:
		if p.sequences == nil {
			return llr.Result{}, gene, skip(SkipMissingSequence, fmt.Errorf("%w: no sequence source", sequence.ErrNotFound))
		}
		cds, err := p.sequences.Sequence(gene)
		if err != nil {
			return llr.Result{}, gene, skip(SkipMissingSequence, err)
		}
		pair, err := codon.Locate(cds, rec.Nucleotide, site)
		if err != nil {
			return llr.Result{}, gene, skip(classify(err), err)
		}
		ref, mut = pair.Ref, pair.Mut
	default:
		ref, mut = string(rec.Protein.Ref), string(rec.Protein.Alt)
	}

	v, err := llr.Score(m, site, ref, mut)
	if err != nil {
		return llr.Result{}, gene, skip(classify(err), err)
	}
	return llr.Result{Label: label, Gene: gene, Site: site, Ref: ref, Mut: mut, LLR: v}, gene, nil
}

// runState holds the checkpoint identity of one RunFile call.
type runState struct {
	key    string
	input  checkpoint.Fingerprint
	resume *checkpoint.Progress
}

// Run scores every row of src in input order and writes results through a
// sink obtained from open. Only a sink failure (or a read error on src)
// aborts the run; per-record failures are counted in the summary.
func (p *Processor) Run(ctx context.Context, label string, src Source, open SinkOpener) (Summary, error) {
	return p.run(ctx, label, src, open, runState{})
}

// RunFile runs a variant table file. With a checkpoint store set, progress
// is saved after every flush and an interrupted run resumes after its last
// flushed batch, provided the input file is unchanged and the outputs set
// with SetOutputs are intact. A completed label is not rerun under the same
// conditions.
func (p *Processor) RunFile(ctx context.Context, label, path string, open SinkOpener) (Summary, error) {
	src, err := table.Open(path)
	if err != nil {
		return newSummary(label, p.track), err
	}
	defer src.Close()

	if p.checkpoints == nil {
		return p.run(ctx, label, src, open, runState{})
	}

	r := runState{key: checkpoint.Key(string(p.track), label)}
	if r.input, err = checkpoint.StatFile(path); err != nil {
		return newSummary(label, p.track), fmt.Errorf("stat input: %w", err)
	}
	prog, ok, err := p.checkpoints.Load(r.key)
	if err != nil {
		return newSummary(label, p.track), err
	}
	switch {
	case !ok:
	case !prog.Input.Matches(r.input):
		p.logger.Info("input changed since checkpoint, starting over",
			zap.String("label", label), zap.String("path", path))
	case !prog.OutputIntact(p.outputs):
		p.logger.Info("output missing or changed since checkpoint, starting over",
			zap.String("label", label), zap.Strings("outputs", p.outputs))
	case prog.Final:
		s := summaryFromProgress(label, p.track, prog)
		p.logger.Info("label already complete, nothing to do", summaryField(s))
		return s, nil
	default:
		n, err := src.Skip(prog.RowsConsumed)
		if err != nil {
			return newSummary(label, p.track), fmt.Errorf("skip consumed rows: %w", err)
		}
		if n != prog.RowsConsumed {
			return newSummary(label, p.track), fmt.Errorf("checkpoint expects %d rows, input has %d", prog.RowsConsumed, n)
		}
		p.logger.Info("resuming from checkpoint",
			zap.String("label", label),
			zap.Int("rows", prog.RowsConsumed),
			zap.Int64("offset", prog.Offset))
		r.resume = &prog
	}
	return p.run(ctx, label, src, open, r)
}

func (p *Processor) run(ctx context.Context, label string, src Source, open SinkOpener, r runState) (sum Summary, err error) {
	sum = newSummary(label, p.track)
	var pos output.Position
	if r.resume != nil {
		sum = summaryFromProgress(label, p.track, *r.resume)
		pos = output.Position{Offset: r.resume.Offset, Rows: r.resume.Processed}
	}

	// Opening may truncate the previous output; leave it alone when the run
	// is already cancelled.
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	sink, err := open(label, pos)
	if err != nil {
		return sum, fmt.Errorf("open output for %s: %w", label, err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output for %s: %w", label, cerr)
		}
	}()

	pending := make([]llr.Result, 0, p.batchSize)
	flush := func(final bool) error {
		if len(pending) > 0 {
			if err := sink.WriteBatch(pending); err != nil {
				return fmt.Errorf("write batch for %s: %w", label, err)
			}
			p.logger.Info("flushed batch",
				zap.String("label", label),
				zap.Int("rows", len(pending)),
				zap.Int("processed", sum.Processed))
			pending = make([]llr.Result, 0, p.batchSize)
		}
		return p.save(r, sum, sink, final)
	}

	for {
		if cerr := ctx.Err(); cerr != nil {
			if err := flush(false); err != nil {
				return sum, err
			}
			return sum, cerr
		}

		row, rerr := src.Next()
		if rerr != nil {
			if err := flush(false); err != nil {
				return sum, err
			}
			return sum, fmt.Errorf("read %s: %w", label, rerr)
		}
		if row == nil {
			break
		}
		sum.Total++

		res, gene, serr := p.score(label, row.Name)
		if serr != nil {
			reason := SkipOther
			var se *SkipError
			if errors.As(serr, &se) {
				reason = se.Reason
			}
			sum.skip(reason)
			p.logger.Warn("skipping record",
				zap.String("label", label),
				zap.String("gene", gene),
				zap.String("name", row.Name),
				zap.Int("line", row.Line),
				zap.String("reason", string(reason)),
				zap.Error(serr))
			continue
		}

		sum.Processed++
		pending = append(pending, res)
		if len(pending) >= p.batchSize {
			if err := flush(false); err != nil {
				return sum, err
			}
		}
	}

	if err := flush(true); err != nil {
		return sum, err
	}
	p.logger.Info("finished label", summaryField(sum))
	return sum, nil
}

func (p *Processor) save(r runState, sum Summary, sink output.Sink, final bool) error {
	if p.checkpoints == nil || r.key == "" {
		return nil
	}
	var offset int64
	if o, ok := sink.(output.Offsetter); ok {
		offset = o.Offset()
	}
	prog := sum.progress(r.input, offset, final)
	prog.Outputs = p.outputs
	if err := p.checkpoints.Save(r.key, prog); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

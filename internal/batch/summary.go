package batch

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/gramllr/internal/checkpoint"
)

// Summary reports the outcome of one label's run.
// Processed + Skipped == Total always holds.
type Summary struct {
	Label     string
	Track     Track
	Total     int
	Processed int
	Skipped   int
	Reasons   map[SkipReason]int
	Resumed   bool
}

func newSummary(label string, track Track) Summary {
	return Summary{Label: label, Track: track, Reasons: make(map[SkipReason]int)}
}

func (s *Summary) skip(reason SkipReason) {
	s.Skipped++
	s.Reasons[reason]++
}

// SortedReasons returns the skip reasons seen, most frequent first.
func (s Summary) SortedReasons() []SkipReason {
	reasons := make([]SkipReason, 0, len(s.Reasons))
	for r := range s.Reasons {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool {
		ci, cj := s.Reasons[reasons[i]], s.Reasons[reasons[j]]
		if ci != cj {
			return ci > cj
		}
		return reasons[i] < reasons[j]
	})
	return reasons
}

// MarshalLogObject lets a Summary be logged with zap.Object.
func (s Summary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("label", s.Label)
	enc.AddString("track", string(s.Track))
	enc.AddInt("total", s.Total)
	enc.AddInt("processed", s.Processed)
	enc.AddInt("skipped", s.Skipped)
	if s.Resumed {
		enc.AddBool("resumed", true)
	}
	return enc.AddObject("reasons", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		for _, r := range s.SortedReasons() {
			enc.AddInt(string(r), s.Reasons[r])
		}
		return nil
	}))
}

func (s Summary) progress(input checkpoint.Fingerprint, offset int64, final bool) checkpoint.Progress {
	reasons := make(map[string]int, len(s.Reasons))
	for r, n := range s.Reasons {
		reasons[string(r)] = n
	}
	return checkpoint.Progress{
		Input:        input,
		RowsConsumed: s.Total,
		Processed:    s.Processed,
		Skipped:      s.Skipped,
		SkipReasons:  reasons,
		Offset:       offset,
		Final:        final,
	}
}

func summaryFromProgress(label string, track Track, p checkpoint.Progress) Summary {
	s := newSummary(label, track)
	s.Total = p.RowsConsumed
	s.Processed = p.Processed
	s.Skipped = p.Skipped
	for r, n := range p.SkipReasons {
		s.Reasons[SkipReason(r)] = n
	}
	s.Resumed = true
	return s
}

var _ zapcore.ObjectMarshaler = Summary{}

// summaryField is a shorthand used by the processor's log lines.
func summaryField(s Summary) zap.Field {
	return zap.Object("summary", s)
}

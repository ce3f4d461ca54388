package batch

import (
	"errors"
	"fmt"

	"github.com/inodb/gramllr/internal/codon"
	"github.com/inodb/gramllr/internal/grammar"
	"github.com/inodb/gramllr/internal/llr"
	"github.com/inodb/gramllr/internal/sequence"
	"github.com/inodb/gramllr/internal/variant"
)

// Track selects how mutation tokens are derived from a record.
type Track string

const (
	// TrackGene scores codons derived from the coding sequence.
	TrackGene Track = "gene"
	// TrackProtein scores the parsed amino-acid residues directly.
	TrackProtein Track = "protein"
)

// ParseTrack validates a track name.
func ParseTrack(s string) (Track, error) {
	switch Track(s) {
	case TrackGene, TrackProtein:
		return Track(s), nil
	}
	return "", fmt.Errorf("unknown track %q (want %q or %q)", s, TrackGene, TrackProtein)
}

// SkipReason classifies why a record produced no result.
type SkipReason string

const (
	SkipNoGene                  SkipReason = "no_gene"
	SkipMissingMatrix           SkipReason = "missing_matrix"
	SkipMissingSequence         SkipReason = "missing_sequence"
	SkipNonsense                SkipReason = "nonsense"
	SkipNoSite                  SkipReason = "no_site"
	SkipNoNucleotideChange      SkipReason = "no_nucleotide_change"
	SkipInconsistentCoordinates SkipReason = "inconsistent_coordinates"
	SkipInvalidCodon            SkipReason = "invalid_codon"
	SkipUnknownToken            SkipReason = "unknown_token"
	SkipSiteOutOfRange          SkipReason = "site_out_of_range"
	SkipDegenerateProbability   SkipReason = "degenerate_probability"
	SkipOther                   SkipReason = "other"
)

// SkipError is a per-record failure. It never aborts a batch.
type SkipError struct {
	Reason SkipReason
	Err    error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

func skip(reason SkipReason, err error) *SkipError {
	return &SkipError{Reason: reason, Err: err}
}

// classify maps a locator or lookup error to its skip reason.
func classify(err error) SkipReason {
	switch {
	case errors.Is(err, variant.ErrNoGene), errors.Is(err, variant.ErrEmpty):
		return SkipNoGene
	case errors.Is(err, grammar.ErrNotFound):
		return SkipMissingMatrix
	case errors.Is(err, sequence.ErrNotFound):
		return SkipMissingSequence
	case errors.Is(err, codon.ErrNoNucleotideChange):
		return SkipNoNucleotideChange
	case errors.Is(err, codon.ErrInconsistentCoordinates):
		return SkipInconsistentCoordinates
	case errors.Is(err, codon.ErrInvalidCodon):
		return SkipInvalidCodon
	case errors.Is(err, grammar.ErrUnknownToken):
		return SkipUnknownToken
	case errors.Is(err, grammar.ErrSiteOutOfRange), errors.Is(err, codon.ErrSiteOutOfRange):
		return SkipSiteOutOfRange
	case errors.Is(err, llr.ErrDegenerateProbability):
		return SkipDegenerateProbability
	}
	return SkipOther
}

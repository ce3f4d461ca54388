// Package llr computes log-likelihood ratios between mutant and wild-type
// tokens from grammaticality probabilities.
package llr

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateProbability is returned for probabilities outside (0, 1].
var ErrDegenerateProbability = errors.New("degenerate probability")

// Lookup returns the probability of a token at a 1-based site.
// *grammar.Matrix implements it.
type Lookup interface {
	Probability(site int, token string) (float64, error)
}

// Result is one scored mutation. Positive LLR means the model prefers the
// mutant token over the wild type.
type Result struct {
	Label string
	Gene  string
	Site  int
	Ref   string
	Mut   string
	LLR   float64
}

// Ratio returns ln(mt) - ln(wt). Both must lie in (0, 1].
func Ratio(wt, mt float64) (float64, error) {
	if err := checkProbability("wild-type", wt); err != nil {
		return 0, err
	}
	if err := checkProbability("mutant", mt); err != nil {
		return 0, err
	}
	return math.Log(mt) - math.Log(wt), nil
}

func checkProbability(role string, p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 || p > 1 {
		return fmt.Errorf("%w: %s probability %v", ErrDegenerateProbability, role, p)
	}
	return nil
}

// Score looks up ref and mut at site and returns their ratio.
func Score(m Lookup, site int, ref, mut string) (float64, error) {
	wt, err := m.Probability(site, ref)
	if err != nil {
		return 0, fmt.Errorf("wild-type %s: %w", ref, err)
	}
	mt, err := m.Probability(site, mut)
	if err != nil {
		return 0, fmt.Errorf("mutant %s: %w", mut, err)
	}
	return Ratio(wt, mt)
}

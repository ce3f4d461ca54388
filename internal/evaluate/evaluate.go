// Package evaluate measures how well LLR scores separate pathogenic from
// benign variants.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/inodb/gramllr/internal/llr"
)

// ErrSingleClass is returned when the data lacks positives or negatives.
var ErrSingleClass = errors.New("need both positive and negative examples")

// Class returns whether label is a positive (pathogenic) class. known is
// false for labels that are neither pathogenic nor benign.
func Class(label string) (positive, known bool) {
	switch label {
	case "pathogenic", "likely_pathogenic":
		return true, true
	case "benign", "likely_benign":
		return false, true
	}
	return false, false
}

// Metrics summarises discrimination of one score set.
type Metrics struct {
	N         int
	Positives int
	Negatives int
	Ignored   int // results whose label has no class
	ROCAUC    float64
	PRAUC     float64
}

// Evaluate scores results by -LLR (lower LLR means more damaging) and
// computes ROC and precision-recall AUCs.
func Evaluate(results []llr.Result) (Metrics, error) {
	var m Metrics
	scores := make([]float64, 0, len(results))
	classes := make([]bool, 0, len(results))
	for _, r := range results {
		pos, known := Class(r.Label)
		if !known || math.IsNaN(r.LLR) {
			m.Ignored++
			continue
		}
		scores = append(scores, -r.LLR)
		classes = append(classes, pos)
		if pos {
			m.Positives++
		} else {
			m.Negatives++
		}
	}
	m.N = len(scores)

	var err error
	if m.ROCAUC, err = ROCAUC(scores, classes); err != nil {
		return m, err
	}
	if m.PRAUC, err = PRAUC(scores, classes); err != nil {
		return m, err
	}
	return m, nil
}

func checkClasses(scores []float64, classes []bool) error {
	if len(scores) != len(classes) {
		return fmt.Errorf("%d scores but %d classes", len(scores), len(classes))
	}
	var pos, neg bool
	for _, c := range classes {
		if c {
			pos = true
		} else {
			neg = true
		}
	}
	if !pos || !neg {
		return ErrSingleClass
	}
	return nil
}

// ROCAUC returns the area under the ROC curve, higher scores predicting
// the positive class.
func ROCAUC(scores []float64, classes []bool) (float64, error) {
	if err := checkClasses(scores, classes); err != nil {
		return 0, err
	}
	y := append([]float64(nil), scores...)
	c := append([]bool(nil), classes...)
	stat.SortWeightedLabeled(y, c, nil)

	tpr, fpr, _ := stat.ROC(nil, y, c, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// PRAUC returns the trapezoidal area under the precision-recall curve. The
// curve starts at recall 0, precision 1 and has one point per distinct
// score threshold.
func PRAUC(scores []float64, classes []bool) (float64, error) {
	if err := checkClasses(scores, classes); err != nil {
		return 0, err
	}
	idx := make([]int, len(scores))
	totalPos := 0
	for i := range idx {
		idx[i] = i
		if classes[i] {
			totalPos++
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	recall := []float64{0}
	precision := []float64{1}
	tp, fp := 0, 0
	for i, j := range idx {
		if classes[j] {
			tp++
		} else {
			fp++
		}
		// One point per threshold: wait for the last of a run of ties.
		if i+1 < len(idx) && scores[idx[i+1]] == scores[j] {
			continue
		}
		recall = append(recall, float64(tp)/float64(totalPos))
		precision = append(precision, float64(tp)/float64(tp+fp))
	}
	return integrate.Trapezoidal(recall, precision), nil
}

// LabelStats describes the LLR distribution of one label.
type LabelStats struct {
	Label  string
	N      int
	Mean   float64
	StdDev float64
}

// Describe returns per-label LLR statistics sorted by label.
func Describe(results []llr.Result) []LabelStats {
	byLabel := make(map[string][]float64)
	for _, r := range results {
		byLabel[r.Label] = append(byLabel[r.Label], r.LLR)
	}
	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	out := make([]LabelStats, 0, len(labels))
	for _, l := range labels {
		x := byLabel[l]
		mean, std := stat.MeanStdDev(x, nil)
		if len(x) < 2 {
			std = 0
		}
		out = append(out, LabelStats{Label: l, N: len(x), Mean: mean, StdDev: std})
	}
	return out
}

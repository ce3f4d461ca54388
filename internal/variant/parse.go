package variant

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/inodb/gramllr/internal/alphabet"
)

var (
	// ErrEmpty is returned for blank names.
	ErrEmpty = errors.New("empty variant name")
	// ErrNoGene is returned when no gene symbol could be found. The
	// returned Record still carries whatever else was parsed.
	ErrNoGene = errors.New("no gene symbol in variant name")
)

// Regexes for the fields of a ClinVar-style name:
//
//	NM_000546.6(TP53):c.743G>A (p.Arg248Gln)
//
// A protein change must end after the mutant residue, so frameshifts
// (p.Arg249GlyfsTer5) and extensions (p.Ter394Glnext*) do not match.
var (
	reNucleotide = regexp.MustCompile(`c\.(\d+)([A-Z])>([A-Z])`)
	reProtein    = regexp.MustCompile(`p\.([A-Za-z]{3})(\d+)([A-Za-z]{3}|\*|=)(?:$|[^A-Za-z])`)
	reParens     = regexp.MustCompile(`\(([^()\s]+)\)`)
)

// Parse extracts a Record from a free-text variant name. Extraction is
// best-effort: fields that do not match are left nil. Only a missing gene
// symbol is reported as an error.
func Parse(name string) (Record, error) {
	rec := Record{Name: name}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return rec, ErrEmpty
	}

	rec.Nucleotide = parseNucleotide(trimmed)
	rec.Protein = parseProtein(trimmed)
	rec.Gene = parseGene(trimmed)

	if rec.Gene == "" {
		return rec, ErrNoGene
	}
	return rec, nil
}

func parseNucleotide(name string) *NucleotideChange {
	m := reNucleotide.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	site, ok := parseSite(m[1])
	if !ok {
		return nil
	}
	return &NucleotideChange{Site: site, Ref: m[2][0], Alt: m[3][0]}
}

func parseProtein(name string) *ProteinChange {
	m := reProtein.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	site, ok := parseSite(m[2])
	if !ok {
		return nil
	}
	p := &ProteinChange{Site: site}
	if aa, ok := alphabet.ThreeToOne(m[1]); ok {
		p.Ref = aa
	}
	switch m[3] {
	case "=":
		// Synonymous: the mutant residue is the reference residue.
		p.Alt = p.Ref
	case "*":
		// Stop gained, Alt stays absent.
	default:
		if aa, ok := alphabet.ThreeToOne(m[3]); ok {
			p.Alt = aa
		}
	}
	return p
}

// parseGene returns the first parenthesised token that is not itself a
// coding or protein change.
func parseGene(name string) string {
	for _, m := range reParens.FindAllStringSubmatch(name, -1) {
		tok := m[1]
		if strings.HasPrefix(tok, "p.") || strings.HasPrefix(tok, "c.") {
			continue
		}
		return tok
	}
	return ""
}

// parseSite parses a 1-based positive integer.
func parseSite(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Package variant parses clinical variant names into mutation records.
package variant

import (
	"fmt"
	"strings"

	"github.com/inodb/gramllr/internal/alphabet"
)

// NucleotideChange is a single-base substitution in coding DNA (c.<site><ref>><alt>).
type NucleotideChange struct {
	Site int  // 1-based position in the coding sequence
	Ref  byte // reference base (A, C, G, T)
	Alt  byte // mutant base (A, C, G, T)
}

// String formats the change in HGVS coding notation, e.g. "c.743G>A".
func (n NucleotideChange) String() string {
	return fmt.Sprintf("c.%d%c>%c", n.Site, n.Ref, n.Alt)
}

// ProteinChange is an amino-acid substitution (p.<Ref><site><Alt>).
// Ref or Alt is zero when the residue could not be mapped to one of the
// 20 standard residues; that marks a nonsense or unparseable change.
type ProteinChange struct {
	Site int  // 1-based codon position
	Ref  byte // one-letter reference residue, 0 if absent
	Alt  byte // one-letter mutant residue, 0 if absent
}

// IsNonsense reports whether either residue is absent.
func (p ProteinChange) IsNonsense() bool {
	return p.Ref == 0 || p.Alt == 0
}

// String formats the change with three-letter codes, e.g. "p.Arg248Gln".
func (p ProteinChange) String() string {
	return fmt.Sprintf("p.%s%d%s", residueThree(p.Ref), p.Site, residueThree(p.Alt))
}

func residueThree(aa byte) string {
	if aa == 0 {
		return "?"
	}
	if three, ok := alphabet.OneToThree(aa); ok {
		return three
	}
	return "Xaa"
}

// Record is the structured form of one variant name. Records are values;
// nothing mutates a Record after Parse returns it.
type Record struct {
	Name       string            // raw annotation string
	Gene       string            // gene symbol, empty if none was found
	Nucleotide *NucleotideChange // nil unless a c. substitution was found
	Protein    *ProteinChange    // nil unless a p. substitution was found
}

// AminoAcidSite returns the 1-based codon position, if known.
func (r Record) AminoAcidSite() (int, bool) {
	if r.Protein == nil || r.Protein.Site < 1 {
		return 0, false
	}
	return r.Protein.Site, true
}

// IsNonsense reports whether the record has a protein change with an
// absent residue.
func (r Record) IsNonsense() bool {
	return r.Protein != nil && r.Protein.IsNonsense()
}

// String returns a compact description used in diagnostics.
func (r Record) String() string {
	var parts []string
	if r.Gene != "" {
		parts = append(parts, r.Gene)
	}
	if r.Nucleotide != nil {
		parts = append(parts, r.Nucleotide.String())
	}
	if r.Protein != nil {
		parts = append(parts, r.Protein.String())
	}
	if len(parts) == 0 {
		return r.Name
	}
	return strings.Join(parts, " ")
}

// Package codon maps nucleotide-level substitutions onto reading-frame codons.
package codon

import (
	"errors"
	"fmt"

	"github.com/inodb/gramllr/internal/alphabet"
	"github.com/inodb/gramllr/internal/variant"
)

var (
	ErrNoNucleotideChange      = errors.New("no nucleotide change")
	ErrSiteOutOfRange          = errors.New("amino acid site outside coding sequence")
	ErrInconsistentCoordinates = errors.New("intra-codon offset out of range")
	ErrInvalidCodon            = errors.New("codon not in alphabet")
)

// Pair holds the wild-type and mutant RNA codons at one site.
type Pair struct {
	Ref string
	Mut string
}

// Split cuts a coding sequence into consecutive triplets starting at index 0.
// A trailing partial triplet is kept as the last element.
func Split(cds string) []string {
	out := make([]string, 0, (len(cds)+2)/3)
	for i := 0; i < len(cds); i += 3 {
		end := min(i+3, len(cds))
		out = append(out, cds[i:end])
	}
	return out
}

// At returns the triplet for a 1-based amino acid site, transcribed to RNA.
// The result may be shorter than 3 bases at a truncated sequence end.
func At(cds string, aaSite int) (string, error) {
	if aaSite < 1 {
		return "", fmt.Errorf("%w: site %d", ErrSiteOutOfRange, aaSite)
	}
	start := (aaSite - 1) * 3
	if start >= len(cds) {
		return "", fmt.Errorf("%w: site %d, sequence has %d bases", ErrSiteOutOfRange, aaSite, len(cds))
	}
	end := min(start+3, len(cds))
	return alphabet.Transcribe(cds[start:end]), nil
}

// Offset returns the 0-based position within its codon of a 1-based
// nucleotide site: (site-1) mod 3.
func Offset(ntSite int) int {
	return (ntSite - 1) % 3
}

// Mutate replaces the base at offset in an RNA codon.
func Mutate(codon string, offset int, base byte) (string, error) {
	if offset < 0 || offset >= 3 {
		return "", fmt.Errorf("%w: offset %d", ErrInconsistentCoordinates, offset)
	}
	if len(codon) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCodon, codon)
	}
	var buf [3]byte
	copy(buf[:], codon)
	buf[offset] = alphabet.TranscribeBase(base)
	return string(buf[:]), nil
}

// Locate derives the reference and mutant codons for a substitution at
// nt within the codon at aaSite of cds.
func Locate(cds string, nt *variant.NucleotideChange, aaSite int) (Pair, error) {
	if nt == nil {
		return Pair{}, ErrNoNucleotideChange
	}
	ref, err := At(cds, aaSite)
	if err != nil {
		return Pair{}, err
	}
	mut, err := Mutate(ref, Offset(nt.Site), nt.Alt)
	if err != nil {
		return Pair{Ref: ref}, err
	}
	p := Pair{Ref: ref, Mut: mut}
	if !alphabet.IsCodon(p.Ref) || !alphabet.IsCodon(p.Mut) {
		return p, fmt.Errorf("%w: ref %q mut %q", ErrInvalidCodon, p.Ref, p.Mut)
	}
	return p, nil
}

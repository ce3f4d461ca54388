// Package alphabet provides the fixed token alphabets scored by the
// grammaticality models: 64 RNA codons and 20 amino acids plus stop.
package alphabet

import "strings"

// Stop is the amino acid symbol for a stop codon.
const Stop byte = '*'

// codonTable is the standard genetic code keyed by RNA codon.
var codonTable = map[string]byte{
	"UUU": 'F', "UUC": 'F', "UUA": 'L', "UUG": 'L',
	"UCU": 'S', "UCC": 'S', "UCA": 'S', "UCG": 'S',
	"UAU": 'Y', "UAC": 'Y', "UAA": '*', "UAG": '*',
	"UGU": 'C', "UGC": 'C', "UGA": '*', "UGG": 'W',

	"CUU": 'L', "CUC": 'L', "CUA": 'L', "CUG": 'L',
	"CCU": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"CAU": 'H', "CAC": 'H', "CAA": 'Q', "CAG": 'Q',
	"CGU": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R',

	"AUU": 'I', "AUC": 'I', "AUA": 'I', "AUG": 'M',
	"ACU": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"AAU": 'N', "AAC": 'N', "AAA": 'K', "AAG": 'K',
	"AGU": 'S', "AGC": 'S', "AGA": 'R', "AGG": 'R',

	"GUU": 'V', "GUC": 'V', "GUA": 'V', "GUG": 'V',
	"GCU": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"GAU": 'D', "GAC": 'D', "GAA": 'E', "GAG": 'E',
	"GGU": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
}

// codons lists the 64 codons in the column order the codon model emits.
var codons = [64]string{
	"AAA", "AAU", "AAC", "AAG",
	"AUA", "AUU", "AUC", "AUG",
	"ACA", "ACU", "ACC", "ACG",
	"AGA", "AGU", "AGC", "AGG",
	"UAA", "UAU", "UAC", "UAG",
	"UUA", "UUU", "UUC", "UUG",
	"UCA", "UCU", "UCC", "UCG",
	"UGA", "UGU", "UGC", "UGG",
	"CAA", "CAU", "CAC", "CAG",
	"CUA", "CUU", "CUC", "CUG",
	"CCA", "CCU", "CCC", "CCG",
	"CGA", "CGU", "CGC", "CGG",
	"GAA", "GAU", "GAC", "GAG",
	"GUA", "GUU", "GUC", "GUG",
	"GCA", "GCU", "GCC", "GCG",
	"GGA", "GGU", "GGC", "GGG",
}

// aminoAcids lists the 20 standard residues in the column order the
// protein model emits.
var aminoAcids = [20]byte{
	'K', 'N', 'I', 'M', 'T',
	'R', 'S', 'Y', 'L', 'F',
	'C', 'W', 'Q', 'H', 'P',
	'E', 'D', 'V', 'A', 'G',
}

// threeToOne maps three-letter residue codes to one-letter symbols.
// Stop (Ter) and ambiguous codes (Xaa, Sec, Pyl) are deliberately absent.
var threeToOne = map[string]byte{
	"Ala": 'A', "Arg": 'R', "Asn": 'N', "Asp": 'D', "Cys": 'C',
	"Glu": 'E', "Gln": 'Q', "Gly": 'G', "His": 'H', "Ile": 'I',
	"Leu": 'L', "Lys": 'K', "Met": 'M', "Phe": 'F', "Pro": 'P',
	"Ser": 'S', "Thr": 'T', "Trp": 'W', "Tyr": 'Y', "Val": 'V',
}

var oneToThree map[byte]string

func init() {
	oneToThree = make(map[byte]string, len(threeToOne)+1)
	for three, one := range threeToOne {
		oneToThree[one] = three
	}
	oneToThree[Stop] = "Ter"
}

// Codons returns the 64 RNA codons.
func Codons() []string {
	out := make([]string, len(codons))
	copy(out, codons[:])
	return out
}

// AminoAcids returns the 20 standard one-letter residues as strings.
func AminoAcids() []string {
	out := make([]string, len(aminoAcids))
	for i, aa := range aminoAcids {
		out[i] = string(aa)
	}
	return out
}

// IsCodon reports whether s is one of the 64 RNA codons.
func IsCodon(s string) bool {
	_, ok := codonTable[s]
	return ok
}

// IsAminoAcid reports whether b is one of the 20 standard residues.
func IsAminoAcid(b byte) bool {
	_, ok := oneToThree[b]
	return ok && b != Stop
}

// Translate returns the amino acid encoded by an RNA codon.
// Stop codons translate to Stop.
func Translate(codon string) (byte, bool) {
	aa, ok := codonTable[codon]
	return aa, ok
}

// Transcribe upper-cases a DNA string and rewrites T to U.
func Transcribe(dna string) string {
	buf := []byte(strings.ToUpper(dna))
	for i, b := range buf {
		if b == 'T' {
			buf[i] = 'U'
		}
	}
	return string(buf)
}

// TranscribeBase is Transcribe for a single base.
func TranscribeBase(b byte) byte {
	switch b {
	case 'T', 't':
		return 'U'
	case 'a':
		return 'A'
	case 'c':
		return 'C'
	case 'g':
		return 'G'
	}
	return b
}

// ThreeToOne converts a three-letter residue code (any case) to its
// one-letter symbol. It fails for stop and ambiguous codes.
func ThreeToOne(code string) (byte, bool) {
	if len(code) != 3 {
		return 0, false
	}
	aa, ok := threeToOne[strings.ToUpper(code[:1])+strings.ToLower(code[1:])]
	return aa, ok
}

// OneToThree converts a one-letter residue (or Stop) to its three-letter code.
func OneToThree(aa byte) (string, bool) {
	three, ok := oneToThree[aa]
	return three, ok
}

package evaluate

import (
	"math"

	"github.com/inodb/gramllr/internal/alphabet"
	"github.com/inodb/gramllr/internal/llr"
)

// Weights of the combined gene/protein score.
const (
	GeneWeight        = 0.265
	ProteinCubeWeight = 0.006
	InteractionWeight = 0.04
)

// CombineScore merges a codon-level LLR g and a residue-level LLR p.
func CombineScore(g, p float64) float64 {
	return GeneWeight*g + ProteinCubeWeight*math.Pow(p, 3) + InteractionWeight*g*p
}

type joinKey struct {
	label, gene string
	site        int
	ref, mut    string
}

// residues translates a gene-track codon pair to amino acids. Tokens that
// are not codons are returned unchanged, so they never match.
func residues(ref, mut string) (string, string) {
	if aa, ok := alphabet.Translate(ref); ok {
		ref = string(aa)
	}
	if aa, ok := alphabet.Translate(mut); ok {
		mut = string(aa)
	}
	return ref, mut
}

// Combine pairs gene-track and protein-track results of the same variant,
// matching label, gene, site and the amino-acid change (gene-track codons
// are translated), and returns one result per pair in gene-track order with
// the combined score as LLR. Repeated variants pair up in order of
// appearance; unmatched results are dropped and counted.
func Combine(gene, protein []llr.Result) (combined []llr.Result, unmatched int) {
	queue := make(map[joinKey][]llr.Result)
	for _, p := range protein {
		k := joinKey{p.Label, p.Gene, p.Site, p.Ref, p.Mut}
		queue[k] = append(queue[k], p)
	}

	for _, g := range gene {
		ref, mut := residues(g.Ref, g.Mut)
		k := joinKey{g.Label, g.Gene, g.Site, ref, mut}
		ps := queue[k]
		if len(ps) == 0 {
			unmatched++
			continue
		}
		p := ps[0]
		queue[k] = ps[1:]
		combined = append(combined, llr.Result{
			Label: g.Label,
			Gene:  g.Gene,
			Site:  g.Site,
			Ref:   p.Ref,
			Mut:   p.Mut,
			LLR:   CombineScore(g.LLR, p.LLR),
		})
	}
	for _, ps := range queue {
		unmatched += len(ps)
	}
	return combined, unmatched
}

package codon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/gramllr/internal/variant"
)

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"ATG", "GAA", "GGC"}, Split("ATGGAAGGC"))
	assert.Equal(t, []string{"ATG", "GA"}, Split("ATGGA"))
	assert.Empty(t, Split(""))
}

func TestLocate_SecondCodonFirstBase(t *testing.T) {
	nt := &variant.NucleotideChange{Site: 4, Ref: 'A', Alt: 'C'}

	assert.Equal(t, 0, Offset(nt.Site))

	p, err := Locate("ATGGAAGGC", nt, 2)
	require.NoError(t, err)
	assert.Equal(t, "GAA", p.Ref)
	assert.Equal(t, "CAA", p.Mut)
}

func TestLocate_Offsets(t *testing.T) {
	cds := "ATGGAAGGC"
	tests := []struct {
		site   int
		aaSite int
		alt    byte
		want   Pair
	}{
		{1, 1, 'C', Pair{"AUG", "CUG"}},
		{2, 1, 'C', Pair{"AUG", "ACG"}},
		{3, 1, 'A', Pair{"AUG", "AUA"}},
		{6, 2, 'T', Pair{"GAA", "GAU"}},
		{9, 3, 'T', Pair{"GGC", "GGU"}},
	}

	for _, tt := range tests {
		p, err := Locate(cds, &variant.NucleotideChange{Site: tt.site, Alt: tt.alt}, tt.aaSite)
		require.NoError(t, err)
		assert.Equal(t, tt.want, p, "site %d", tt.site)
	}
}

func TestOffset_FramePeriodicity(t *testing.T) {
	for n := 1; n <= 300; n++ {
		off := Offset(n)
		assert.GreaterOrEqual(t, off, 0)
		assert.Less(t, off, 3)
		assert.Equal(t, off, Offset(n+3), "site %d", n)
	}
}

// The alternate formula site%3-1 disagrees with (site-1)%3 whenever
// site%3 == 0, where it yields -1 instead of 2.
func TestOffset_AlternateFormulaDiffers(t *testing.T) {
	alternate := func(site int) int { return site%3 - 1 }

	for n := 1; n <= 30; n++ {
		if n%3 == 0 {
			assert.Equal(t, 2, Offset(n))
			assert.Equal(t, -1, alternate(n))
		} else {
			assert.Equal(t, Offset(n), alternate(n))
		}
	}
}

func TestLocate_Idempotent(t *testing.T) {
	cds := "ATGGAAGGCTTTAAACCC"
	for site := 1; site <= len(cds); site++ {
		nt := &variant.NucleotideChange{Site: site, Alt: 'G'}
		aaSite := (site-1)/3 + 1

		first, err := Locate(cds, nt, aaSite)
		require.NoError(t, err)

		again, err := Mutate(first.Ref, Offset(site), nt.Alt)
		require.NoError(t, err)
		assert.Equal(t, first.Mut, again)

		second, err := Locate(cds, nt, aaSite)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestLocate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		cds    string
		nt     *variant.NucleotideChange
		aaSite int
		want   error
	}{
		{"no nucleotide change", "ATGGAA", nil, 1, ErrNoNucleotideChange},
		{"site beyond sequence", "ATGGAA", &variant.NucleotideChange{Site: 7, Alt: 'C'}, 3, ErrSiteOutOfRange},
		{"site zero", "ATGGAA", &variant.NucleotideChange{Site: 1, Alt: 'C'}, 0, ErrSiteOutOfRange},
		{"nucleotide site zero", "ATGGAA", &variant.NucleotideChange{Site: 0, Alt: 'C'}, 1, ErrInconsistentCoordinates},
		{"negative nucleotide site", "ATGGAA", &variant.NucleotideChange{Site: -4, Alt: 'C'}, 1, ErrInconsistentCoordinates},
		{"truncated last codon", "ATGGA", &variant.NucleotideChange{Site: 4, Alt: 'C'}, 2, ErrInvalidCodon},
		{"ambiguous reference base", "ATGNAA", &variant.NucleotideChange{Site: 5, Alt: 'C'}, 2, ErrInvalidCodon},
		{"ambiguous mutant base", "ATGGAA", &variant.NucleotideChange{Site: 4, Alt: 'N'}, 2, ErrInvalidCodon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Locate(tt.cds, tt.nt, tt.aaSite)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// A truncated tail only affects sites past the truncation.
func TestLocate_TruncatedTailTolerated(t *testing.T) {
	p, err := Locate("ATGGAAGG", &variant.NucleotideChange{Site: 4, Alt: 'C'}, 2)
	require.NoError(t, err)
	assert.Equal(t, Pair{"GAA", "CAA"}, p)
}

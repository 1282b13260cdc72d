package methyl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoviz/methview/internal/bed"
	"github.com/nanoviz/methview/internal/chrom"
	"github.com/nanoviz/methview/internal/gff"
	"github.com/nanoviz/methview/internal/regions"
)

func xkr4Region(t *testing.T) *regions.GeneRegion {
	t.Helper()
	g := &gff.Gene{
		ID: "gene-Xkr4", SeqID: "NC_000067.7", Start: 3205901, End: 3671498, Strand: 1,
		Transcripts: []*gff.Transcript{{
			ID: "rna-1", Start: 3205901, End: 3671498,
			Exons: []gff.Interval{{Start: 3205901, End: 3207317}, {Start: 3670552, End: 3671498}},
		}},
	}
	table := regions.Extract([]*gff.Gene{g}, regions.Options{PromoterUp: 2000, PromoterDown: 2000})
	gr, ok := table.Get("gene-Xkr4")
	require.True(t, ok)
	return gr
}

func newTestJoiner(t *testing.T) *Joiner {
	t.Helper()
	m, err := chrom.ForAssembly("GRCm39")
	require.NoError(t, err)
	return NewJoiner(m, bed.Code5mC)
}

func TestJoinPromoterBoundaries(t *testing.T) {
	j := newTestJoiner(t)
	gr := xkr4Region(t)

	recs := []bed.Record{
		// BED labeled chr1, annotation labeled NC_000067.7
		{Chrom: "chr1", Pos: 3204000, Code: "m", ValidCov: 12, NMod: 5},    // inside promoter
		{Chrom: "chr1", Pos: 3205901 - 2000, Code: "m", ValidCov: 5, NMod: 1}, // exact lower bound, inclusive
		{Chrom: "chr1", Pos: 3205900, Code: "m", ValidCov: 5, NMod: 5},     // gene_start - 1, inclusive
		{Chrom: "chr1", Pos: 3205901 - 2001, Code: "m", ValidCov: 5, NMod: 1}, // one below span
	}

	sites := j.Join(gr, recs)
	require.Len(t, sites, 3)
	for _, s := range sites {
		assert.Equal(t, regions.Promoter, s.RegionType, "pos %d", s.Position)
	}
	assert.InDelta(t, 41.67, sites[1].Ratio, 0.01)
}

func TestJoinFiltersModificationCode(t *testing.T) {
	j := newTestJoiner(t)
	gr := xkr4Region(t)

	recs := []bed.Record{
		{Chrom: "chr1", Pos: 3206000, Code: "h", ValidCov: 10, NMod: 9},
		{Chrom: "chr1", Pos: 3206000, Code: "a", ValidCov: 10, NMod: 9},
		{Chrom: "chr1", Pos: 3206000, Code: "m", ValidCov: 10, NMod: 9},
	}

	sites := j.Join(gr, recs)
	require.Len(t, sites, 1, "non-5mC codes must be excluded regardless of position")
	assert.Equal(t, regions.Exon, sites[0].RegionType)
}

func TestJoinMatchesBothNamingSchemes(t *testing.T) {
	j := newTestJoiner(t)
	gr := xkr4Region(t)

	recs := []bed.Record{
		{Chrom: "NC_000067.7", Pos: 3206001, Code: "m", ValidCov: 8, NMod: 4},
		{Chrom: "chr1", Pos: 3206002, Code: "m", ValidCov: 8, NMod: 4},
		{Chrom: "chr2", Pos: 3206003, Code: "m", ValidCov: 8, NMod: 4},
	}

	sites := j.Join(gr, recs)
	require.Len(t, sites, 2)
	assert.Equal(t, int64(3206001), sites[0].Position)
	assert.Equal(t, int64(3206002), sites[1].Position)
}

func TestJoinUnknownLabelDropped(t *testing.T) {
	j := newTestJoiner(t)
	gr := xkr4Region(t)

	recs := []bed.Record{
		{Chrom: "scaffold_17", Pos: 3206001, Code: "m", ValidCov: 8, NMod: 4},
		{Chrom: "chr1", Pos: 3206002, Code: "m", ValidCov: 8, NMod: 4},
	}

	sites := j.Join(gr, recs)
	require.Len(t, sites, 1)
	assert.True(t, j.warned["scaffold_17"])
	assert.False(t, j.warned["chr1"])
}

func TestJoinEmptyIsNotError(t *testing.T) {
	j := newTestJoiner(t)
	gr := xkr4Region(t)

	sites := j.Join(gr, nil)
	assert.Empty(t, sites)

	// Calls on the right chromosome but outside the span
	sites = j.Join(gr, []bed.Record{{Chrom: "chr1", Pos: 100, Code: "m", ValidCov: 3, NMod: 1}})
	assert.Empty(t, sites)
}

func TestJoinSortedByPosition(t *testing.T) {
	j := newTestJoiner(t)
	gr := xkr4Region(t)

	recs := []bed.Record{
		{Chrom: "chr1", Pos: 3671600, Code: "m", ValidCov: 4, NMod: 2},
		{Chrom: "chr1", Pos: 3204100, Code: "m", ValidCov: 4, NMod: 2},
		{Chrom: "chr1", Pos: 3210000, Code: "m", ValidCov: 4, NMod: 2},
	}

	sites := j.Join(gr, recs)
	require.Len(t, sites, 3)
	assert.Equal(t, int64(3204100), sites[0].Position)
	assert.Equal(t, int64(3210000), sites[1].Position)
	assert.Equal(t, int64(3671600), sites[2].Position)
	assert.Equal(t, regions.Intron, sites[1].RegionType)
	assert.Equal(t, regions.Downstream, sites[2].RegionType)
}

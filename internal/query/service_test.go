package query

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoviz/methview/internal/bed"
	"github.com/nanoviz/methview/internal/gff"
	"github.com/nanoviz/methview/internal/regions"
)

const testGFF = `##gff-version 3
NC_000067.7	BestRefSeq	gene	3205901	3671498	.	+	.	ID=gene-Xkr4;Name=Xkr4
NC_000067.7	BestRefSeq	mRNA	3205901	3671498	.	+	.	ID=rna-NM_001011874.1;Parent=gene-Xkr4
NC_000067.7	BestRefSeq	exon	3205901	3207317	.	+	.	ID=e1;Parent=rna-NM_001011874.1
NC_000067.7	BestRefSeq	exon	3670552	3671498	.	+	.	ID=e2;Parent=rna-NM_001011874.1
NC_000067.7	BestRefSeq	CDS	3206523	3207317	.	+	0	ID=c1;Parent=rna-NM_001011874.1
NC_000068.8	BestRefSeq	gene	50000	60000	.	-	.	ID=gene-Rev1;Name=Rev1
`

// bedRow builds an 18-column modkit bedMethyl line.
func bedRow(chrom string, pos int64, code string, cov, nmod int64) string {
	return fmt.Sprintf("%s\t%d\t%d\t%s\t%d\t+\t%d\t%d\t255,0,0\t%d\t0.0\t%d\t0\t0\t0\t0\t0\t0\n",
		chrom, pos-1, pos, code, cov, pos-1, pos, cov, nmod)
}

func buildTestCache(t *testing.T) (string, *regions.Table) {
	t.Helper()
	dir := t.TempDir()
	gffPath := filepath.Join(dir, "genomic.gff")
	require.NoError(t, os.WriteFile(gffPath, []byte(testGFF), 0644))

	cachePath := filepath.Join(dir, "regions.gob")
	table, rebuilt, err := Build(gffPath, cachePath, regions.Options{PromoterUp: 2000, PromoterDown: 2000, Assembly: "GRCm39"})
	require.NoError(t, err)
	require.True(t, rebuilt)
	return cachePath, table
}

func TestBuildAndLoad(t *testing.T) {
	cachePath, table := buildTestCache(t)
	assert.Equal(t, 2, table.Len())

	svc, err := Load(cachePath)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.GeneCount())
	assert.Equal(t, []string{"gene-Rev1", "gene-Xkr4"}, svc.ListGenes(""))
	assert.Equal(t, []string{"gene-Xkr4"}, svc.ListGenes("xkr"))
}

func TestBuildReusesCurrentCache(t *testing.T) {
	dir := t.TempDir()
	gffPath := filepath.Join(dir, "genomic.gff")
	require.NoError(t, os.WriteFile(gffPath, []byte(testGFF), 0644))
	cachePath := filepath.Join(dir, "regions.gob")

	opts := regions.Options{PromoterUp: 2000, PromoterDown: 2000, Assembly: "GRCm39"}
	_, rebuilt, err := Build(gffPath, cachePath, opts)
	require.NoError(t, err)
	assert.True(t, rebuilt)

	// Same annotation, same flanks: the existing artifact is current.
	table, rebuilt, err := Build(gffPath, cachePath, opts)
	require.NoError(t, err)
	assert.False(t, rebuilt)
	assert.Equal(t, 2, table.Len())

	// Different flanks invalidate the artifact.
	_, rebuilt, err = Build(gffPath, cachePath, regions.Options{PromoterUp: 1500, PromoterDown: 2000, Assembly: "GRCm39"})
	require.NoError(t, err)
	assert.True(t, rebuilt)

	// So does a changed annotation file.
	require.NoError(t, os.WriteFile(gffPath, []byte(testGFF+"# trailing comment\n"), 0644))
	_, rebuilt, err = Build(gffPath, cachePath, regions.Options{PromoterUp: 1500, PromoterDown: 2000, Assembly: "GRCm39"})
	require.NoError(t, err)
	assert.True(t, rebuilt)
}

func TestBuildMalformedAnnotationNoPartialCache(t *testing.T) {
	dir := t.TempDir()
	gffPath := filepath.Join(dir, "broken.gff")
	require.NoError(t, os.WriteFile(gffPath, []byte("## nothing here\n"), 0644))

	cachePath := filepath.Join(dir, "regions.gob")
	_, _, err := Build(gffPath, cachePath, regions.Options{})
	require.ErrorIs(t, err, gff.ErrMalformed)

	_, err = os.Stat(cachePath)
	assert.True(t, os.IsNotExist(err), "no cache artifact after a failed build")
}

func TestLoadMissingCacheIsCacheUnavailable(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.NotErrorIs(t, err, ErrGeneNotFound)
}

func TestGeneMethylationPromoterScenario(t *testing.T) {
	cachePath, _ := buildTestCache(t)
	svc, err := Load(cachePath)
	require.NoError(t, err)

	// BED labeled chr1; annotation labeled NC_000067.7
	dir := t.TempDir()
	bedPath := filepath.Join(dir, "sample.bed")
	content := bedRow("chr1", 3204000, "m", 12, 5) + // promoter (45.2% in source data)
		bedRow("chr1", 3205901-2000, "m", 6, 3) + // exact inclusive lower bound
		bedRow("chr1", 3205900, "m", 6, 6) + // gene_start - 1
		bedRow("chr1", 3206600, "m", 10, 2) + // inside first exon
		bedRow("chr1", 3204000, "a", 9, 9) + // unrecognized code, dropped
		bedRow("chr2", 3204000, "m", 9, 9) // wrong chromosome
	require.NoError(t, os.WriteFile(bedPath, []byte(content), 0644))

	data, err := svc.GeneMethylation(NewFileSource(bedPath), "Xkr4")
	require.NoError(t, err)

	assert.Equal(t, "gene-Xkr4", data.Gene)
	assert.Equal(t, "NC_000067.7", data.Chrom)
	assert.Equal(t, "+", data.Strand)
	assert.Equal(t, int64(3205901-2000), data.SpanStart)
	assert.Equal(t, int64(3671498+2000), data.SpanEnd)
	assert.Equal(t, 2, data.ExonCount)
	assert.Equal(t, 1, data.CDSCount)

	require.Len(t, data.Sites, 4)
	assert.Equal(t, regions.Promoter, data.Sites[0].RegionType)
	assert.Equal(t, int64(3205901-2000), data.Sites[0].Position)
	assert.Equal(t, regions.Promoter, data.Sites[1].RegionType)
	assert.Equal(t, regions.Promoter, data.Sites[2].RegionType)
	assert.Equal(t, int64(3205900), data.Sites[2].Position)
	assert.NotEqual(t, regions.Promoter, data.Sites[3].RegionType)
	assert.InDelta(t, 41.67, data.Sites[1].Ratio, 0.01)
}

func TestGeneMethylationEmptyIsNotError(t *testing.T) {
	cachePath, _ := buildTestCache(t)
	svc, err := Load(cachePath)
	require.NoError(t, err)

	data, err := svc.GeneMethylation(sliceSource{}, "Xkr4")
	require.NoError(t, err)
	assert.Empty(t, data.Sites)
	assert.NotEmpty(t, data.Regions)
}

func TestGeneNotFoundDistinguishable(t *testing.T) {
	cachePath, _ := buildTestCache(t)
	svc, err := Load(cachePath)
	require.NoError(t, err)

	_, err = svc.GeneMethylation(sliceSource{}, "Gm99999")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneNotFound)
	assert.NotErrorIs(t, err, ErrCacheUnavailable)
}

func TestCheckFlanks(t *testing.T) {
	cachePath, _ := buildTestCache(t)
	svc, err := Load(cachePath)
	require.NoError(t, err)

	assert.NoError(t, svc.CheckFlanks(0, 0))
	assert.NoError(t, svc.CheckFlanks(2000, 2000))
	assert.ErrorIs(t, svc.CheckFlanks(1500, 2000), ErrFlankMismatch)
	assert.ErrorIs(t, svc.CheckFlanks(2000, 3000), ErrFlankMismatch)
}

// sliceSource serves records from memory.
type sliceSource []bed.Record

func (s sliceSource) Sites(_ []string, _, _ int64) ([]bed.Record, error) {
	return s, nil
}

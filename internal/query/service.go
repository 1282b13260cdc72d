// Package query composes the region table, chromosome reconciler, and site
// joiner into the gene-methylation lookup used by external callers.
package query

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nanoviz/methview/internal/bed"
	"github.com/nanoviz/methview/internal/chrom"
	"github.com/nanoviz/methview/internal/duckdb"
	"github.com/nanoviz/methview/internal/gff"
	"github.com/nanoviz/methview/internal/methyl"
	"github.com/nanoviz/methview/internal/regions"
)

// SiteSource supplies candidate methylation calls for a span. Sources may
// return a superset; the joiner applies the authoritative filtering.
type SiteSource interface {
	Sites(labels []string, start, end int64) ([]bed.Record, error)
}

// FileSource reads a flat bedMethyl file per query. The whole table is
// loaded into memory; a single gene's span is small relative to the genome,
// so the load dominates per-query cost, not the filtering.
type FileSource struct {
	path string
}

// NewFileSource creates a site source backed by a bedMethyl file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Sites returns every record in the file.
func (f *FileSource) Sites(_ []string, _, _ int64) ([]bed.Record, error) {
	p, err := bed.NewParser(f.path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.ReadAll()
}

// PlotData is the per-gene payload consumed by the plotting frontend.
type PlotData struct {
	Gene      string              `json:"gene"`
	Chrom     string              `json:"chrom"`
	Strand    string              `json:"strand"`
	SpanStart int64               `json:"span_start"`
	SpanEnd   int64               `json:"span_end"`
	ExonCount int                 `json:"exon_count"`
	CDSCount  int                 `json:"cds_count"`
	Regions   []regions.SubRegion `json:"regions"`
	Sites     []methyl.Site       `json:"sites"`
}

// Service owns an immutable loaded region table. It is constructed once at
// process start (or after cache regeneration) and is safe for concurrent
// reads without locking.
type Service struct {
	table    *regions.Table
	chromMap *chrom.Map
	joiner   *methyl.Joiner
	logger   *zap.Logger
}

// NewService wraps an already-extracted region table.
func NewService(table *regions.Table) (*Service, error) {
	assembly := table.Assembly
	if assembly == "" {
		assembly = "GRCm39"
	}
	m, err := chrom.ForAssembly(assembly)
	if err != nil {
		return nil, err
	}
	return &Service{
		table:    table,
		chromMap: m,
		joiner:   methyl.NewJoiner(m, bed.Code5mC),
		logger:   zap.NewNop(),
	}, nil
}

// Load opens a pre-built region cache and wraps it in a Service.
// A missing or unreadable cache is reported as ErrCacheUnavailable.
func Load(cachePath string) (*Service, error) {
	table, err := duckdb.NewRegionCache(cachePath).Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return NewService(table)
}

// Build runs the extractor over a whole annotation file and writes the
// region cache artifact. A cache that is already current for this annotation
// file and these flank lengths is loaded instead of rebuilt; the returned
// bool reports whether the artifact was (re)written. Parse failures abort
// the build with no partial cache file.
func Build(gffPath, cachePath string, opts regions.Options) (*regions.Table, bool, error) {
	opts = opts.WithDefaults()

	fp, err := duckdb.StatFile(gffPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat annotation: %w", err)
	}

	cache := duckdb.NewRegionCache(cachePath)
	if cache.Valid(fp, opts.PromoterUp, opts.PromoterDown) {
		if table, err := cache.Load(); err == nil {
			return table, false, nil
		}
		// Corrupt gob with intact metadata; fall through and rebuild.
	}

	genes, err := gff.ParseFile(gffPath)
	if err != nil {
		return nil, false, fmt.Errorf("parse annotation: %w", err)
	}

	table := regions.Extract(genes, opts)
	if err := cache.Write(table, fp); err != nil {
		return nil, false, err
	}
	return table, true, nil
}

// SetLogger sets the logger used for query progress and data-quality
// warnings.
func (s *Service) SetLogger(l *zap.Logger) {
	s.logger = l
	s.joiner.SetLogger(l)
}

// Table returns the loaded region table.
func (s *Service) Table() *regions.Table {
	return s.table
}

// GeneCount returns the number of genes in the loaded table.
func (s *Service) GeneCount() int {
	return s.table.Len()
}

// ListGenes returns sorted gene names, optionally filtered by a
// case-insensitive substring.
func (s *Service) ListGenes(filter string) []string {
	return s.table.GeneNames(filter)
}

// CheckFlanks verifies that the requested flank lengths match the ones the
// loaded table was built with. Zero means "use the cached value".
func (s *Service) CheckFlanks(promoterUp, promoterDown int64) error {
	if promoterUp != 0 && promoterUp != s.table.PromoterUp {
		return fmt.Errorf("%w: promoter_up %d (cache built with %d)",
			ErrFlankMismatch, promoterUp, s.table.PromoterUp)
	}
	if promoterDown != 0 && promoterDown != s.table.PromoterDown {
		return fmt.Errorf("%w: promoter_down %d (cache built with %d)",
			ErrFlankMismatch, promoterDown, s.table.PromoterDown)
	}
	return nil
}

// GeneMethylation resolves a gene name, loads candidate calls from the
// source, and returns the joined plot payload. Zero retained sites is a
// valid no-coverage outcome.
func (s *Service) GeneMethylation(src SiteSource, geneName string) (*PlotData, error) {
	canonical, ok := s.table.Resolve(geneName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGeneNotFound, geneName)
	}
	g, _ := s.table.Get(canonical)

	spanStart, spanEnd := g.Span()
	labels := []string{g.Chrom}
	if alt, err := s.chromMap.Reconcile(g.Chrom); err == nil {
		labels = append(labels, alt)
	}

	recs, err := src.Sites(labels, spanStart, spanEnd)
	if err != nil {
		return nil, fmt.Errorf("load methylation calls: %w", err)
	}

	sites := s.joiner.Join(g, recs)
	s.logger.Info("gene methylation query",
		zap.String("gene", canonical),
		zap.Int("candidate_rows", len(recs)),
		zap.Int("sites", len(sites)))

	strand := "+"
	if !g.IsForwardStrand() {
		strand = "-"
	}

	subRegions := g.SubRegions
	if subRegions == nil {
		subRegions = []regions.SubRegion{}
	}

	return &PlotData{
		Gene:      canonical,
		Chrom:     g.Chrom,
		Strand:    strand,
		SpanStart: spanStart,
		SpanEnd:   spanEnd,
		ExonCount: g.ExonCount,
		CDSCount:  g.CDSCount,
		Regions:   subRegions,
		Sites:     sites,
	}, nil
}

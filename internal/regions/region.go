// Package regions derives per-gene plotting regions (promoter, exon, intron,
// CDS, downstream) from parsed genome annotations.
package regions

import (
	"sort"
	"strings"
)

// RegionType classifies a genomic interval for plotting.
type RegionType string

const (
	Promoter   RegionType = "promoter"
	Exon       RegionType = "exon"
	Intron     RegionType = "intron"
	CDS        RegionType = "cds"
	Downstream RegionType = "downstream"
	// Intergenic is the sentinel for positions inside the gene span that no
	// sub-region encloses.
	Intergenic RegionType = "intergenic"
)

// SubRegion is one typed interval within a gene's plotting span.
// Coordinates are 1-based inclusive.
type SubRegion struct {
	Type  RegionType `json:"region_type"`
	Start int64      `json:"start"`
	End   int64      `json:"end"`
}

// GeneRegion describes one gene's structure for methylation plotting.
// Records are immutable after extraction.
type GeneRegion struct {
	Name       string      // Gene identifier as found in the annotation
	Chrom      string      // Chromosome label in the annotation's naming scheme
	Strand     int8        // +1 or -1
	Start      int64       // Gene start (1-based)
	End        int64       // Gene end (1-based, inclusive)
	SubRegions []SubRegion // Sorted by (start, end)
	ExonCount  int
	CDSCount   int
}

// IsForwardStrand returns true if the gene is on the forward strand.
func (g *GeneRegion) IsForwardStrand() bool {
	return g.Strand == 1
}

// Span returns the outer bounds across the gene body and all sub-regions,
// promoter and downstream flanks included.
func (g *GeneRegion) Span() (start, end int64) {
	start, end = g.Start, g.End
	for _, r := range g.SubRegions {
		if r.Start < start {
			start = r.Start
		}
		if r.End > end {
			end = r.End
		}
	}
	return start, end
}

// Classify returns the type of the first sub-region containing pos, or
// Intergenic if no sub-region encloses it.
func (g *GeneRegion) Classify(pos int64) RegionType {
	for _, r := range g.SubRegions {
		if pos >= r.Start && pos <= r.End {
			return r.Type
		}
	}
	return Intergenic
}

// Table is the extracted gene -> GeneRegion mapping for one annotation file,
// with the flank lengths it was built with baked in. Loaded once at process
// start and never mutated, so concurrent reads need no locking.
type Table struct {
	Genes        map[string]*GeneRegion
	Names        []string // sorted
	PromoterUp   int64
	PromoterDown int64
	Assembly     string
}

// Get returns the region record for an exact gene name.
func (t *Table) Get(name string) (*GeneRegion, bool) {
	g, ok := t.Genes[name]
	return g, ok
}

// Len returns the number of genes in the table.
func (t *Table) Len() int {
	return len(t.Genes)
}

// GeneNames returns the sorted gene names, optionally filtered by a
// case-insensitive substring. Callers may mutate the returned slice.
func (t *Table) GeneNames(filter string) []string {
	if filter == "" {
		out := make([]string, len(t.Names))
		copy(out, t.Names)
		return out
	}
	lower := strings.ToLower(filter)
	var out []string
	for _, n := range t.Names {
		if strings.Contains(strings.ToLower(n), lower) {
			out = append(out, n)
		}
	}
	return out
}

// Resolve maps a user-supplied gene query to a canonical table key.
// Tries, in order: exact match, "gene-" prefix stripped, "_name" suffix,
// then a case-insensitive substring match.
func (t *Table) Resolve(query string) (string, bool) {
	if _, ok := t.Genes[query]; ok {
		return query, true
	}
	for _, k := range t.Names {
		if strings.TrimPrefix(k, "gene-") == query || strings.HasSuffix(k, "_"+query) {
			return k, true
		}
	}
	lower := strings.ToLower(query)
	for _, k := range t.Names {
		if strings.Contains(strings.ToLower(k), lower) || strings.ToLower(strings.TrimPrefix(k, "gene-")) == lower {
			return k, true
		}
	}
	return "", false
}

// add inserts a gene region. The first record wins when an annotation
// carries duplicate gene names.
func (t *Table) add(g *GeneRegion) {
	if _, exists := t.Genes[g.Name]; exists {
		return
	}
	t.Genes[g.Name] = g
	t.Names = append(t.Names, g.Name)
}

func (t *Table) sortNames() {
	sort.Strings(t.Names)
}

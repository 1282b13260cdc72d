package regions

import (
	"sort"

	"github.com/nanoviz/methview/internal/gff"
)

// Default flank lengths in bp, applied upstream of the TSS and downstream
// of the TES relative to strand.
const (
	DefaultPromoterUp   = 2000
	DefaultPromoterDown = 2000
)

// Options configures region extraction.
type Options struct {
	PromoterUp   int64
	PromoterDown int64
	Assembly     string
}

// WithDefaults fills unset flank lengths with the package defaults.
func (o Options) WithDefaults() Options {
	if o.PromoterUp <= 0 {
		o.PromoterUp = DefaultPromoterUp
	}
	if o.PromoterDown <= 0 {
		o.PromoterDown = DefaultPromoterDown
	}
	return o
}

// Extract builds the full gene region table from parsed annotation genes.
func Extract(genes []*gff.Gene, opts Options) *Table {
	opts = opts.WithDefaults()

	t := &Table{
		Genes:        make(map[string]*GeneRegion, len(genes)),
		PromoterUp:   opts.PromoterUp,
		PromoterDown: opts.PromoterDown,
		Assembly:     opts.Assembly,
	}
	for _, g := range genes {
		t.add(buildGeneRegion(g, opts))
	}
	t.sortNames()
	return t
}

// buildGeneRegion derives one gene's plotting regions from its annotation
// feature and representative transcript.
func buildGeneRegion(g *gff.Gene, opts Options) *GeneRegion {
	gr := &GeneRegion{
		Name:   g.ID,
		Chrom:  g.SeqID,
		Strand: g.Strand,
		Start:  g.Start,
		End:    g.End,
	}

	rep := representativeTranscript(g)
	if rep != nil {
		for _, e := range rep.Exons {
			gr.SubRegions = append(gr.SubRegions, SubRegion{Type: Exon, Start: e.Start, End: e.End})
		}
		gr.SubRegions = append(gr.SubRegions, intronsOf(rep.Exons)...)
		for _, c := range rep.CDS {
			gr.SubRegions = append(gr.SubRegions, SubRegion{Type: CDS, Start: c.Start, End: c.End})
		}
		gr.ExonCount = len(rep.Exons)
		gr.CDSCount = len(rep.CDS)
	}

	promoter, downstream := flanks(g, opts.PromoterUp, opts.PromoterDown)
	if promoter.Start <= promoter.End {
		gr.SubRegions = append(gr.SubRegions, promoter)
	}
	if downstream.Start <= downstream.End {
		gr.SubRegions = append(gr.SubRegions, downstream)
	}

	sort.Slice(gr.SubRegions, func(i, j int) bool {
		a, b := gr.SubRegions[i], gr.SubRegions[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})

	return gr
}

// representativeTranscript picks the isoform used for exon/intron/CDS
// structure: the longest by genomic span, ties broken by lower start and
// then lexicographically smallest ID. Returns nil for genes with no
// transcript children.
func representativeTranscript(g *gff.Gene) *gff.Transcript {
	var best *gff.Transcript
	for _, t := range g.Transcripts {
		if best == nil {
			best = t
			continue
		}
		tLen, bestLen := t.End-t.Start, best.End-best.Start
		switch {
		case tLen > bestLen:
			best = t
		case tLen == bestLen && t.Start < best.Start:
			best = t
		case tLen == bestLen && t.Start == best.Start && t.ID < best.ID:
			best = t
		}
	}
	return best
}

// intronsOf derives intron intervals as the gaps between consecutive exons
// within the transcript span. Exons must be sorted by start ascending.
func intronsOf(exons []gff.Interval) []SubRegion {
	var introns []SubRegion
	var covered int64 // highest exon end seen so far
	for i, e := range exons {
		if i > 0 && e.Start > covered+1 {
			introns = append(introns, SubRegion{Type: Intron, Start: covered + 1, End: e.Start - 1})
		}
		if e.End > covered {
			covered = e.End
		}
	}
	return introns
}

// flanks computes the synthetic promoter and downstream intervals relative
// to strand. Upstream means lower coordinates on the + strand and higher
// coordinates on the - strand. Intervals are clipped at coordinate 1 but
// never against neighboring genes.
func flanks(g *gff.Gene, up, down int64) (promoter, downstream SubRegion) {
	if g.Strand == 1 {
		promoter = SubRegion{Type: Promoter, Start: clipAtOne(g.Start - up), End: g.Start - 1}
		downstream = SubRegion{Type: Downstream, Start: g.End + 1, End: g.End + down}
	} else {
		promoter = SubRegion{Type: Promoter, Start: g.End + 1, End: g.End + up}
		downstream = SubRegion{Type: Downstream, Start: clipAtOne(g.Start - down), End: g.Start - 1}
	}
	return promoter, downstream
}

func clipAtOne(pos int64) int64 {
	if pos < 1 {
		return 1
	}
	return pos
}

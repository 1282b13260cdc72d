// Package methyl joins positional methylation calls against a gene's
// region record, tagging each retained site with its enclosing region type.
package methyl

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nanoviz/methview/internal/bed"
	"github.com/nanoviz/methview/internal/chrom"
	"github.com/nanoviz/methview/internal/regions"
)

// Site is one methylation call retained for plotting. Ephemeral: recomputed
// per query, never persisted.
type Site struct {
	Position   int64              `json:"position"`
	Ratio      float64            `json:"methylation_ratio"`
	Coverage   int64              `json:"coverage"`
	RegionType regions.RegionType `json:"region_type"`
}

// Joiner filters methylation call tables to a single gene's span.
type Joiner struct {
	chromMap *chrom.Map
	code     string
	logger   *zap.Logger

	mu     sync.Mutex
	warned map[string]bool // unknown chromosome labels already reported
}

// NewJoiner creates a joiner that keeps calls with the given modification
// code (bed.Code5mC for 5-methylcytosine).
func NewJoiner(m *chrom.Map, code string) *Joiner {
	if code == "" {
		code = bed.Code5mC
	}
	return &Joiner{
		chromMap: m,
		code:     code,
		logger:   zap.NewNop(),
		warned:   make(map[string]bool),
	}
}

// SetLogger sets the logger for data-quality warnings.
func (j *Joiner) SetLogger(l *zap.Logger) {
	j.logger = l
}

// Join returns the gene's methylation sites sorted by position ascending.
// Calls are kept when their chromosome label matches the gene's label under
// either naming scheme, their modification code matches the target class,
// and their position falls within the gene's full span (flanks included).
// Rows under labels absent from the reconciliation table are dropped; the
// condition is reported once per distinct label. An empty result is a valid
// no-coverage outcome, not an error.
func (j *Joiner) Join(g *regions.GeneRegion, recs []bed.Record) []Site {
	spanStart, spanEnd := g.Span()

	// The annotation's native label plus its reconciled alternate; a BED
	// labeled under either scheme matches.
	native := g.Chrom
	alternate, err := j.chromMap.Reconcile(native)
	if err != nil {
		j.warnOnce(native)
		alternate = native
	}

	sites := make([]Site, 0, 64)
	for _, rec := range recs {
		if rec.Code != j.code {
			continue
		}
		if rec.Chrom != native && rec.Chrom != alternate {
			if _, rerr := j.chromMap.Reconcile(rec.Chrom); rerr != nil {
				j.warnOnce(rec.Chrom)
			}
			continue
		}
		if rec.Pos < spanStart || rec.Pos > spanEnd {
			continue
		}
		sites = append(sites, Site{
			Position:   rec.Pos,
			Ratio:      rec.Ratio(),
			Coverage:   rec.ValidCov,
			RegionType: g.Classify(rec.Pos),
		})
	}

	sort.Slice(sites, func(a, b int) bool { return sites[a].Position < sites[b].Position })
	return sites
}

func (j *Joiner) warnOnce(label string) {
	j.mu.Lock()
	seen := j.warned[label]
	j.warned[label] = true
	j.mu.Unlock()
	if !seen {
		j.logger.Warn("chromosome label not in reconciliation table; dropping its rows",
			zap.String("label", label),
			zap.String("assembly", j.chromMap.Assembly()))
	}
}

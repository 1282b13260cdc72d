// Package gff parses GFF3 genome annotation files into gene -> transcript ->
// exon/CDS hierarchies.
package gff

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformed indicates the annotation input could not be parsed at all.
var ErrMalformed = errors.New("malformed annotation")

// Interval is a 1-based inclusive genomic interval.
type Interval struct {
	Start int64
	End   int64
}

// Transcript is one isoform of a gene with its exon and CDS intervals,
// sorted by genomic position ascending regardless of strand.
type Transcript struct {
	ID    string
	Start int64
	End   int64
	Exons []Interval
	CDS   []Interval
}

// Gene is one gene feature with its child transcripts.
type Gene struct {
	ID          string
	Name        string
	SeqID       string
	Start       int64
	End         int64
	Strand      int8 // +1 or -1
	Transcripts []*Transcript
}

// transcriptTypes are the feature types treated as transcripts. RefSeq GFF3
// uses several RNA feature types besides mRNA.
var transcriptTypes = map[string]bool{
	"mrna":               true,
	"transcript":         true,
	"lnc_rna":            true,
	"ncrna":              true,
	"rrna":               true,
	"trna":               true,
	"snrna":              true,
	"snorna":             true,
	"mirna":              true,
	"primary_transcript": true,
}

// ParseFile reads a GFF3 file (optionally gzipped) and returns its genes in
// file order.
func ParseFile(path string) ([]*Gene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open GFF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return Parse(reader)
}

// Parse reads GFF3 content and assembles the gene hierarchy.
func Parse(reader io.Reader) ([]*Gene, error) {
	scanner := bufio.NewScanner(reader)
	// Increase buffer size for long attribute columns
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var genes []*Gene
	genesByID := make(map[string]*Gene)
	transcriptsByID := make(map[string]*Transcript)
	transcriptGene := make(map[string]string)  // transcript ID -> gene ID
	exonsByParent := make(map[string][]Interval) // GFF3 does not require children after parents
	cdsByParent := make(map[string][]Interval)

	dataLines := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		dataLines++

		feat, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}

		switch feat.featureType {
		case "gene":
			g := &Gene{
				ID:     geneIdentifier(feat),
				Name:   feat.attributes["Name"],
				SeqID:  feat.seqID,
				Start:  feat.start,
				End:    feat.end,
				Strand: parseStrand(feat.strand),
			}
			genes = append(genes, g)
			genesByID[g.ID] = g
			if feat.attributes["ID"] != "" {
				genesByID[feat.attributes["ID"]] = g
			}

		default:
			if transcriptTypes[feat.featureType] {
				id := feat.attributes["ID"]
				if id == "" {
					continue
				}
				t := &Transcript{
					ID:    id,
					Start: feat.start,
					End:   feat.end,
				}
				transcriptsByID[id] = t
				if parent := feat.attributes["Parent"]; parent != "" {
					transcriptGene[id] = parent
				}
				continue
			}

			if feat.featureType != "exon" && feat.featureType != "cds" {
				continue
			}
			iv := Interval{Start: feat.start, End: feat.end}
			for _, parent := range strings.Split(feat.attributes["Parent"], ",") {
				if parent == "" {
					continue
				}
				if feat.featureType == "exon" {
					exonsByParent[parent] = append(exonsByParent[parent], iv)
				} else {
					cdsByParent[parent] = append(cdsByParent[parent], iv)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GFF: %w", err)
	}
	if dataLines == 0 {
		return nil, fmt.Errorf("%w: no feature lines", ErrMalformed)
	}
	if len(genes) == 0 {
		return nil, fmt.Errorf("%w: no gene features", ErrMalformed)
	}

	// Attach transcripts to their genes and sort intervals by position.
	for id, t := range transcriptsByID {
		t.Exons = append(t.Exons, exonsByParent[id]...)
		t.CDS = append(t.CDS, cdsByParent[id]...)
		sort.Slice(t.Exons, func(i, j int) bool { return t.Exons[i].Start < t.Exons[j].Start })
		sort.Slice(t.CDS, func(i, j int) bool { return t.CDS[i].Start < t.CDS[j].Start })
		if g, ok := genesByID[transcriptGene[id]]; ok {
			g.Transcripts = append(g.Transcripts, t)
		}
	}
	for _, g := range genes {
		sort.Slice(g.Transcripts, func(i, j int) bool { return g.Transcripts[i].ID < g.Transcripts[j].ID })
	}

	return genes, nil
}

// gffFeature represents a parsed GFF3 line.
type gffFeature struct {
	seqID       string
	source      string
	featureType string
	start       int64
	end         int64
	strand      string
	attributes  map[string]string
}

// parseLine parses a single GFF3 line.
func parseLine(line string) (*gffFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("invalid GFF line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	return &gffFeature{
		seqID:       fields[0],
		source:      fields[1],
		featureType: strings.ToLower(fields[2]),
		start:       start,
		end:         end,
		strand:      fields[6],
		attributes:  parseAttributes(fields[8]),
	}, nil
}

// parseAttributes parses the GFF3 attribute column.
// Format: key=value;key=value;...
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		attrs[k] = v
	}
	return attrs
}

// geneIdentifier picks the gene identifier from the attribute column,
// falling back through ID, gene_id, and Name, then synthesizing one from
// the coordinates.
func geneIdentifier(feat *gffFeature) string {
	for _, key := range []string{"ID", "gene_id", "Name"} {
		if v := feat.attributes[key]; v != "" {
			return v
		}
	}
	return fmt.Sprintf("%s_%d_%d", feat.seqID, feat.start, feat.end)
}

// parseStrand converts a strand string to int8.
func parseStrand(s string) int8 {
	if s == "-" {
		return -1
	}
	return 1
}

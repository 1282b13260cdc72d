// Package bed parses modkit bedMethyl files: one row per genomic position
// and modification code, with coverage and modified-read counts.
package bed

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// bedMethyl column indices (tab-separated). Columns 5-9 (score, strand,
// thick start/end, color) are display fields and are not retained.
const (
	colChrom    = 0
	colStart    = 1
	colCode     = 3
	colValidCov = 9
	colNMod     = 11
	minColumns  = 12
)

// Code5mC is the modkit modification code for 5-methylcytosine.
const Code5mC = "m"

// Record is one positional modification call.
type Record struct {
	Chrom    string // Chromosome label as found in the BED
	Pos      int64  // 1-based genomic position (converted from 0-based BED start)
	Code     string // Modification code (e.g. "m" for 5mC, "h" for 5hmC)
	ValidCov int64  // Number of reads with a valid call at this position
	NMod     int64  // Number of reads calling the modification
}

// Ratio returns the methylation percentage in [0, 100], or 0 when the
// position has no valid coverage.
func (r Record) Ratio() float64 {
	if r.ValidCov <= 0 {
		return 0
	}
	return 100 * float64(r.NMod) / float64(r.ValidCov)
}

// Parser reads records from a bedMethyl file.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
}

// NewParser creates a parser for the given file. Supports plain and gzipped
// (.bed.gz) input; gzip is detected from the magic bytes.
func NewParser(path string) (*Parser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bed file: %w", err)
	}

	p := &Parser{file: file}

	var sig [2]byte
	n, _ := file.Read(sig[:])
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek bed file: %w", err)
	}

	if n == 2 && sig[0] == 0x1f && sig[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader.
func NewParserFromReader(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReader(r)}
}

// Next returns the next record, or nil at end of input.
// Comment, track, and malformed lines are skipped.
func (p *Parser) Next() (*Record, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err == io.EOF {
			if line == "" {
				return nil, nil
			}
		} else if err != nil {
			return nil, fmt.Errorf("read bed line %d: %w", p.lineNumber+1, err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track ") {
			if err == io.EOF {
				return nil, nil
			}
			continue
		}

		rec, ok := parseRow(line)
		if !ok {
			if err == io.EOF {
				return nil, nil
			}
			continue
		}
		return rec, nil
	}
}

// ReadAll returns every record in the file. A single gene's query span is
// small relative to the genome, so callers filter the loaded table rather
// than streaming.
func (p *Parser) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := p.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return recs, nil
		}
		recs = append(recs, *rec)
	}
}

// Close closes the underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// parseRow parses one bedMethyl line. Some modkit builds emit columns 10+
// space-separated inside a single tab field, so the row is re-split on any
// whitespace when the tab split comes up short.
func parseRow(line string) (*Record, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < minColumns {
		fields = strings.Fields(line)
	}
	if len(fields) < minColumns {
		return nil, false
	}

	start, err := strconv.ParseInt(fields[colStart], 10, 64)
	if err != nil {
		return nil, false
	}
	validCov, err := strconv.ParseInt(fields[colValidCov], 10, 64)
	if err != nil {
		return nil, false
	}
	nMod, err := strconv.ParseInt(fields[colNMod], 10, 64)
	if err != nil {
		return nil, false
	}

	return &Record{
		Chrom:    fields[colChrom],
		Pos:      start + 1, // BED starts are 0-based
		Code:     fields[colCode],
		ValidCov: validCov,
		NMod:     nMod,
	}, true
}

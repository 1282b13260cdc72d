// Package chrom reconciles chromosome naming schemes between annotation
// sources (RefSeq accessions such as NC_000067.7) and alignment outputs
// (UCSC-style names such as chr1).
package chrom

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownChromosome is returned when a label has no entry in the
// reconciliation table for the assembly in use.
var ErrUnknownChromosome = errors.New("unknown chromosome")

// ErrUnknownAssembly is returned when no reconciliation table exists for
// the requested assembly.
var ErrUnknownAssembly = errors.New("unknown assembly")

// Map is an immutable bidirectional table between a native (accession)
// naming scheme and an alternate (UCSC) naming scheme for one assembly.
type Map struct {
	assembly string
	toUCSC   map[string]string
	toAcc    map[string]string
}

// grcm39 covers all GRCm39 autosomes plus the sex chromosomes and
// mitochondrial DNA.
var grcm39 = map[string]string{
	"NC_000067.7": "chr1", "NC_000068.8": "chr2", "NC_000069.7": "chr3",
	"NC_000070.7": "chr4", "NC_000071.7": "chr5", "NC_000072.7": "chr6",
	"NC_000073.7": "chr7", "NC_000074.7": "chr8", "NC_000075.7": "chr9",
	"NC_000076.7": "chr10", "NC_000077.7": "chr11", "NC_000078.7": "chr12",
	"NC_000079.7": "chr13", "NC_000080.7": "chr14", "NC_000081.7": "chr15",
	"NC_000082.7": "chr16", "NC_000083.7": "chr17", "NC_000084.7": "chr18",
	"NC_000085.7": "chr19", "NC_000086.8": "chrX", "NC_000087.8": "chrY",
	"NC_005089.1": "chrM",
}

var registry = map[string]map[string]string{
	"GRCm39": grcm39,
}

// ForAssembly returns the reconciliation map for the given assembly.
// The table is validated for internal consistency at construction: every
// accession maps to a distinct alternate label and back.
func ForAssembly(assembly string) (*Map, error) {
	table, ok := registry[assembly]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAssembly, assembly)
	}

	m := &Map{
		assembly: assembly,
		toUCSC:   make(map[string]string, len(table)),
		toAcc:    make(map[string]string, len(table)),
	}
	for acc, ucsc := range table {
		if _, dup := m.toAcc[ucsc]; dup {
			return nil, fmt.Errorf("assembly %s: duplicate alternate label %q", assembly, ucsc)
		}
		m.toUCSC[acc] = ucsc
		m.toAcc[ucsc] = acc
	}
	return m, nil
}

// Assembly returns the assembly this map was built for.
func (m *Map) Assembly() string {
	return m.assembly
}

// ToUCSC converts an accession-style label to its UCSC-style equivalent.
func (m *Map) ToUCSC(accession string) (string, error) {
	ucsc, ok := m.toUCSC[accession]
	if !ok {
		return "", fmt.Errorf("%w: %q (assembly %s)", ErrUnknownChromosome, accession, m.assembly)
	}
	return ucsc, nil
}

// ToAccession converts a UCSC-style label to its accession equivalent.
func (m *Map) ToAccession(ucsc string) (string, error) {
	acc, ok := m.toAcc[ucsc]
	if !ok {
		return "", fmt.Errorf("%w: %q (assembly %s)", ErrUnknownChromosome, ucsc, m.assembly)
	}
	return acc, nil
}

// Reconcile converts a label from either scheme to the other.
func (m *Map) Reconcile(label string) (string, error) {
	if ucsc, ok := m.toUCSC[label]; ok {
		return ucsc, nil
	}
	if acc, ok := m.toAcc[label]; ok {
		return acc, nil
	}
	return "", fmt.Errorf("%w: %q (assembly %s)", ErrUnknownChromosome, label, m.assembly)
}

// Accessions returns the sorted accession-style labels covered by the map.
func (m *Map) Accessions() []string {
	accs := make([]string, 0, len(m.toUCSC))
	for acc := range m.toUCSC {
		accs = append(accs, acc)
	}
	sort.Strings(accs)
	return accs
}

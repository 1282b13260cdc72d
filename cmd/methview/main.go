// Package main provides the methview command-line tool.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nanoviz/methview/internal/duckdb"
	"github.com/nanoviz/methview/internal/query"
	"github.com/nanoviz/methview/internal/regions"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	initConfig()

	// Global flags
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("methview version %s (%s) built %s\n", version, commit, date)
		return ExitSuccess
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return ExitUsage
	}

	switch args[0] {
	case "build":
		return runBuild(args[1:])
	case "query":
		return runQuery(args[1:])
	case "genes":
		return runGenes(args[1:])
	case "import":
		return runImport(args[1:])
	case "config":
		return runConfig(args[1:])
	case "help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printUsage()
		return ExitUsage
	}
}

// initConfig loads ~/.methview.yaml and sets defaults for flag fallbacks.
func initConfig() {
	viper.SetConfigName(".methview")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetDefault("flanks.promoter_up", regions.DefaultPromoterUp)
	viper.SetDefault("flanks.promoter_down", regions.DefaultPromoterDown)
	viper.SetDefault("assembly", "GRCm39")
	_ = viper.ReadInConfig() // Missing config file is fine
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `methview - gene methylation region extraction and plotting data

Usage:
  methview [options] <command> [arguments]

Commands:
  build       Extract gene regions from a GFF file into a cache
  query       Look up one gene's methylation plot data
  genes       List gene names from a region cache
  import      Import a bedMethyl file into a DuckDB site database
  config      Manage methview configuration
  help        Show this help message

Global Options:
  --version   Show version information

Examples:
  # Build the gene region cache (one-time per annotation and flank sizes)
  methview build --gff genomic.gff

  # Plot data for one gene from a modkit bedMethyl file
  methview query --gene Xkr4 --bed r0081_m.bed

  # Import a BED once, then query it repeatedly
  methview import --bed r0081_m.bed --out r0081.duckdb
  methview query --gene Xkr4 --db r0081.duckdb

For more information on a command, use:
  methview <command> --help
`)
}

// defaultCachePath returns ~/.methview/<assembly>/regions.gob.
func defaultCachePath(assembly string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".methview", strings.ToLower(assembly), "regions.gob")
}

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)

	var (
		gffPath      string
		outPath      string
		assembly     string
		promoterUp   int64
		promoterDown int64
	)

	fs.StringVar(&gffPath, "gff", "", "Input GFF3 annotation file (.gff or .gff.gz)")
	fs.StringVar(&outPath, "out", "", "Output cache file (default: ~/.methview/<assembly>/regions.gob)")
	fs.StringVar(&assembly, "assembly", viper.GetString("assembly"), "Reference assembly")
	fs.Int64Var(&promoterUp, "promoter-up", viper.GetInt64("flanks.promoter_up"), "Promoter flank upstream of the TSS (bp)")
	fs.Int64Var(&promoterDown, "promoter-down", viper.GetInt64("flanks.promoter_down"), "Downstream flank past the TES (bp)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Extract per-gene regions (promoter, exon, intron, CDS, downstream) from a
GFF3 annotation and write the region cache used by query and genes.

Rebuild the cache whenever the annotation file or the flank lengths change;
queries never re-derive flanks on the fly.

Usage:
  methview build [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  methview build --gff genomic.gff
  methview build --gff genomic.gff.gz --promoter-up 1500 --promoter-down 3000
  methview build --gff genomic.gff --out data/regions.gob
`)
	}

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if gffPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --gff is required\n\n")
		fs.Usage()
		return ExitUsage
	}
	if outPath == "" {
		outPath = defaultCachePath(assembly)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}

	fmt.Fprintf(os.Stderr, "Extracting gene regions from %s (promoter %d bp, downstream %d bp)...\n",
		gffPath, promoterUp, promoterDown)

	table, rebuilt, err := query.Build(gffPath, outPath, regions.Options{
		PromoterUp:   promoterUp,
		PromoterDown: promoterDown,
		Assembly:     assembly,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}

	if !rebuilt {
		fmt.Fprintf(os.Stderr, "Cache %s is up to date (%d genes)\n", outPath, table.Len())
		return ExitSuccess
	}
	fmt.Fprintf(os.Stderr, "Wrote %d genes to %s\n", table.Len(), outPath)
	return ExitSuccess
}

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ExitOnError)

	var (
		cachePath    string
		bedPath      string
		dbPath       string
		geneName     string
		outputFile   string
		assembly     string
		promoterUp   int64
		promoterDown int64
		verbose      bool
	)

	fs.StringVar(&cachePath, "cache", "", "Region cache file (default: ~/.methview/<assembly>/regions.gob)")
	fs.StringVar(&bedPath, "bed", "", "modkit bedMethyl file (.bed or .bed.gz)")
	fs.StringVar(&dbPath, "db", "", "DuckDB site database created with 'methview import'")
	fs.StringVar(&geneName, "gene", "", "Gene name to look up")
	fs.StringVar(&outputFile, "o", "", "Output file (default: stdout)")
	fs.StringVar(&outputFile, "output", "", "Output file (default: stdout)")
	fs.StringVar(&assembly, "assembly", viper.GetString("assembly"), "Reference assembly")
	fs.Int64Var(&promoterUp, "promoter-up", 0, "Expected promoter flank; must match the cache (0 = use cached)")
	fs.Int64Var(&promoterDown, "promoter-down", 0, "Expected downstream flank; must match the cache (0 = use cached)")
	fs.BoolVar(&verbose, "verbose", false, "Log query progress to stderr")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Return per-site methylation and region boundaries for one gene as JSON.

Usage:
  methview query [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  methview query --gene Xkr4 --bed r0081_m.bed
  methview query --gene Xkr4 --db r0081.duckdb -o xkr4.json
`)
	}

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if geneName == "" {
		fmt.Fprintf(os.Stderr, "Error: --gene is required\n\n")
		fs.Usage()
		return ExitUsage
	}
	if (bedPath == "") == (dbPath == "") {
		fmt.Fprintf(os.Stderr, "Error: exactly one of --bed or --db is required\n\n")
		fs.Usage()
		return ExitUsage
	}
	if cachePath == "" {
		cachePath = defaultCachePath(assembly)
	}

	svc, err := query.Load(cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, query.ErrCacheUnavailable) {
			fmt.Fprintf(os.Stderr, "Hint: Build the region cache first with: methview build --gff genomic.gff\n")
		}
		return ExitError
	}

	if err := svc.CheckFlanks(promoterUp, promoterDown); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Hint: Rebuild the cache with: methview build --gff genomic.gff --promoter-up %d --promoter-down %d\n",
			promoterUp, promoterDown)
		return ExitError
	}

	if verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			defer logger.Sync()
			svc.SetLogger(logger)
		}
	}

	var src query.SiteSource
	if dbPath != "" {
		store, err := duckdb.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitError
		}
		defer store.Close()
		src = store
	} else {
		src = query.NewFileSource(bedPath)
	}

	data, err := svc.GeneMethylation(src, geneName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, query.ErrGeneNotFound) {
			fmt.Fprintf(os.Stderr, "Hint: List available genes with: methview genes --cache %s\n", cachePath)
		}
		return ExitError
	}

	out := os.Stdout
	if outputFile != "" {
		out, err = os.Create(outputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
			return ExitError
		}
		defer out.Close()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		return ExitError
	}

	return ExitSuccess
}

func runGenes(args []string) int {
	fs := flag.NewFlagSet("genes", flag.ExitOnError)

	var (
		cachePath string
		assembly  string
		filter    string
	)

	fs.StringVar(&cachePath, "cache", "", "Region cache file (default: ~/.methview/<assembly>/regions.gob)")
	fs.StringVar(&assembly, "assembly", viper.GetString("assembly"), "Reference assembly")
	fs.StringVar(&filter, "q", "", "Filter gene names by substring (case-insensitive)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `List gene names from the region cache, one per line, sorted.

Usage:
  methview genes [options]

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if cachePath == "" {
		cachePath = defaultCachePath(assembly)
	}

	svc, err := query.Load(cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, query.ErrCacheUnavailable) {
			fmt.Fprintf(os.Stderr, "Hint: Build the region cache first with: methview build --gff genomic.gff\n")
		}
		return ExitError
	}

	for _, name := range svc.ListGenes(filter) {
		fmt.Println(name)
	}
	return ExitSuccess
}

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)

	var (
		bedPath string
		outPath string
	)

	fs.StringVar(&bedPath, "bed", "", "modkit bedMethyl file (.bed or .bed.gz)")
	fs.StringVar(&outPath, "out", "", "Output DuckDB file path")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Import a bedMethyl file into a DuckDB site database for repeated queries.

Reading a large flat BED on every query is the dominant cost; importing it
once makes per-gene span lookups cheap.

Usage:
  methview import [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  methview import --bed r0081_m.bed --out r0081.duckdb
`)
	}

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if bedPath == "" || outPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --bed and --out are required\n\n")
		fs.Usage()
		return ExitUsage
	}

	store, err := duckdb.Open(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	defer store.Close()

	n, err := store.ImportBED(bedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}

	fmt.Fprintf(os.Stderr, "Imported %d sites into %s\n", n, outPath)
	return ExitSuccess
}

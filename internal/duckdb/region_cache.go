package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nanoviz/methview/internal/regions"
)

// FileFingerprint holds stat-based identity for a source file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// RegionCache manages the gob-serialized gene region table on disk:
//
//	regions.gob       (serialized regions.Table)
//	regions.gob.meta  (GFF fingerprint and the flank lengths baked in)
//
// The table embeds the promoter/downstream lengths it was built with;
// querying with different lengths requires regeneration, never silent
// re-derivation.
type RegionCache struct {
	path string
}

// NewRegionCache creates a region cache at the given gob file path.
func NewRegionCache(path string) *RegionCache {
	return &RegionCache{path: path}
}

// Path returns the gob file path.
func (rc *RegionCache) Path() string {
	return rc.path
}

func (rc *RegionCache) metaPath() string {
	return rc.path + ".meta"
}

// Valid checks whether the cached table matches the current annotation file
// and the requested flank lengths.
func (rc *RegionCache) Valid(gff FileFingerprint, promoterUp, promoterDown int64) bool {
	meta, err := rc.readMeta()
	if err != nil {
		return false
	}

	checks := []struct{ key, val string }{
		{"gff_size", strconv.FormatInt(gff.Size, 10)},
		{"gff_modtime", gff.ModTime.UTC().Format(time.RFC3339Nano)},
		{"promoter_up", strconv.FormatInt(promoterUp, 10)},
		{"promoter_down", strconv.FormatInt(promoterDown, 10)},
	}
	for _, c := range checks {
		if meta[c.key] != c.val {
			return false
		}
	}

	if _, err := os.Stat(rc.path); err != nil {
		return false
	}
	return true
}

// Write serializes the region table to disk. The gob is written to a
// temporary file and atomically renamed so readers never observe a partial
// cache; nothing is left behind on failure.
func (rc *RegionCache) Write(t *regions.Table, gff FileFingerprint) error {
	tmp := rc.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create region cache: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(t); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode region cache: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close region cache: %w", err)
	}
	if err := os.Rename(tmp, rc.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename region cache: %w", err)
	}

	return rc.writeMeta(t, gff)
}

// Load reads the serialized region table from disk.
func (rc *RegionCache) Load() (*regions.Table, error) {
	f, err := os.Open(rc.path)
	if err != nil {
		return nil, fmt.Errorf("open region cache: %w", err)
	}
	defer f.Close()

	var t regions.Table
	if err := gob.NewDecoder(f).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode region cache: %w", err)
	}
	if t.Genes == nil {
		return nil, fmt.Errorf("decode region cache: empty gene table")
	}
	return &t, nil
}

// Clear removes the cached files.
func (rc *RegionCache) Clear() {
	os.Remove(rc.path)
	os.Remove(rc.metaPath())
}

func (rc *RegionCache) writeMeta(t *regions.Table, gff FileFingerprint) error {
	lines := []string{
		"gff_path=" + gff.Path,
		"gff_size=" + strconv.FormatInt(gff.Size, 10),
		"gff_modtime=" + gff.ModTime.UTC().Format(time.RFC3339Nano),
		"promoter_up=" + strconv.FormatInt(t.PromoterUp, 10),
		"promoter_down=" + strconv.FormatInt(t.PromoterDown, 10),
		"assembly=" + t.Assembly,
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
		"",
	}
	return os.WriteFile(rc.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (rc *RegionCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(rc.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}

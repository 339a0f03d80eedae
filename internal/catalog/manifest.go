package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// BackupVersion is recorded in every manifest and in S3 object metadata.
const BackupVersion = "2.0"

// Manifest is the machine-readable catalog of one backup run.
type Manifest struct {
	BackupInfo    BackupInfo      `json:"backup_info"`
	Statistics    Statistics      `json:"statistics"`
	IncludedFiles []ManifestEntry `json:"included_files"`
	ExcludedFiles []ManifestEntry `json:"excluded_files"`
}

type BackupInfo struct {
	Timestamp       string   `json:"timestamp"`
	BackupVersion   string   `json:"backup_version"`
	BitrixRoot      string   `json:"bitrix_root"`
	ExcludePatterns []string `json:"exclude_patterns"`
}

type Statistics struct {
	IncludedFiles          int    `json:"included_files"`
	IncludedDirectories    int    `json:"included_directories"`
	IncludedTotalSizeBytes int64  `json:"included_total_size_bytes"`
	IncludedTotalSizeHuman string `json:"included_total_size_human"`
	ExcludedFiles          int    `json:"excluded_files"`
	ExcludedDirectories    int    `json:"excluded_directories"`
	ExcludedTotalSizeBytes int64  `json:"excluded_total_size_bytes"`
	ExcludedTotalSizeHuman string `json:"excluded_total_size_human"`
}

type ManifestEntry struct {
	Path              string `json:"path"`
	Size              int64  `json:"size"`
	Type              string `json:"type"`
	MTime             string `json:"mtime,omitempty"`
	ExcludedByPattern string `json:"excluded_by_pattern,omitempty"`
}

// BuildManifest turns a catalog into its manifest. Entry lists are sorted
// lexicographically by path regardless of traversal order, so manifests of
// the same tree diff cleanly across runs.
func BuildManifest(cat *Catalog, now time.Time) *Manifest {
	m := &Manifest{
		BackupInfo: BackupInfo{
			Timestamp:       now.Format("2006-01-02 15:04:05"),
			BackupVersion:   BackupVersion,
			BitrixRoot:      cat.Root,
			ExcludePatterns: cat.Patterns,
		},
		Statistics: Statistics{
			IncludedFiles:          cat.Stats.IncludedFiles,
			IncludedDirectories:    cat.Stats.IncludedDirs,
			IncludedTotalSizeBytes: cat.Stats.IncludedBytes,
			IncludedTotalSizeHuman: HumanSize(cat.Stats.IncludedBytes),
			ExcludedFiles:          cat.Stats.ExcludedFiles,
			ExcludedDirectories:    cat.Stats.ExcludedDirs,
			ExcludedTotalSizeBytes: cat.Stats.ExcludedBytes,
			ExcludedTotalSizeHuman: HumanSize(cat.Stats.ExcludedBytes),
		},
		IncludedFiles: sortedEntries(cat.Included, false),
		ExcludedFiles: sortedEntries(cat.Excluded, true),
	}
	return m
}

func sortedEntries(entries []Entry, excluded bool) []ManifestEntry {
	out := make([]ManifestEntry, 0, len(entries))
	for _, e := range entries {
		me := ManifestEntry{Path: e.Path, Size: e.Size, Type: string(e.Type)}
		if excluded {
			me.ExcludedByPattern = e.MatchedPattern
		} else {
			me.MTime = e.ModTime
		}
		out = append(out, me)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// WriteJSON saves the machine manifest.
func (m *Manifest) WriteJSON(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// WriteHuman saves the textual report: the same statistics, one line per
// included entry, and a trailing per-pattern exclusion breakdown.
func (m *Manifest) WriteHuman(path string) error {
	var b strings.Builder

	b.WriteString("BITRIX24 BACKUP FILE MANIFEST\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Created: %s\n", m.BackupInfo.Timestamp)
	fmt.Fprintf(&b, "Root: %s\n\n", m.BackupInfo.BitrixRoot)

	b.WriteString("STATISTICS:\n")
	b.WriteString(strings.Repeat("-", 20) + "\n")
	b.WriteString("Included in backup:\n")
	fmt.Fprintf(&b, "   Files: %d\n", m.Statistics.IncludedFiles)
	fmt.Fprintf(&b, "   Directories: %d\n", m.Statistics.IncludedDirectories)
	fmt.Fprintf(&b, "   Total size: %s\n\n", m.Statistics.IncludedTotalSizeHuman)
	b.WriteString("Excluded from backup:\n")
	fmt.Fprintf(&b, "   Files: %d\n", m.Statistics.ExcludedFiles)
	fmt.Fprintf(&b, "   Directories: %d\n", m.Statistics.ExcludedDirectories)
	fmt.Fprintf(&b, "   Total size: %s\n\n", m.Statistics.ExcludedTotalSizeHuman)

	b.WriteString("FILES IN BACKUP (sorted by path):\n")
	b.WriteString(strings.Repeat("-", 50) + "\n")
	for _, e := range m.IncludedFiles {
		if e.Type == string(TypeFile) {
			fmt.Fprintf(&b, "%s (%s) [%s]\n", e.Path, HumanSize(e.Size), e.MTime)
		} else {
			fmt.Fprintf(&b, "%s/\n", e.Path)
		}
	}

	if len(m.ExcludedFiles) > 0 {
		b.WriteString("\n\nEXCLUSIONS BY PATTERN:\n")
		b.WriteString(strings.Repeat("-", 50) + "\n")
		for _, s := range m.exclusionBreakdown() {
			fmt.Fprintf(&b, "%s: %d entries, %s\n", s.Pattern, s.Count, HumanSize(s.Size))
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing file list: %w", err)
	}
	return nil
}

// PatternStat aggregates the exclusions attributed to one pattern.
type PatternStat struct {
	Pattern string
	Count   int
	Size    int64
}

// exclusionBreakdown groups excluded entries by matched pattern, sorted by
// pattern text.
func (m *Manifest) exclusionBreakdown() []PatternStat {
	byPattern := map[string]*PatternStat{}
	for _, e := range m.ExcludedFiles {
		s, ok := byPattern[e.ExcludedByPattern]
		if !ok {
			s = &PatternStat{Pattern: e.ExcludedByPattern}
			byPattern[e.ExcludedByPattern] = s
		}
		s.Count++
		s.Size += e.Size
	}

	out := make([]PatternStat, 0, len(byPattern))
	for _, s := range byPattern {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}

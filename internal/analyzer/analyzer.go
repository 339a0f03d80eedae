// Package analyzer produces an offline size breakdown of the web root:
// what a backup would include, what the exclusion patterns would drop,
// directory by directory.
package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ashevtsov/bitrix-backup/internal/catalog"
	"github.com/ashevtsov/bitrix-backup/internal/exclude"
)

// FileReport describes one regular file.
type FileReport struct {
	Type              string `json:"type"`
	Name              string `json:"name"`
	SizeBytes         int64  `json:"size_bytes"`
	SizeHuman         string `json:"size_human"`
	RelativePath      string `json:"relative_path"`
	Included          bool   `json:"included"`
	ExcludedByPattern string `json:"excluded_by_pattern,omitempty"`
	Error             string `json:"error,omitempty"`
}

// DirReport describes one directory with aggregated totals for
// everything beneath it.
type DirReport struct {
	Type               string                `json:"type"`
	Name               string                `json:"name"`
	FullPath           string                `json:"full_path"`
	RelativePath       string                `json:"relative_path"`
	TotalSizeBytes     int64                 `json:"total_size_bytes"`
	TotalSizeHuman     string                `json:"total_size_human"`
	IncludedSizeBytes  int64                 `json:"included_size_bytes"`
	IncludedSizeHuman  string                `json:"included_size_human"`
	ExcludedSizeBytes  int64                 `json:"excluded_size_bytes"`
	ExcludedSizeHuman  string                `json:"excluded_size_human"`
	FilesCount         int                   `json:"files_count"`
	IncludedFilesCount int                   `json:"included_files_count"`
	ExcludedFilesCount int                   `json:"excluded_files_count"`
	Subdirectories     map[string]*DirReport `json:"subdirectories"`
	Files              []*FileReport         `json:"files"`
	Error              string                `json:"error,omitempty"`
}

type AnalysisInfo struct {
	Timestamp            string   `json:"timestamp"`
	ExecutionTimeSeconds float64  `json:"execution_time_seconds"`
	BitrixRoot           string   `json:"bitrix_root"`
	ExcludePatternsCount int      `json:"exclude_patterns_count"`
	ExcludePatterns      []string `json:"exclude_patterns"`
}

type Summary struct {
	TotalFiles            int     `json:"total_files"`
	TotalSizeBytes        int64   `json:"total_size_bytes"`
	TotalSizeHuman        string  `json:"total_size_human"`
	IncludedFiles         int     `json:"included_files"`
	IncludedSizeBytes     int64   `json:"included_size_bytes"`
	IncludedSizeHuman     string  `json:"included_size_human"`
	ExcludedFiles         int     `json:"excluded_files"`
	ExcludedSizeBytes     int64   `json:"excluded_size_bytes"`
	ExcludedSizeHuman     string  `json:"excluded_size_human"`
	ExclusionRatioPercent float64 `json:"exclusion_ratio_percent"`
}

type Report struct {
	AnalysisInfo       AnalysisInfo `json:"analysis_info"`
	Summary            Summary      `json:"summary"`
	DirectoryStructure *DirReport   `json:"directory_structure"`
}

type analyzer struct {
	root     string
	patterns []string

	totalFiles    int
	totalSize     int64
	excludedFiles int
	excludedSize  int64
}

// Analyze walks root and builds the full size report. Unreadable
// directories and files are annotated in place, never fatal.
func Analyze(root string, patterns []string) (*Report, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", root, err)
	}

	a := &analyzer{root: root, patterns: patterns}
	start := time.Now()
	tree := a.analyzeDir(root)
	elapsed := time.Since(start).Seconds()

	ratio := 0.0
	if a.totalSize > 0 {
		ratio = math.Round(float64(a.excludedSize)/float64(a.totalSize)*100*100) / 100
	}

	return &Report{
		AnalysisInfo: AnalysisInfo{
			Timestamp:            start.Format("2006-01-02 15:04:05"),
			ExecutionTimeSeconds: elapsed,
			BitrixRoot:           root,
			ExcludePatternsCount: len(patterns),
			ExcludePatterns:      patterns,
		},
		Summary: Summary{
			TotalFiles:            a.totalFiles,
			TotalSizeBytes:        a.totalSize,
			TotalSizeHuman:        catalog.HumanSize(a.totalSize),
			IncludedFiles:         a.totalFiles - a.excludedFiles,
			IncludedSizeBytes:     a.totalSize - a.excludedSize,
			IncludedSizeHuman:     catalog.HumanSize(a.totalSize - a.excludedSize),
			ExcludedFiles:         a.excludedFiles,
			ExcludedSizeBytes:     a.excludedSize,
			ExcludedSizeHuman:     catalog.HumanSize(a.excludedSize),
			ExclusionRatioPercent: ratio,
		},
		DirectoryStructure: tree,
	}, nil
}

func (a *analyzer) analyzeDir(dir string) *DirReport {
	rel, err := filepath.Rel(a.root, dir)
	if err != nil {
		rel = dir
	}
	report := &DirReport{
		Type:              "directory",
		Name:              filepath.Base(dir),
		FullPath:          dir,
		RelativePath:      filepath.ToSlash(rel),
		TotalSizeHuman:    "0B",
		IncludedSizeHuman: "0B",
		ExcludedSizeHuman: "0B",
		Subdirectories:    map[string]*DirReport{},
		Files:             []*FileReport{},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())
		entryRel, err := filepath.Rel(a.root, entryPath)
		if err != nil {
			entryRel = entryPath
		}
		entryRel = filepath.ToSlash(entryRel)

		if entry.IsDir() {
			sub := a.analyzeDir(entryPath)
			report.Subdirectories[entry.Name()] = sub
			report.TotalSizeBytes += sub.TotalSizeBytes
			report.IncludedSizeBytes += sub.IncludedSizeBytes
			report.ExcludedSizeBytes += sub.ExcludedSizeBytes
			report.FilesCount += sub.FilesCount
			report.IncludedFilesCount += sub.IncludedFilesCount
			report.ExcludedFilesCount += sub.ExcludedFilesCount
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			report.Files = append(report.Files, &FileReport{
				Type:         "file",
				Name:         entry.Name(),
				RelativePath: entryRel,
				Error:        err.Error(),
			})
			continue
		}
		size := info.Size()

		a.totalFiles++
		a.totalSize += size
		report.FilesCount++
		report.TotalSizeBytes += size

		pattern, excluded := exclude.First(entryRel, a.patterns)
		fr := &FileReport{
			Type:              "file",
			Name:              entry.Name(),
			SizeBytes:         size,
			SizeHuman:         catalog.HumanSize(size),
			RelativePath:      entryRel,
			Included:          !excluded,
			ExcludedByPattern: pattern,
		}
		if excluded {
			a.excludedFiles++
			a.excludedSize += size
			report.ExcludedFilesCount++
			report.ExcludedSizeBytes += size
		} else {
			report.IncludedFilesCount++
			report.IncludedSizeBytes += size
		}
		report.Files = append(report.Files, fr)
	}

	report.TotalSizeHuman = catalog.HumanSize(report.TotalSizeBytes)
	report.IncludedSizeHuman = catalog.HumanSize(report.IncludedSizeBytes)
	report.ExcludedSizeHuman = catalog.HumanSize(report.ExcludedSizeBytes)
	return report
}

// WriteJSON saves the report with two-space indentation.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal size report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write size report: %w", err)
	}
	return nil
}

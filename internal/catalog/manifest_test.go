package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleCatalog() *Catalog {
	cat := &Catalog{
		Root:     "/home/bitrix/www",
		Patterns: []string{"*.log", "bitrix/cache"},
	}
	// Deliberately out of path order, as a filesystem walk might yield them.
	cat.addIncluded(Entry{Path: "upload/photo.jpg", Size: 2048, Type: TypeFile, ModTime: "2026-08-30 12:00:00"})
	cat.addIncluded(Entry{Path: "bitrix", Type: TypeDirectory, ModTime: "2026-08-30 12:00:00"})
	cat.addIncluded(Entry{Path: "index.php", Size: 100, Type: TypeFile, ModTime: "2026-08-30 12:00:00"})
	cat.addExcluded(Entry{Path: "error.log", Size: 4096, Type: TypeFile, ModTime: "2026-08-30 12:00:00", MatchedPattern: "*.log"})
	cat.addExcluded(Entry{Path: "bitrix/cache/a", Size: 10, Type: TypeFile, ModTime: "2026-08-30 12:00:00", MatchedPattern: "bitrix/cache"})
	cat.addExcluded(Entry{Path: "access.log", Size: 4096, Type: TypeFile, ModTime: "2026-08-30 12:00:00", MatchedPattern: "*.log"})
	return cat
}

func TestBuildManifestSortsByPath(t *testing.T) {
	m := BuildManifest(sampleCatalog(), time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC))

	wantIncluded := []string{"bitrix", "index.php", "upload/photo.jpg"}
	for i, e := range m.IncludedFiles {
		if e.Path != wantIncluded[i] {
			t.Errorf("IncludedFiles[%d] = %q, want %q", i, e.Path, wantIncluded[i])
		}
	}
	wantExcluded := []string{"access.log", "bitrix/cache/a", "error.log"}
	for i, e := range m.ExcludedFiles {
		if e.Path != wantExcluded[i] {
			t.Errorf("ExcludedFiles[%d] = %q, want %q", i, e.Path, wantExcluded[i])
		}
	}
}

func TestBuildManifestStatistics(t *testing.T) {
	m := BuildManifest(sampleCatalog(), time.Now())

	s := m.Statistics
	if s.IncludedFiles != 2 || s.IncludedDirectories != 1 {
		t.Errorf("included counts = %d files / %d dirs", s.IncludedFiles, s.IncludedDirectories)
	}
	if s.IncludedTotalSizeBytes != 2148 {
		t.Errorf("IncludedTotalSizeBytes = %d, want 2148", s.IncludedTotalSizeBytes)
	}
	if s.ExcludedFiles != 3 || s.ExcludedTotalSizeBytes != 8202 {
		t.Errorf("excluded = %d files, %d bytes", s.ExcludedFiles, s.ExcludedTotalSizeBytes)
	}
	if s.ExcludedTotalSizeHuman != HumanSize(8202) {
		t.Errorf("ExcludedTotalSizeHuman = %q", s.ExcludedTotalSizeHuman)
	}
}

func TestWriteJSONSchema(t *testing.T) {
	m := BuildManifest(sampleCatalog(), time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "backup_manifest.json")
	if err := m.WriteJSON(path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"backup_info", "statistics", "included_files", "excluded_files"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("manifest missing top-level key %q", key)
		}
	}

	var info map[string]any
	if err := json.Unmarshal(raw["backup_info"], &info); err != nil {
		t.Fatalf("unmarshal backup_info: %v", err)
	}
	if info["backup_version"] != BackupVersion {
		t.Errorf("backup_version = %v", info["backup_version"])
	}
	if info["bitrix_root"] != "/home/bitrix/www" {
		t.Errorf("bitrix_root = %v", info["bitrix_root"])
	}

	var included []map[string]any
	if err := json.Unmarshal(raw["included_files"], &included); err != nil {
		t.Fatalf("unmarshal included_files: %v", err)
	}
	if len(included) == 0 {
		t.Fatal("included_files empty")
	}
	if _, ok := included[0]["excluded_by_pattern"]; ok {
		t.Errorf("included entries must not carry excluded_by_pattern")
	}
}

func TestWriteHumanBreakdown(t *testing.T) {
	m := BuildManifest(sampleCatalog(), time.Now())
	path := filepath.Join(t.TempDir(), "backup_files_list.txt")
	if err := m.WriteHuman(path); err != nil {
		t.Fatalf("WriteHuman: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	text := string(data)

	if !strings.Contains(text, "index.php (100.0B)") {
		t.Errorf("report missing included file line:\n%s", text)
	}
	if !strings.Contains(text, "bitrix/\n") {
		t.Errorf("report missing directory line")
	}
	if !strings.Contains(text, "*.log: 2 entries, 8.0KB") {
		t.Errorf("report missing pattern breakdown:\n%s", text)
	}
	if !strings.Contains(text, "bitrix/cache: 1 entries, 10.0B") {
		t.Errorf("report missing bitrix/cache breakdown:\n%s", text)
	}
}

package analyzer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel string, size int) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestAnalyzeAggregatesSizes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.php", 1024)
	writeFile(t, root, "bitrix/cache/page.html", 4096)
	writeFile(t, root, "bitrix/modules/main.php", 2048)
	writeFile(t, root, "upload/photo.jpg", 8192)
	writeFile(t, root, "debug.log", 512)

	patterns := []string{"*.log", "bitrix/cache/"}
	report, err := Analyze(root, patterns)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	s := report.Summary
	if s.TotalFiles != 5 {
		t.Errorf("TotalFiles = %d, want 5", s.TotalFiles)
	}
	if s.TotalSizeBytes != 1024+4096+2048+8192+512 {
		t.Errorf("TotalSizeBytes = %d", s.TotalSizeBytes)
	}
	if s.ExcludedFiles != 2 || s.ExcludedSizeBytes != 4096+512 {
		t.Errorf("excluded = %d files / %d bytes, want 2 / 4608", s.ExcludedFiles, s.ExcludedSizeBytes)
	}
	if s.IncludedFiles != 3 || s.IncludedSizeBytes != 1024+2048+8192 {
		t.Errorf("included = %d files / %d bytes, want 3 / 11264", s.IncludedFiles, s.IncludedSizeBytes)
	}
	// 4608 / 15872 = 29.0322...% rounded to two decimals.
	if s.ExclusionRatioPercent != 29.03 {
		t.Errorf("ExclusionRatioPercent = %v, want 29.03", s.ExclusionRatioPercent)
	}
	if report.AnalysisInfo.ExcludePatternsCount != 2 {
		t.Errorf("ExcludePatternsCount = %d", report.AnalysisInfo.ExcludePatternsCount)
	}
}

func TestAnalyzeDirectoryTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bitrix/cache/page.html", 100)
	writeFile(t, root, "bitrix/modules/main.php", 200)

	report, err := Analyze(root, []string{"bitrix/cache/"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	tree := report.DirectoryStructure
	if tree.RelativePath != "." {
		t.Errorf("root relative_path = %q, want %q", tree.RelativePath, ".")
	}
	bitrix, ok := tree.Subdirectories["bitrix"]
	if !ok {
		t.Fatal("missing bitrix subdirectory")
	}
	if bitrix.TotalSizeBytes != 300 || bitrix.ExcludedSizeBytes != 100 {
		t.Errorf("bitrix totals = %d/%d excluded, want 300/100", bitrix.TotalSizeBytes, bitrix.ExcludedSizeBytes)
	}

	cache := bitrix.Subdirectories["cache"]
	if cache == nil || len(cache.Files) != 1 {
		t.Fatal("missing cache dir report")
	}
	f := cache.Files[0]
	if f.Included {
		t.Error("cache file should be excluded")
	}
	if f.ExcludedByPattern != "bitrix/cache/" {
		t.Errorf("ExcludedByPattern = %q", f.ExcludedByPattern)
	}
}

func TestAnalyzeMissingRoot(t *testing.T) {
	if _, err := Analyze(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Fatal("Analyze should fail on a missing root")
	}
}

func TestWriteJSONSchema(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", 10)

	report, err := Analyze(root, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	out := filepath.Join(t.TempDir(), "report.json")
	if err := report.WriteJSON(out); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"analysis_info", "summary", "directory_structure"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("report is missing %q", key)
		}
	}
}

package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ashevtsov/bitrix-backup/internal/catalog"
	"github.com/ashevtsov/bitrix-backup/internal/config"
	"github.com/ashevtsov/bitrix-backup/internal/hostinfo"
)

// hostFacts holds everything the info file reports about the server.
type hostFacts struct {
	Hostname     string
	IP           string
	OSVersion    string
	PHPVersion   string
	MySQLVersion string
	DiskUsage    string
}

func gatherHostFacts(ctx context.Context) hostFacts {
	return hostFacts{
		Hostname:     hostinfo.Hostname(),
		IP:           hostinfo.HostIP(),
		OSVersion:    hostinfo.OSVersion(),
		PHPVersion:   hostinfo.PHPVersion(ctx),
		MySQLVersion: hostinfo.MySQLVersion(ctx),
		DiskUsage:    hostinfo.DiskUsage(ctx),
	}
}

// writeInfoFile drops backup_info.txt into the staging directory: what
// was backed up, from where, and what the server looked like at the
// time. Restores years later start from this file.
func writeInfoFile(ctx context.Context, cfg *config.Config, tempDir string, now time.Time) error {
	contents, err := stagingContents(tempDir)
	if err != nil {
		return err
	}
	body := buildInfoFile(cfg, gatherHostFacts(ctx), contents, now)
	return os.WriteFile(filepath.Join(tempDir, "backup_info.txt"), []byte(body), 0o644)
}

// stagingContents lists the staged files with human sizes, the info
// file itself excluded.
func stagingContents(tempDir string) ([]string, error) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return nil, fmt.Errorf("list staging dir: %w", err)
	}
	var lines []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "backup_info.txt" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", entry.Name(), catalog.HumanSize(info.Size())))
	}
	sort.Strings(lines)
	return lines, nil
}

func buildInfoFile(cfg *config.Config, facts hostFacts, contents []string, now time.Time) string {
	var b strings.Builder
	b.WriteString("Bitrix24 Backup Information\n")
	b.WriteString("===========================\n")
	fmt.Fprintf(&b, "Backup Date: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Server: %s\n", facts.Hostname)
	fmt.Fprintf(&b, "Server IP: %s\n", facts.IP)
	fmt.Fprintf(&b, "OS Version: %s\n", facts.OSVersion)
	fmt.Fprintf(&b, "Bitrix Root: %s\n", cfg.BitrixRoot)
	fmt.Fprintf(&b, "Database: %s\n", cfg.Database.Name)

	b.WriteString("\nBackup Contents:\n")
	for _, line := range contents {
		fmt.Fprintf(&b, "%s\n", line)
	}

	b.WriteString("\nSoftware Versions:\n")
	fmt.Fprintf(&b, "PHP: %s\n", facts.PHPVersion)
	fmt.Fprintf(&b, "MySQL: %s\n", facts.MySQLVersion)

	b.WriteString("\nDisk Usage:\n")
	fmt.Fprintf(&b, "%s\n", facts.DiskUsage)
	return b.String()
}

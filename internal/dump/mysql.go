// Package dump produces the database dump by driving mysqldump as an
// opaque external command.
package dump

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/ashevtsov/bitrix-backup/internal/config"
)

// Params are the connection settings read from the [client] section of a
// MySQL defaults file. The file itself is handed to mysqldump via
// --defaults-file so the password never appears on a command line.
type Params struct {
	User     string
	Password string
	Host     string
	Port     string
	Socket   string
}

// ParseDefaultsFile reads and validates the [client] section of path.
func ParseDefaultsFile(path string) (*Params, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("mysql defaults file: %w", err)
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	sec, err := f.GetSection("client")
	if err != nil {
		return nil, fmt.Errorf("no [client] section in %s", path)
	}

	p := &Params{
		User:     sec.Key("user").String(),
		Password: sec.Key("password").String(),
		Host:     sec.Key("host").String(),
		Port:     sec.Key("port").String(),
		Socket:   sec.Key("socket").String(),
	}

	if p.User == "" {
		return nil, fmt.Errorf("no user in [client] section of %s", path)
	}
	if p.Password == "" {
		return nil, fmt.Errorf("no password in [client] section of %s", path)
	}
	if p.Socket == "" && p.Host == "" {
		return nil, fmt.Errorf("either socket or host required in [client] section of %s", path)
	}
	if p.Host != "" && p.Port == "" {
		p.Port = "3306"
	}
	return p, nil
}

// Run dumps cfg.Name into destDir and returns the dump file path.
func Run(ctx context.Context, cfg config.DatabaseConfig, destDir string) (string, error) {
	if _, err := ParseDefaultsFile(cfg.MySQLConfig); err != nil {
		return "", err
	}

	out := filepath.Join(destDir, "database_"+cfg.Name+".sql")
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("creating dump file: %w", err)
	}
	defer f.Close()

	cmd := exec.CommandContext(ctx, "mysqldump",
		"--defaults-file="+cfg.MySQLConfig,
		"--single-transaction",
		"--routines",
		"--triggers",
		"--lock-tables=false",
		cfg.Name,
	)
	cmd.Stdout = f
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("mysqldump: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

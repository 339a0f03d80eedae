package dump

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDefaults(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".my.cnf")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write defaults file: %v", err)
	}
	return path
}

func TestParseDefaultsFile(t *testing.T) {
	p, err := ParseDefaultsFile(writeDefaults(t, `
[client]
user = bitrix
password = secret
host = 127.0.0.1
`))
	if err != nil {
		t.Fatalf("ParseDefaultsFile: %v", err)
	}
	if p.User != "bitrix" || p.Password != "secret" {
		t.Errorf("params = %+v", p)
	}
	if p.Port != "3306" {
		t.Errorf("Port = %q, want default 3306", p.Port)
	}
}

func TestParseDefaultsFileSocketOnly(t *testing.T) {
	p, err := ParseDefaultsFile(writeDefaults(t, `
[client]
user = bitrix
password = secret
socket = /var/lib/mysqld/mysqld.sock
`))
	if err != nil {
		t.Fatalf("ParseDefaultsFile: %v", err)
	}
	if p.Socket == "" || p.Port != "" {
		t.Errorf("params = %+v", p)
	}
}

func TestParseDefaultsFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no client section", "[mysqld]\nuser = x\n", "[client]"},
		{"missing user", "[client]\npassword = p\nhost = h\n", "no user"},
		{"missing password", "[client]\nuser = u\nhost = h\n", "no password"},
		{"no socket or host", "[client]\nuser = u\npassword = p\n", "socket or host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefaultsFile(writeDefaults(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDefaultsFileMissing(t *testing.T) {
	if _, err := ParseDefaultsFile(filepath.Join(t.TempDir(), "nope.cnf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

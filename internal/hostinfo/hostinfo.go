// Package hostinfo gathers facts about the server a backup runs on:
// free disk space, addresses, OS and tool versions for the info file.
package hostinfo

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
)

// DiskResult reports whether a path has enough free space.
type DiskResult struct {
	AvailableKB int64
	RequiredKB  int64
	OK          bool
}

// Hostname returns the server hostname, "unknown" when unavailable.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

// HostIP returns the address the host would use to reach the outside.
// No packets are sent; the dial only resolves the local endpoint.
func HostIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "unknown"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "unknown"
	}
	return addr.IP.String()
}

// OSVersion returns the PRETTY_NAME from /etc/os-release.
func OSVersion() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "unknown"
	}
	return parseOSRelease(data)
}

func parseOSRelease(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		value, ok := strings.CutPrefix(line, "PRETTY_NAME=")
		if !ok {
			continue
		}
		return strings.Trim(value, `"`)
	}
	return "unknown"
}

// CommandVersion runs a command and returns the first line of its
// output, typically a version banner.
func CommandVersion(ctx context.Context, name string, args ...string) string {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "unknown"
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line)
}

// PHPVersion returns the installed PHP version string.
func PHPVersion(ctx context.Context) string {
	return CommandVersion(ctx, "php", "-r", "echo PHP_VERSION;")
}

// MySQLVersion returns the installed MySQL client version string.
func MySQLVersion(ctx context.Context) string {
	return CommandVersion(ctx, "mysql", "-V")
}

// DiskUsage returns the df lines for real block devices.
func DiskUsage(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "df", "-h").Output()
	if err != nil {
		return "unknown"
	}
	return filterDeviceLines(string(out))
}

func filterDeviceLines(dfOutput string) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimRight(dfOutput, "\n"), "\n") {
		if strings.HasPrefix(line, "/dev") {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "unknown"
	}
	return strings.Join(lines, "\n")
}

func (r DiskResult) String() string {
	return fmt.Sprintf("%d KB available, %d KB required", r.AvailableKB, r.RequiredKB)
}

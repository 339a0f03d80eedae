//go:build unix

package hostinfo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CheckDiskSpace compares the free space at path against requiredKB.
func CheckDiskSpace(path string, requiredKB int64) (DiskResult, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return DiskResult{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	availableKB := int64(st.Bavail) * int64(st.Bsize) / 1024
	return DiskResult{
		AvailableKB: availableKB,
		RequiredKB:  requiredKB,
		OK:          availableKB >= requiredKB,
	}, nil
}

//go:build !unix

package hostinfo

import "errors"

// CheckDiskSpace is unavailable here; callers treat the error as a
// skipped preflight, not a failed one.
func CheckDiskSpace(string, int64) (DiskResult, error) {
	return DiskResult{}, errors.New("disk space check not supported on this platform")
}

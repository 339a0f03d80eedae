package catalog

import (
	"fmt"
	"math"
)

var sizeUnits = [...]string{"B", "KB", "MB", "GB", "TB", "PB"}

// HumanSize formats n with base-1024 units and one decimal place,
// rounding down. Zero is special-cased to "0B".
func HumanSize(n int64) string {
	if n == 0 {
		return "0B"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f%s", math.Floor(v*10)/10, sizeUnits[i])
}

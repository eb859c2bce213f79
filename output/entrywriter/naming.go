package entrywriter

import (
	"fmt"
	"regexp"
	"strconv"
)

var numericSuffix = regexp.MustCompile(`^(.*)_(\d+)$`)

// splitName separates a trailing _N from name. Names without a suffix
// return n = -1.
func splitName(name string) (base string, n int) {
	m := numericSuffix.FindStringSubmatch(name)
	if m == nil {
		return name, -1
	}
	v, err := strconv.Atoi(m[2])
	if err != nil {
		return name, -1
	}
	return m[1], v
}

// successor returns the first name after name in its _N sequence that is
// not taken. A name without a suffix continues as name_1.
func successor(name string, taken func(string) bool) string {
	base, n := splitName(name)
	if n < 0 {
		return nextFree(base, 1, taken)
	}
	return nextFree(base, n+1, taken)
}

func nextFree(base string, from int, taken func(string) bool) string {
	for i := max(from, 0); ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

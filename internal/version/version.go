// Package version compares dotted-numeric plugin version strings.
//
// Every dot-separated component is compared as an integer, so "1.10" is
// newer than "1.9". Shorter versions are padded with zero components, making
// "2.0" equal to "2.0.0". Any component that is not a plain non-negative
// integer makes the whole comparison fail with ErrInvalidVersion; callers
// decide how conservative to be in that case.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a version string is empty or contains
// a non-numeric component.
var ErrInvalidVersion = errors.New("invalid version")

// Parse splits v into its numeric components.
func Parse(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidVersion)
	}

	parts := strings.Split(v, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q has an empty component", ErrInvalidVersion, v)
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return nil, fmt.Errorf("%w: %q has non-numeric component %q", ErrInvalidVersion, v, p)
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, v, err)
		}
		nums[i] = n
	}
	return nums, nil
}

// Compare returns -1 if a < b, 0 if a == b and +1 if a > b.
func Compare(a, b string) (int, error) {
	pa, err := Parse(a)
	if err != nil {
		return 0, err
	}
	pb, err := Parse(b)
	if err != nil {
		return 0, err
	}

	n := max(len(pa), len(pb))
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
	}
	return 0, nil
}

// Less reports whether a is strictly older than b.
func Less(a, b string) (bool, error) {
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}

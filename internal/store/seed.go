package store

import (
	"fmt"
	"strconv"
)

// Seeds are full uint64 values; SQL integer columns are signed, so they
// are stored as text or NUMERIC.
func parseSeed(s string) (uint64, error) {
	seed, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse seed %q: %w", s, err)
	}
	return seed, nil
}

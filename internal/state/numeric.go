// ./internal/state/numeric.go
package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// scanInt parses a NUMERIC(78, 0) column value into an sdkmath.Int.
// lib/pq returns NUMERIC as a decimal string.
func scanInt(column, value string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("column %s holds invalid integer %q", column, value)
	}
	return v, nil
}

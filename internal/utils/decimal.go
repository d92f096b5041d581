package utils

import (
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// NumericValue converts a numeric column. ok is false for NULL, NaN,
// infinities or values that cannot be represented as float64.
func NumericValue(value pgtype.Numeric) (float64, bool) {
	if !value.Valid {
		return 0, false
	}
	if value.NaN || value.InfinityModifier != pgtype.Finite {
		return 0, false
	}
	if f, err := value.Float64Value(); err == nil && f.Valid {
		return f.Float64, true
	}
	text, err := value.MarshalJSON()
	if err != nil {
		return 0, false
	}
	out, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		return 0, false
	}
	return out, true
}

// Package units parses the capacity literals accepted by the shell's
// "format" command ("600MB", "1GB", "8Kb", ...) into a byte count.
package units

import (
	_ "embed"
	"fmt"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/jpillora/fatvol/errors"
)

// unitRow is one row of the embedded suffix table: a unit suffix and the
// multiplier that converts a count of that unit into bytes, expressed as a
// numerator/denominator pair since the bit-based suffixes (b, Kb, Mb, Gb)
// divide by 8.
type unitRow struct {
	Suffix      string `csv:"suffix"`
	Numerator   uint64 `csv:"numerator"`
	Denominator uint64 `csv:"denominator"`
}

//go:embed unit-multipliers.csv
var rawMultipliersCSV string

var multipliers map[string]unitRow

func init() {
	var rows []unitRow
	if err := gocsv.UnmarshalString(rawMultipliersCSV, &rows); err != nil {
		panic(fmt.Sprintf("units: malformed embedded multiplier table: %s", err))
	}

	multipliers = make(map[string]unitRow, len(rows))
	for _, row := range rows {
		multipliers[row.Suffix] = row
	}
}

// ParseCapacity parses a literal of the form "<digits><suffix>" (e.g.
// "600MB", "8Kb") into a byte count. It fails with errors.ErrBadCapacity if
// the suffix is unrecognized, the digits don't parse, or the resulting byte
// count isn't a multiple of 512.
func ParseCapacity(literal string) (uint64, error) {
	splitAt := len(literal)
	for i, r := range literal {
		if r < '0' || r > '9' {
			splitAt = i
			break
		}
	}

	digits, suffix := literal[:splitAt], literal[splitAt:]
	if digits == "" || suffix == "" {
		return 0, errors.ErrBadCapacity.WithMessage(
			fmt.Sprintf("malformed capacity literal %q", literal))
	}

	count, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, errors.ErrBadCapacity.WithMessage(
			fmt.Sprintf("malformed count in %q", literal))
	}

	row, ok := multipliers[suffix]
	if !ok {
		return 0, errors.ErrBadCapacity.WithMessage(
			fmt.Sprintf("unrecognized unit suffix %q", suffix))
	}

	scaled := count * row.Numerator
	if scaled%(row.Denominator*512) != 0 {
		return 0, errors.ErrBadCapacity.WithMessage(
			fmt.Sprintf("%q is not a whole multiple of 512 bytes", literal))
	}

	return scaled / row.Denominator, nil
}

// KnownSuffixes returns the recognized unit suffixes, for use in usage text.
func KnownSuffixes() []string {
	suffixes := make([]string, 0, len(multipliers))
	for suffix := range multipliers {
		suffixes = append(suffixes, suffix)
	}
	return suffixes
}

package sheet

import "fmt"

// ColumnLetter converts a 1-based column index to its spreadsheet letter
// using bijective base-26 numbering: A=1, Z=26, AA=27.
func ColumnLetter(n int) string {
	letters := ""
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}

// DataRange is the write target for recordCount rows of fieldCount columns,
// starting at startCol on row 2 so the header row stays untouched.
func DataRange(startCol, fieldCount, recordCount int) string {
	return fmt.Sprintf("%s2:%s%d",
		ColumnLetter(startCol), ColumnLetter(startCol+fieldCount-1), recordCount+1)
}

// ClearRange spans the managed column window from row 2 down to a fixed
// upper bound. Clearing to the bound rather than the used range removes
// stale rows left behind by a previously longer dataset.
func ClearRange(startCol, fieldCount, rowLimit int) string {
	return fmt.Sprintf("%s2:%s%d",
		ColumnLetter(startCol), ColumnLetter(startCol+fieldCount-1), rowLimit)
}

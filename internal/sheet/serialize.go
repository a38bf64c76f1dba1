package sheet

import "time"

// cellLayout has no "T" separator; the sink's date parser rejects the ISO
// form.
const cellLayout = "2006-01-02 15:04:05"

// CellValue converts a value to its sheet representation. Absent values
// become an explicit empty string, never an omitted cell, so every row keeps
// the same width.
func CellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format(cellLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(cellLayout)
	default:
		return v
	}
}

// SerializeRows applies CellValue to every cell.
func SerializeRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = CellValue(v)
		}
		out[i] = cells
	}
	return out
}

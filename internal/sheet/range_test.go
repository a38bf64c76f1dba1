package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{
		1:   "A",
		2:   "B",
		26:  "Z",
		27:  "AA",
		28:  "AB",
		52:  "AZ",
		53:  "BA",
		702: "ZZ",
		703: "AAA",
	}
	for n, want := range cases {
		assert.Equal(t, want, ColumnLetter(n), "column %d", n)
	}
}

func TestDataRange(t *testing.T) {
	// 19 fields starting at column C span C through U; 120 records start
	// at row 2 and end at row 121.
	assert.Equal(t, "C2:U121", DataRange(3, 19, 120))
	assert.Equal(t, "A2:A2", DataRange(1, 1, 1))
}

func TestClearRange(t *testing.T) {
	assert.Equal(t, "C2:U15000", ClearRange(3, 19, 15000))
}

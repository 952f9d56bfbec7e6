package postgres

import (
	"fmt"
	"strings"
)

// batchSize caps rows per multi-row INSERT.
const batchSize = 500

// valuesClause renders "($1,$2),($3,$4)" for rows tuples of width cols.
func valuesClause(rows, cols int) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

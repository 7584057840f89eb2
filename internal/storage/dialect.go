package storage

import (
	"strconv"
	"strings"
)

// dialect captures the few differences between the supported drivers.
type dialect struct {
	name       string
	migrations string // file under migrations/
	positional bool   // $1, $2 ... instead of ?
	isUnique   func(err error) bool
}

// rebind rewrites ? placeholders for drivers that want positional ones.
// Queries in this package never contain literal question marks.
func (d dialect) rebind(q string) string {
	if !d.positional {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

package criteria

import "strings"

// Direction is the ordering direction of a sorting.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection normalises user input, defaulting to Asc.
func ParseDirection(raw string) Direction {
	if strings.EqualFold(strings.TrimSpace(raw), string(Desc)) {
		return Desc
	}
	return Asc
}

// Sorting orders results by a field. NaturalSort compares embedded numbers
// numerically ("SW2" before "SW10").
type Sorting struct {
	Field       string    `json:"field"`
	Direction   Direction `json:"order"`
	NaturalSort bool      `json:"naturalSorting"`
}

// Sort builds a sorting; an empty direction means Asc.
func Sort(field string, direction Direction, natural bool) Sorting {
	if direction == "" {
		direction = Asc
	}
	return Sorting{Field: field, Direction: direction, NaturalSort: natural}
}

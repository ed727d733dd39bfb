package diag

import "fmt"

// Location identifies a position in a source text. Lines and columns are 1-based.
type Location struct {
	File   string
	Line   int
	Column int
}

// NewLocation returns a pointer to a Location, handy for error constructors.
func NewLocation(file string, line, column int) *Location {
	return &Location{File: file, Line: line, Column: column}
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("Line %d, Column %d", l.Line, l.Column)
	}
	return fmt.Sprintf("File %s, Line %d, Column %d", l.File, l.Line, l.Column)
}

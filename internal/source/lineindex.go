package source

import "sort"

// LineIndex maps byte offsets to 1-based line numbers for one file.
// Built once per file; coverage and CLI diagnostics both need offset→line
// mapping.
type LineIndex struct {
	// starts[i] is the byte offset of the first byte of line i+1.
	starts []int
}

// NewLineIndex builds the index for text.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts}
}

// Line returns the 1-based line containing offset. Offsets past the end of
// the text land on the last line.
func (ix *LineIndex) Line(offset int) int {
	i := sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > offset })
	return i
}

// LineStart returns the byte offset at which the 1-based line begins,
// or -1 if the line does not exist.
func (ix *LineIndex) LineStart(line int) int {
	if line < 1 || line > len(ix.starts) {
		return -1
	}
	return ix.starts[line-1]
}

// NumLines returns the number of lines in the file.
func (ix *LineIndex) NumLines() int {
	return len(ix.starts)
}

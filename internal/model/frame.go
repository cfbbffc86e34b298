package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Key column names shared by every dataset stage
const (
	ColName = "Name"
	ColDate = "Date"
)

// ErrLengthMismatch is returned when a column does not match the frame length
var ErrLengthMismatch = errors.New("column length does not match frame length")

// Frame is a column-oriented table of per-coin observations.
// Name and Date are the key columns; every other column is a float64 series
// where NaN marks a missing value. A zero Date marks a missing date.
type Frame struct {
	Name  []string
	Date  []time.Time
	order []string
	cols  map[string][]float64
}

// Group is a contiguous run of rows that share the same coin name
type Group struct {
	Name  string
	Start int
	End   int // exclusive
}

// Len returns the number of rows in the group
func (g Group) Len() int { return g.End - g.Start }

// NewFrame creates an empty frame with n rows
func NewFrame(n int) *Frame {
	return &Frame{
		Name: make([]string, n),
		Date: make([]time.Time, n),
		cols: make(map[string][]float64),
	}
}

// Len returns the number of rows
func (f *Frame) Len() int { return len(f.Name) }

// Columns returns the numeric column names in insertion order
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether a numeric column exists
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Col returns the numeric column or nil if it does not exist.
// The returned slice is shared with the frame.
func (f *Frame) Col(name string) []float64 {
	return f.cols[name]
}

// Set adds or replaces a numeric column
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != f.Len() {
		return fmt.Errorf("%s: got %d values for %d rows: %w", name, len(values), f.Len(), ErrLengthMismatch)
	}
	if _, ok := f.cols[name]; !ok {
		f.order = append(f.order, name)
	}
	f.cols[name] = values
	return nil
}

// Drop removes a numeric column if present
func (f *Frame) Drop(name string) {
	if _, ok := f.cols[name]; !ok {
		return
	}
	delete(f.cols, name)
	for i, c := range f.order {
		if c == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the frame
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.Len())
	copy(out.Name, f.Name)
	copy(out.Date, f.Date)
	for _, c := range f.order {
		vals := make([]float64, len(f.cols[c]))
		copy(vals, f.cols[c])
		out.order = append(out.order, c)
		out.cols[c] = vals
	}
	return out
}

// Take returns a new frame made of the given rows, in the given order
func (f *Frame) Take(rows []int) *Frame {
	out := NewFrame(len(rows))
	for i, r := range rows {
		out.Name[i] = f.Name[r]
		out.Date[i] = f.Date[r]
	}
	for _, c := range f.order {
		src := f.cols[c]
		vals := make([]float64, len(rows))
		for i, r := range rows {
			vals[i] = src[r]
		}
		out.order = append(out.order, c)
		out.cols[c] = vals
	}
	return out
}

// Slice returns rows [i, j) as a new frame
func (f *Frame) Slice(i, j int) *Frame {
	rows := make([]int, 0, j-i)
	for r := i; r < j; r++ {
		rows = append(rows, r)
	}
	return f.Take(rows)
}

// Select returns a frame with the key columns and only the named numeric columns
func (f *Frame) Select(columns ...string) (*Frame, error) {
	out := NewFrame(f.Len())
	copy(out.Name, f.Name)
	copy(out.Date, f.Date)
	for _, c := range columns {
		vals, ok := f.cols[c]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", c)
		}
		cp := make([]float64, len(vals))
		copy(cp, vals)
		if err := out.Set(c, cp); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SortByNameDate returns a copy sorted by coin name and then date.
// The sort is stable and rows with a missing date go last within their coin.
func (f *Frame) SortByNameDate() *Frame {
	rows := make([]int, f.Len())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		if f.Name[ra] != f.Name[rb] {
			return f.Name[ra] < f.Name[rb]
		}
		return dateLess(f.Date[ra], f.Date[rb])
	})
	return f.Take(rows)
}

func dateLess(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.Before(b)
	}
}

// Groups returns the contiguous runs of equal coin names.
// Call it on a frame sorted with SortByNameDate to get one group per coin.
func (f *Frame) Groups() []Group {
	var groups []Group
	for i := 0; i < f.Len(); i++ {
		if i == 0 || f.Name[i] != f.Name[i-1] {
			groups = append(groups, Group{Name: f.Name[i], Start: i, End: i + 1})
			continue
		}
		groups[len(groups)-1].End = i + 1
	}
	return groups
}

// MissingCount returns the number of NaN values in a column
func (f *Frame) MissingCount(name string) int {
	n := 0
	for _, v := range f.cols[name] {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// NaNs returns a slice of n NaN values
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

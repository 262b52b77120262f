package models

import (
	"fmt"
	"time"
)

// TimeFormat identifies the temporal encoding inferred for a column
type TimeFormat string

const (
	FormatNone       TimeFormat = ""            // Not temporal
	FormatDottedDMY  TimeFormat = "dotted-dmy"  // 02.01.2006[ 15:04[:05[.f]]]
	FormatSlashedDMY TimeFormat = "slashed-dmy" // 02/01/2006 15:04:05[.f]
	FormatISOT       TimeFormat = "iso-t"       // 2006-01-02T15:04:05[.f][Z|±hh:mm]
	FormatISOSpace   TimeFormat = "iso-space"   // 2006-01-02 15:04:05[.f]
	FormatISODate    TimeFormat = "iso-date"    // 2006-01-02
	FormatPermissive TimeFormat = "permissive"  // Best effort, NULL on failure
)

// Column is one column of a parsed input table.
// Text holds the raw cell values ("" is NULL). For temporal columns
// Times holds the parsed instants (zero is NULL) and Text is kept as read.
type Column struct {
	Name   string
	Format TimeFormat
	Text   []string
	Times  []time.Time
}

// IsTemporal reports whether the column was converted to instants
func (c *Column) IsTemporal() bool {
	return c.Format != FormatNone && c.Times != nil
}

// Batch is a parsed input file in column-oriented form
type Batch struct {
	Source  string // Path of the file the batch was read from
	Columns []*Column
	Rows    int
}

// Column returns the named column or nil
func (b *Batch) Column(name string) *Column {
	for _, c := range b.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnNames returns column names in file order
func (b *Batch) ColumnNames() []string {
	names := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks that every column holds exactly Rows values
func (b *Batch) Validate() error {
	for _, c := range b.Columns {
		if len(c.Text) != b.Rows {
			return fmt.Errorf("column %q has %d values, want %d", c.Name, len(c.Text), b.Rows)
		}
		if c.Times != nil && len(c.Times) != b.Rows {
			return fmt.Errorf("column %q has %d parsed times, want %d", c.Name, len(c.Times), b.Rows)
		}
	}
	return nil
}

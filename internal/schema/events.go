package schema

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/searchflow/internal/models"
)

// ErrMissingColumn is returned when a batch lacks a required canonical column
var ErrMissingColumn = errors.New("required column missing")

// Conversion is the outcome of turning a batch into events
type Conversion struct {
	Events        []models.Event
	Properties    []string          // Property column names in file order
	Renamed       map[string]string // Source name to property name, for names that clash with store columns
	DroppedNoTime int
	DroppedNoName int
	Warnings      []string
}

// Dropped is the number of rows that did not become events
func (c *Conversion) Dropped() int {
	return c.DroppedNoTime + c.DroppedNoName
}

// Events converts a normalized batch into events. Rows without a parsed
// timestamp or a name are dropped and counted. Every non-key column becomes a
// property; temporal property values are rendered as RFC 3339 UTC text.
func Events(batch *models.Batch) (*Conversion, error) {
	tsCol := batch.Column(models.ColTimestamp)
	if tsCol == nil {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(batch.Source), ErrMissingColumn, models.ColTimestamp)
	}
	if !tsCol.IsTemporal() {
		return nil, fmt.Errorf("%s: column %q could not be parsed as timestamps", filepath.Base(batch.Source), models.ColTimestamp)
	}
	nameCol := batch.Column(models.ColName)
	if nameCol == nil {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(batch.Source), ErrMissingColumn, models.ColName)
	}
	userCol := batch.Column(models.ColUserID)
	sessionCol := batch.Column(models.ColSessionID)

	conv := &Conversion{Renamed: make(map[string]string)}

	type property struct {
		name string
		col  *models.Column
	}
	var props []property
	used := make(map[string]bool)
	for _, c := range batch.Columns {
		if c == tsCol || c == nameCol || c == userCol || c == sessionCol {
			continue
		}
		name := propertyName(c.Name, used)
		if name != c.Name {
			conv.Renamed[c.Name] = name
			conv.Warnings = append(conv.Warnings,
				fmt.Sprintf("column %q stored as %q to avoid a clash", c.Name, name))
		}
		used[strings.ToLower(name)] = true
		props = append(props, property{name: name, col: c})
		conv.Properties = append(conv.Properties, name)
	}

	source := filepath.Base(batch.Source)
	for i := 0; i < batch.Rows; i++ {
		ts := tsCol.Times[i]
		if ts.IsZero() {
			conv.DroppedNoTime++
			continue
		}
		name := strings.TrimSpace(nameCol.Text[i])
		if name == "" {
			conv.DroppedNoName++
			continue
		}

		ev := models.Event{
			SourceFile: source,
			Timestamp:  ts.UTC(),
			UserID:     textAt(userCol, i),
			SessionID:  textAt(sessionCol, i),
			Name:       name,
			Properties: make(map[string]string),
		}
		for _, p := range props {
			if v, ok := valueAt(p.col, i); ok {
				ev.Properties[p.name] = v
			}
		}
		conv.Events = append(conv.Events, ev)
	}

	if n := conv.DroppedNoTime; n > 0 {
		conv.Warnings = append(conv.Warnings, fmt.Sprintf("%d rows dropped without a timestamp", n))
	}
	if n := conv.DroppedNoName; n > 0 {
		conv.Warnings = append(conv.Warnings, fmt.Sprintf("%d rows dropped without an event name", n))
	}
	return conv, nil
}

// propertyName picks a store-safe name for a property column
func propertyName(name string, used map[string]bool) string {
	if !models.IsReservedColumn(name) && !used[strings.ToLower(name)] {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		if !models.IsReservedColumn(candidate) && !used[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

func textAt(c *models.Column, i int) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text[i])
}

// valueAt returns the stored text of a cell and whether it is non-NULL
func valueAt(c *models.Column, i int) (string, bool) {
	if c.IsTemporal() {
		t := c.Times[i]
		if t.IsZero() {
			return "", false
		}
		return t.UTC().Format(time.RFC3339Nano), true
	}
	v := c.Text[i]
	return v, v != ""
}

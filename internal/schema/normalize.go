// Package schema maps heterogeneous export columns onto the canonical event
// schema and turns parsed batches into events.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/harrison/searchflow/internal/models"
)

// bracketedTimestamp matches export-origin labels such as "timestamp [UTC]"
var bracketedTimestamp = regexp.MustCompile(`(?i)^timestamp\s*\[[^\]]*\]$`)

// canonicalFor returns the canonical column an alias maps to, or "" when
// the name is not a known alias.
func canonicalFor(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	compact := strings.NewReplacer("_", "", "-", "", " ", "").Replace(lower)

	switch {
	case compact == "userid":
		return models.ColUserID
	case compact == "sessionid":
		return models.ColSessionID
	case lower == "name" || compact == "eventname":
		return models.ColName
	case lower == "timestamp" || bracketedTimestamp.MatchString(lower):
		return models.ColTimestamp
	}
	return ""
}

// Rename records one applied alias
type Rename struct {
	From string
	To   string
}

// Result describes what Normalize changed
type Result struct {
	Renamed  []Rename
	Kept     []string // Aliases left untouched because the canonical name was taken
	Warnings []string
}

// Normalize renames known aliases to their canonical names in place.
// Absent aliases are skipped and no column is ever invented. When the
// canonical name already exists the alias keeps its original name.
func Normalize(batch *models.Batch) Result {
	var res Result

	taken := make(map[string]bool, len(batch.Columns))
	for _, c := range batch.Columns {
		taken[c.Name] = true
	}

	for _, c := range batch.Columns {
		canonical := canonicalFor(c.Name)
		if canonical == "" || canonical == c.Name {
			continue
		}
		if taken[canonical] {
			res.Kept = append(res.Kept, c.Name)
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("column %q not renamed: %q already present", c.Name, canonical))
			continue
		}
		res.Renamed = append(res.Renamed, Rename{From: c.Name, To: canonical})
		delete(taken, c.Name)
		taken[canonical] = true
		c.Name = canonical
	}

	return res
}

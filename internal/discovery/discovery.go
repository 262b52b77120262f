// Package discovery locates input exports in a directory and orders them by
// the date carried in their file name.
package discovery

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/searchflow/internal/fileutil"
)

// ErrNoInput is returned when no usable input file is found
var ErrNoInput = errors.New("no input file found")

// Extensions lists the file types considered as inputs
var Extensions = []string{".csv", ".tsv", ".txt", ".xlsx", ".xlsm"}

// IsInput reports whether a file name looks like an input export. Hidden
// files and office lock files are not inputs.
func IsInput(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

var dateSuffix = regexp.MustCompile(`_(\d{4})_(\d{2})_(\d{2})$`)

// Input is one discovered file
type Input struct {
	Path  string
	Name  string
	Date  time.Time // File name date, or modification time when undated
	Dated bool      // Date came from the file name
}

// FileDate extracts the _YYYY_MM_DD suffix of a file stem. Impossible
// calendar dates are rejected.
func FileDate(stem string) (time.Time, bool) {
	m := dateSuffix.FindStringSubmatch(stem)
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// Chronological returns every input in dir, oldest first. Files with equal
// dates are ordered by path.
func Chronological(dir string) ([]Input, error) {
	result, err := fileutil.ScanDirectory(dir, IsInput)
	if err != nil {
		return nil, fmt.Errorf("%w in %s: %v", ErrNoInput, dir, err)
	}

	inputs := make([]Input, 0, len(result.Files))
	for _, f := range result.Files {
		in := Input{Path: f.Path, Name: f.Name, Date: f.ModTime}
		if d, ok := FileDate(f.Stem()); ok {
			in.Date, in.Dated = d, true
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInput, dir)
	}

	sort.SliceStable(inputs, func(i, j int) bool {
		if !inputs[i].Date.Equal(inputs[j].Date) {
			return inputs[i].Date.Before(inputs[j].Date)
		}
		return inputs[i].Path < inputs[j].Path
	})
	return inputs, nil
}

// Newest returns the most recent input in dir
func Newest(dir string) (Input, error) {
	inputs, err := Chronological(dir)
	if err != nil {
		return Input{}, err
	}
	return inputs[len(inputs)-1], nil
}

// Package roster converts member lists to and from the members.csv backup format.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"membership/internal/calendar"
	"membership/internal/member"
)

// Column names of members.csv, in export order. Spreadsheets and the importer
// depend on these exact names.
const (
	ColName              = "name"
	ColBirthday          = "birthday"
	ColPhone             = "phone"
	ColEmail             = "email"
	ColTag               = "tag"
	ColGender            = "gender"
	ColIsTeenager        = "isTeenager"
	ColIsBaptized        = "isBaptized"
	ColHasTakenCommunion = "hasTakenCommunion"
)

// Header is the export column order.
var Header = []string{
	ColName, ColBirthday, ColPhone, ColEmail, ColTag, ColGender,
	ColIsTeenager, ColIsBaptized, ColHasTakenCommunion,
}

// Filename is the suggested download name of an export.
const Filename = "members.csv"

// ErrMissingName is returned when the header row has no name column.
var ErrMissingName = errors.New(`csv header has no "name" column`)

// Severity grades an import issue. Errors reject the batch, warnings do not.
type Severity string

const (
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Issue describes one problem found while reading members.csv. Line is the
// 1-based line of the file where the offending record starts.
type Issue struct {
	Line     int      `json:"line"`
	Column   string   `json:"column,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Issues is the list of problems found in one file.
type Issues []Issue

// HasErrors reports whether any issue rejects the batch.
func (is Issues) HasErrors() bool {
	for _, i := range is {
		if i.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the error issues.
func (is Issues) Errors() Issues {
	var out Issues
	for _, i := range is {
		if i.Severity == Error {
			out = append(out, i)
		}
	}
	return out
}

// Export writes the header and one row per member. Unknown optional fields
// are written as empty cells, flags as the literals true/false.
func Export(w io.Writer, members []member.Member) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, m := range members {
		row := []string{
			m.Name,
			member.Text(m.Birthday),
			member.Text(m.Phone),
			member.Text(m.Email),
			member.Text(m.Tag),
			string(m.Gender),
			formatBool(m.IsTeenager),
			formatBool(m.IsBaptized),
			formatBool(m.HasTakenCommunion),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Import reads members.csv into insert payloads. Columns are matched by header
// name in any order. The returned error is only for unreadable input; content
// problems are reported as issues so the caller can decide what to do.
func Import(r io.Reader) ([]member.Fields, Issues, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrMissingName
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	var issues Issues
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if _, known := knownColumn[h]; !known {
			issues = append(issues, Issue{Line: 1, Column: h, Severity: Warning, Message: "unknown column ignored"})
			continue
		}
		if _, dup := index[h]; dup {
			issues = append(issues, Issue{Line: 1, Column: h, Severity: Warning, Message: "duplicate column ignored; the first one is used"})
			continue
		}
		index[h] = i
	}
	if _, ok := index[ColName]; !ok {
		return nil, nil, ErrMissingName
	}
	if _, ok := index[ColGender]; !ok {
		issues = append(issues, Issue{Line: 1, Column: ColGender, Severity: Warning,
			Message: `column missing; every member defaults to "male"`})
	}

	var out []member.Fields
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		f, rowIssues := parseRow(rec, index, line)
		issues = append(issues, rowIssues...)
		out = append(out, f)
	}
	return out, issues, nil
}

var knownColumn = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Header))
	for _, h := range Header {
		m[h] = struct{}{}
	}
	return m
}()

func parseRow(rec []string, index map[string]int, line int) (member.Fields, Issues) {
	var issues Issues
	cell := func(col string) (string, bool) {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return "", false
		}
		return rec[i], true
	}
	optional := func(col string) *string {
		v, _ := cell(col)
		if v == "" {
			return nil
		}
		return &v
	}
	flag := func(col string) bool {
		v, present := cell(col)
		switch {
		case v == "true":
			return true
		case v == "false" || v == "" || !present:
			return false
		default:
			issues = append(issues, Issue{Line: line, Column: col, Severity: Warning,
				Message: fmt.Sprintf("%q is not the literal true; treated as false", v)})
			return false
		}
	}

	name, _ := cell(ColName)
	f := member.Fields{
		Name:     name,
		Birthday: optional(ColBirthday),
		Phone:    optional(ColPhone),
		Email:    optional(ColEmail),
		Tag:      optional(ColTag),
	}
	if strings.TrimSpace(name) == "" {
		issues = append(issues, Issue{Line: line, Column: ColName, Severity: Error, Message: "name is required"})
	}
	if f.Birthday != nil && !calendar.Valid(*f.Birthday) {
		issues = append(issues, Issue{Line: line, Column: ColBirthday, Severity: Error,
			Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", *f.Birthday)})
	}

	_, hasGenderColumn := index[ColGender]
	switch g, _ := cell(ColGender); {
	case g == "":
		f.Gender = member.Male
		if hasGenderColumn {
			issues = append(issues, Issue{Line: line, Column: ColGender, Severity: Warning,
				Message: `empty; defaulted to "male"`})
		}
	case member.Gender(g).Valid():
		f.Gender = member.Gender(g)
	default:
		f.Gender = member.Gender(g)
		issues = append(issues, Issue{Line: line, Column: ColGender, Severity: Error,
			Message: fmt.Sprintf("%q is not male or female", g)})
	}

	f.IsTeenager = flag(ColIsTeenager)
	f.IsBaptized = flag(ColIsBaptized)
	f.HasTakenCommunion = flag(ColHasTakenCommunion)
	return f, issues
}

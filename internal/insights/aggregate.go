// Package insights reduces member and attendance rows into dashboard summaries.
package insights

import (
	"sort"

	"membership/internal/attendance"
	"membership/internal/member"
)

// Demographics splits members by gender and age group. Other counts genders
// that are neither male nor female.
type Demographics struct {
	Male     int `json:"male"`
	Female   int `json:"female"`
	Other    int `json:"other"`
	Teenager int `json:"teenager"`
	Adult    int `json:"adult"`
}

// Totals counts one date's records. Communion overlaps either status.
type Totals struct {
	Present   int `json:"present"`
	Absent    int `json:"absent"`
	Communion int `json:"communion"`
}

// DailyCount is the totals of a single date.
type DailyCount struct {
	Date string `json:"date"`
	Totals
}

// Attender is a member with the number of dates they were present.
type Attender struct {
	MemberID string `json:"memberId"`
	Name     string `json:"name"`
	Present  int    `json:"present"`
}

// Category is a named predicate over members.
type Category struct {
	Label string
	Match func(member.Member) bool
}

// CategoryCount is the number of members matching a category.
type CategoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DefaultCategories are the categories shown on the overview.
var DefaultCategories = []Category{
	{Label: "Baptized", Match: func(m member.Member) bool { return m.IsBaptized }},
	{Label: "Communion", Match: func(m member.Member) bool { return m.HasTakenCommunion }},
	{Label: "Teenager", Match: func(m member.Member) bool { return m.IsTeenager }},
}

// ComputeDemographics counts members in a single pass.
func ComputeDemographics(members []member.Member) Demographics {
	var d Demographics
	for _, m := range members {
		switch m.Gender {
		case member.Male:
			d.Male++
		case member.Female:
			d.Female++
		default:
			d.Other++
		}
		if m.IsTeenager {
			d.Teenager++
		} else {
			d.Adult++
		}
	}
	return d
}

// AttendanceTotals counts records, normally those of one date.
func AttendanceTotals(records []attendance.Record) Totals {
	var t Totals
	for _, r := range records {
		t.add(r)
	}
	return t
}

func (t *Totals) add(r attendance.Record) {
	switch r.Status {
	case attendance.Present:
		t.Present++
	case attendance.Absent:
		t.Absent++
	}
	if r.Communion {
		t.Communion++
	}
}

// DailyAttendanceSeries groups records by date within [from, to], newest first.
// Empty bounds are open. Dates without records are omitted.
func DailyAttendanceSeries(records []attendance.Record, from, to string) []DailyCount {
	byDate := map[string]*DailyCount{}
	for _, r := range records {
		if (from != "" && r.Date < from) || (to != "" && r.Date > to) {
			continue
		}
		dc, ok := byDate[r.Date]
		if !ok {
			dc = &DailyCount{Date: r.Date}
			byDate[r.Date] = dc
		}
		dc.add(r)
	}
	series := make([]DailyCount, 0, len(byDate))
	for _, dc := range byDate {
		series = append(series, *dc)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date > series[j].Date })
	return series
}

// ExtremalAttendance returns the dates with the highest and lowest present
// count. Ties go to the earliest date. ok is false for an empty series.
func ExtremalAttendance(series []DailyCount) (high, low DailyCount, ok bool) {
	if len(series) == 0 {
		return DailyCount{}, DailyCount{}, false
	}
	high, low = series[0], series[0]
	for _, dc := range series[1:] {
		if dc.Present > high.Present || (dc.Present == high.Present && dc.Date < high.Date) {
			high = dc
		}
		if dc.Present < low.Present || (dc.Present == low.Present && dc.Date < low.Date) {
			low = dc
		}
	}
	return high, low, true
}

// TopAttenders ranks members by present records, most first, then by name and
// id. Members without records rank with zero. Records of unknown members are
// ignored. At most n entries are returned.
func TopAttenders(members []member.Member, records []attendance.Record, n int) []Attender {
	if n <= 0 {
		return nil
	}
	counts := make(map[string]int, len(members))
	for _, r := range records {
		if r.Status == attendance.Present {
			counts[r.MemberID]++
		}
	}
	ranked := make([]Attender, 0, len(members))
	for _, m := range members {
		ranked = append(ranked, Attender{MemberID: m.ID, Name: m.Name, Present: counts[m.ID]})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Present != b.Present {
			return a.Present > b.Present
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.MemberID < b.MemberID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// CategoryCounts counts members per category, in the order given.
func CategoryCounts(members []member.Member, categories []Category) []CategoryCount {
	out := make([]CategoryCount, len(categories))
	for i, c := range categories {
		out[i].Label = c.Label
		for _, m := range members {
			if c.Match(m) {
				out[i].Count++
			}
		}
	}
	return out
}

package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the stored representation of every date field.
const DateLayout = "2006-01-02"

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDOB renders a stored date as D/M/YYYY for editing. Values that are not stored dates
// are returned unchanged.
func FormatDOB(stored string) string {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return ""
	}
	t, err := time.Parse(DateLayout, stored)
	if err != nil {
		return stored
	}
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

// ParseDOB converts D/M/YYYY back to the stored representation. Input that does not parse is
// kept verbatim; the server is the only validator.
func ParseDOB(display string) string {
	display = strings.TrimSpace(display)
	if display == "" {
		return ""
	}
	parts := strings.Split(display, "/")
	if len(parts) != 3 {
		return display
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return display
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	if year < 100 {
		year += 1900
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return display
	}
	return FormatDate(t)
}

// occurredAtField names the field stamped with today's date when a new item of that column
// is created.
var occurredAtField = map[string]string{
	ColumnMicrobiologyTest: "date_ordered",
	ColumnGeneralNote:      "date",
	ColumnAntimicrobial:    "start_date",
	ColumnDiagnosis:        "date_of_diagnosis",
}

func OccurredAtField(column string) (string, bool) {
	f, ok := occurredAtField[column]
	return f, ok
}

// NewPlaceholder builds the trailing "add new" item of a repeatable column.
func NewPlaceholder(patientID int64, column string, now time.Time, ref string) Item {
	it := Item{PatientID: patientID, Fields: map[string]string{}, Ref: ref}
	if f, ok := occurredAtField[column]; ok {
		it.Fields[f] = FormatDate(now)
	}
	return it
}

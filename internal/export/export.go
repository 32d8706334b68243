// Package export renders the visible board as a Markdown handover sheet.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"patientboard/internal/board"
	"patientboard/internal/model"
	"patientboard/internal/schema"
)

type Sheet struct {
	Schema    *schema.Schema
	Filter    board.Filter
	Generated time.Time
}

// Render writes one section per visible patient and returns how many were written.
func (s Sheet) Render(w io.Writer, patients []model.Patient) (int, error) {
	ptrs := make([]*model.Patient, len(patients))
	for i := range patients {
		ptrs[i] = &patients[i]
	}
	rows := board.ComputeVisible(ptrs, s.Filter)

	var b strings.Builder
	fmt.Fprintf(&b, "# Handover: %s\n\n", s.title())
	if !s.Generated.IsZero() {
		fmt.Fprintf(&b, "_Generated %s, %d patient(s)_\n", s.Generated.Format("2006-01-02 15:04"), len(rows))
	}
	for _, p := range rows {
		s.patient(&b, p)
	}
	_, err := io.WriteString(w, b.String())
	return len(rows), err
}

func (s Sheet) title() string {
	parts := []string{s.Filter.Tag}
	if s.Filter.Hospital != "" {
		parts = append(parts, s.Filter.Hospital)
	}
	if s.Filter.Ward != "" {
		parts = append(parts, s.Filter.Ward)
	}
	return strings.Join(parts, " / ")
}

func (s Sheet) patient(b *strings.Builder, p *model.Patient) {
	d := p.Demographics()
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = fmt.Sprintf("Patient %d", p.ID)
	}
	fmt.Fprintf(b, "\n## %s", name)
	if d.HospitalNumber != "" {
		fmt.Fprintf(b, " (%s)", d.HospitalNumber)
	}
	b.WriteString("\n\n")
	if dob := model.FormatDOB(d.DateOfBirth); dob != "" {
		fmt.Fprintf(b, "DOB %s\n\n", dob)
	}
	b.WriteString(locationLine(p.Location()))
	b.WriteString("\n")

	for _, col := range s.Schema.Columns {
		if col.Singleton() || col.ListHidden {
			continue
		}
		var lines []string
		for _, it := range p.Items(col.Name) {
			if line := summary(col, it); line != "" {
				lines = append(lines, "- "+line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n### %s\n\n%s\n", col.Label(), strings.Join(lines, "\n"))
	}
}

func locationLine(loc model.Location) string {
	var place []string
	for _, v := range []string{loc.Hospital, loc.Ward} {
		if v != "" {
			place = append(place, v)
		}
	}
	if loc.Bed != "" {
		place = append(place, "bed "+loc.Bed)
	}
	parts := []string{strings.Join(place, " ")}
	if loc.Category != "" {
		parts = append(parts, loc.Category)
	}
	if loc.DateOfAdmission != "" {
		parts = append(parts, "admitted "+loc.DateOfAdmission)
	}
	if loc.DischargeDate != "" {
		parts = append(parts, "discharged "+loc.DischargeDate)
	}
	return "**Location:** " + strings.Join(parts, ", ") + "\n"
}

// summary joins the column's summary fields, then any other non-empty field.
func summary(col schema.Column, it model.Item) string {
	if it.Empty() {
		return ""
	}
	seen := map[string]bool{}
	var head []string
	for _, f := range col.SummaryFields() {
		seen[f] = true
		if v := strings.TrimSpace(it.Get(f)); v != "" {
			head = append(head, v)
		}
	}
	var rest []string
	for _, f := range col.Fields {
		if seen[f.Name] {
			continue
		}
		if v := strings.TrimSpace(it.Get(f.Name)); v != "" {
			rest = append(rest, f.Title()+": "+v)
		}
	}
	out := strings.Join(head, " ")
	if len(rest) > 0 {
		if out != "" {
			out += " "
		}
		out += "(" + strings.Join(rest, "; ") + ")"
	}
	return out
}

// Pretty renders markdown for a terminal of the given width.
func Pretty(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

// Bytes renders the sheet into memory.
func (s Sheet) Bytes(patients []model.Patient) ([]byte, int, error) {
	var buf bytes.Buffer
	n, err := s.Render(&buf, patients)
	return buf.Bytes(), n, err
}

// Destination receives a rendered sheet.
type Destination interface {
	Write(ctx context.Context, body []byte) error
}

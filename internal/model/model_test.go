package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPatient_UnmarshalOriginalShape(t *testing.T) {
	raw := `{
                "id": 7,
                "demographics": [{"id": 70, "patient_id": 7, "name": "Ada", "hospital_number": "H1", "date_of_birth": "1950-03-09"}],
                "location": [{"id": 71, "patient_id": 7, "hospital": "UCH", "ward": "T9", "bed": 3, "category": "Inpatient", "tags": {"mine": true}}],
                "diagnosis": [{"id": 72, "patient_id": 7, "condition": "Sepsis"}]
        }`
	var p Patient
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ID != 7 {
		t.Fatalf("expected id 7, got %d", p.ID)
	}
	loc := p.Location()
	if loc.Hospital != "UCH" || loc.Ward != "T9" || loc.Bed != "3" {
		t.Fatalf("unexpected location: %#v", loc)
	}
	if !loc.Tags["mine"] {
		t.Fatalf("expected location tag mine")
	}
	// Missing patient tags default to the location's.
	if !p.Tags["mine"] {
		t.Fatalf("expected patient tags to default from location, got %#v", p.Tags)
	}
	if got := p.Items(ColumnDiagnosis)[0].Get("condition"); got != "Sepsis" {
		t.Fatalf("expected diagnosis condition, got %q", got)
	}
}

func TestItem_CloneIsDetached(t *testing.T) {
	it := Item{ID: 1, Fields: map[string]string{"a": "1"}, Tags: Tags{"mine": true}}
	cp := it.Clone()
	cp.Set("a", "2")
	cp.Tags["mine"] = false
	if it.Get("a") != "1" || !it.Tags["mine"] {
		t.Fatalf("clone aliased original: %#v", it)
	}
}

func TestDOB_FormatAndParse(t *testing.T) {
	tests := []struct {
		stored  string
		display string
	}{
		{stored: "1950-03-09", display: "9/3/1950"},
		{stored: "2001-12-31", display: "31/12/2001"},
		{stored: "", display: ""},
	}
	for _, tc := range tests {
		if got := FormatDOB(tc.stored); got != tc.display {
			t.Fatalf("FormatDOB(%q)=%q want %q", tc.stored, got, tc.display)
		}
		if got := ParseDOB(tc.display); got != tc.stored {
			t.Fatalf("ParseDOB(%q)=%q want %q", tc.display, got, tc.stored)
		}
	}
	if got := ParseDOB("31/2/2001"); got != "31/2/2001" {
		t.Fatalf("expected impossible date kept verbatim, got %q", got)
	}
	if got := ParseDOB("yesterday"); got != "yesterday" {
		t.Fatalf("expected free text kept verbatim, got %q", got)
	}
}

func TestNewPlaceholder_StampsOccurredAt(t *testing.T) {
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	it := NewPlaceholder(3, ColumnGeneralNote, now, "r1")
	if it.Get("date") != "2024-05-06" {
		t.Fatalf("expected date stamped, got %#v", it.Fields)
	}
	if it.Persisted() || it.PatientID != 3 || it.Ref != "r1" {
		t.Fatalf("unexpected placeholder: %#v", it)
	}
	other := NewPlaceholder(3, "past_medical_history", now, "r2")
	if len(other.Fields) != 0 {
		t.Fatalf("expected no stamped fields, got %#v", other.Fields)
	}
}

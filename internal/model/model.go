package model

import (
	"sort"
	"strings"
)

// Clinical categories, in board sort order.
const (
	CategoryInpatient   = "Inpatient"
	CategoryReview      = "Review"
	CategoryFollowup    = "Followup"
	CategoryTransferred = "Transferred"
	CategoryDischarged  = "Discharged"
	CategoryDeceased    = "Deceased"

	// CategoryUnfollow is not a clinical category. Choosing it on discharge removes the
	// patient from the current list without touching the location.
	CategoryUnfollow = "Unfollow"
)

var Categories = []string{
	CategoryInpatient,
	CategoryReview,
	CategoryFollowup,
	CategoryTransferred,
	CategoryDischarged,
	CategoryDeceased,
}

// CategoryRank returns the position of c in Categories, or -1.
func CategoryRank(c string) int {
	for i, v := range Categories {
		if v == c {
			return i
		}
	}
	return -1
}

// Well-known column names.
const (
	ColumnDemographics     = "demographics"
	ColumnLocation         = "location"
	ColumnDiagnosis        = "diagnosis"
	ColumnAntimicrobial    = "antimicrobial"
	ColumnMicrobiologyTest = "microbiology_test"
	ColumnGeneralNote      = "general_note"
)

// Field names shared by the typed views.
const (
	FieldName            = "name"
	FieldHospitalNumber  = "hospital_number"
	FieldDateOfBirth     = "date_of_birth"
	FieldHospital        = "hospital"
	FieldWard            = "ward"
	FieldBed             = "bed"
	FieldCategory        = "category"
	FieldDateOfAdmission = "date_of_admission"
	FieldDischargeDate   = "discharge_date"
)

// Tags marks list membership ("mine", "icu", ...).
type Tags map[string]bool

func (t Tags) Clone() Tags {
	if t == nil {
		return Tags{}
	}
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Names returns the set tags, sorted.
func (t Tags) Names() []string {
	var out []string
	for k, v := range t {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Item is one record in a column. Singleton columns (demographics, location) hold exactly
// one; repeatable columns hold any number followed by a placeholder.
type Item struct {
	ID        int64
	PatientID int64
	Fields    map[string]string
	// Tags is only meaningful on location items.
	Tags Tags
	// Ref identifies the slot locally while a create is in flight. Never serialized.
	Ref string
}

func (it Item) Get(field string) string {
	return it.Fields[field]
}

func (it *Item) Set(field, value string) {
	if it.Fields == nil {
		it.Fields = map[string]string{}
	}
	it.Fields[field] = value
}

// Persisted reports whether the server has assigned an id.
func (it Item) Persisted() bool { return it.ID != 0 }

func (it Item) Clone() Item {
	out := it
	if it.Fields != nil {
		out.Fields = make(map[string]string, len(it.Fields))
		for k, v := range it.Fields {
			out.Fields[k] = v
		}
	}
	if it.Tags != nil {
		out.Tags = it.Tags.Clone()
	}
	return out
}

// Empty reports whether every field is blank.
func (it Item) Empty() bool {
	for _, v := range it.Fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Patient owns its per-column item lists.
type Patient struct {
	ID      int64
	Tags    Tags
	Columns map[string][]Item
}

func (p *Patient) Items(column string) []Item {
	if p == nil {
		return nil
	}
	return p.Columns[column]
}

func (p *Patient) SetItems(column string, items []Item) {
	if p.Columns == nil {
		p.Columns = map[string][]Item{}
	}
	p.Columns[column] = items
}

func (p Patient) Clone() Patient {
	out := Patient{ID: p.ID, Tags: p.Tags.Clone(), Columns: make(map[string][]Item, len(p.Columns))}
	for name, items := range p.Columns {
		cp := make([]Item, len(items))
		for i, it := range items {
			cp[i] = it.Clone()
		}
		out.Columns[name] = cp
	}
	return out
}

func (p *Patient) first(column string) Item {
	items := p.Items(column)
	if len(items) == 0 {
		return Item{}
	}
	return items[0]
}

// Location is a read-only typed view of the patient's primary location item.
type Location struct {
	ID              int64
	Hospital        string
	Ward            string
	Bed             string
	Category        string
	DateOfAdmission string
	DischargeDate   string
	Tags            Tags
}

func (p *Patient) Location() Location {
	it := p.first(ColumnLocation)
	return Location{
		ID:              it.ID,
		Hospital:        it.Get(FieldHospital),
		Ward:            it.Get(FieldWard),
		Bed:             it.Get(FieldBed),
		Category:        it.Get(FieldCategory),
		DateOfAdmission: it.Get(FieldDateOfAdmission),
		DischargeDate:   it.Get(FieldDischargeDate),
		Tags:            it.Tags,
	}
}

type Demographics struct {
	ID             int64
	Name           string
	HospitalNumber string
	DateOfBirth    string
}

func (p *Patient) Demographics() Demographics {
	it := p.first(ColumnDemographics)
	return Demographics{
		ID:             it.ID,
		Name:           it.Get(FieldName),
		HospitalNumber: it.Get(FieldHospitalNumber),
		DateOfBirth:    it.Get(FieldDateOfBirth),
	}
}

// NewPatient is the composite buffer used while adding a patient.
type NewPatient struct {
	Demographics Item
	Location     Item
	Tags         Tags
}

func (n NewPatient) Clone() NewPatient {
	return NewPatient{
		Demographics: n.Demographics.Clone(),
		Location:     n.Location.Clone(),
		Tags:         n.Tags.Clone(),
	}
}

package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Items travel as flat objects: {"id": 4, "patient_id": 1, "ward": "T9", "tags": {...}}.

func (it Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(it.Fields)+3)
	for k, v := range it.Fields {
		out[k] = v
	}
	if it.ID != 0 {
		out["id"] = it.ID
	}
	out["patient_id"] = it.PatientID
	if it.Tags != nil {
		out["tags"] = it.Tags
	}
	return json.Marshal(out)
}

func (it *Item) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*it = Item{Fields: map[string]string{}}
	for k, v := range raw {
		switch k {
		case "id":
			id, err := rawInt(v)
			if err != nil {
				return fmt.Errorf("item id: %w", err)
			}
			it.ID = id
		case "patient_id":
			id, err := rawInt(v)
			if err != nil {
				return fmt.Errorf("item patient_id: %w", err)
			}
			it.PatientID = id
		case "tags":
			var tags Tags
			if err := json.Unmarshal(v, &tags); err != nil {
				return fmt.Errorf("item tags: %w", err)
			}
			it.Tags = tags
		default:
			it.Fields[k] = rawString(v)
		}
	}
	return nil
}

func rawInt(v json.RawMessage) (int64, error) {
	if string(v) == "null" {
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.Int64()
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func rawString(v json.RawMessage) string {
	if string(v) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	// Numbers and booleans keep their literal form.
	return string(v)
}

// Patients travel as {"id": 1, "tags": {...}, "<column>": [items...], ...}.

func (p Patient) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Columns)+2)
	out["id"] = p.ID
	out["tags"] = p.Tags.Clone()
	names := make([]string, 0, len(p.Columns))
	for name := range p.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		items := p.Columns[name]
		if items == nil {
			items = []Item{}
		}
		out[name] = items
	}
	return json.Marshal(out)
}

func (p *Patient) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = Patient{Columns: map[string][]Item{}}
	for k, v := range raw {
		switch k {
		case "id":
			id, err := rawInt(v)
			if err != nil {
				return fmt.Errorf("patient id: %w", err)
			}
			p.ID = id
		case "tags":
			if err := json.Unmarshal(v, &p.Tags); err != nil {
				return fmt.Errorf("patient tags: %w", err)
			}
		default:
			var items []Item
			if err := json.Unmarshal(v, &items); err != nil {
				// Non-list members are not columns.
				continue
			}
			p.Columns[k] = items
		}
	}
	if p.Tags == nil {
		p.Tags = p.Location().Tags.Clone()
	}
	return nil
}

func (n NewPatient) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		ColumnDemographics: n.Demographics,
		ColumnLocation:     n.Location,
		"tags":             n.Tags.Clone(),
	})
}

func (n *NewPatient) UnmarshalJSON(b []byte) error {
	var raw struct {
		Demographics Item `json:"demographics"`
		Location     Item `json:"location"`
		Tags         Tags `json:"tags"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*n = NewPatient{Demographics: raw.Demographics, Location: raw.Location, Tags: raw.Tags}
	return nil
}

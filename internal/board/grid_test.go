package board

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"patientboard/internal/model"
	"patientboard/internal/schema"
)

// List column positions in the default schema.
const (
	colDemographics = 0
	colLocation     = 1
	colDiagnosis    = 2
)

var fixedNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

type seqIDs struct{ n int }

func (s *seqIDs) next() string {
	s.n++
	return fmt.Sprintf("ref-%d", s.n)
}

type memPrefs map[string]string

func (m memPrefs) Get(k string) string { return m[k] }
func (m memPrefs) Put(k, v string) error {
	m[k] = v
	return nil
}

func mkPatient(id int64, hospital, ward, bed, category string, tags ...string) model.Patient {
	tt := model.Tags{}
	for _, tag := range tags {
		tt[tag] = true
	}
	return model.Patient{
		ID:   id,
		Tags: tt,
		Columns: map[string][]model.Item{
			model.ColumnDemographics: {{
				ID:        id * 100,
				PatientID: id,
				Fields: map[string]string{
					model.FieldName:           fmt.Sprintf("Patient %d", id),
					model.FieldHospitalNumber: fmt.Sprintf("H%03d", id),
					model.FieldDateOfBirth:    "1970-02-01",
				},
			}},
			model.ColumnLocation: {{
				ID:        id*100 + 1,
				PatientID: id,
				Fields: map[string]string{
					model.FieldHospital: hospital,
					model.FieldWard:     ward,
					model.FieldBed:      bed,
					model.FieldCategory: category,
				},
				Tags: tt.Clone(),
			}},
			model.ColumnDiagnosis: {{
				ID:        id*100 + 2,
				PatientID: id,
				Fields:    map[string]string{"condition": "Sepsis"},
			}},
		},
	}
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Default()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func testOpts() []Option {
	ids := &seqIDs{}
	return []Option{WithClock(func() time.Time { return fixedNow }), WithIDs(ids.next)}
}

func newTestGrid(t *testing.T, patients ...model.Patient) *Grid {
	t.Helper()
	return NewGrid(testSchema(t), patients, testOpts()...)
}

func drainOne(t *testing.T, g interface{ Drain() []Request }, kind RequestKind) Request {
	t.Helper()
	reqs := g.Drain()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d: %+v", len(reqs), reqs)
	}
	if reqs[0].Kind != kind {
		t.Fatalf("expected %s, got %s", kind, reqs[0].Kind)
	}
	return reqs[0]
}

func diagnoses(g *Grid, row int) []model.Item {
	return g.Rows()[row].Items(model.ColumnDiagnosis)
}

func TestNewGrid_AppendsPlaceholders(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	p := g.Rows()[0]
	if n := len(p.Items(model.ColumnDemographics)); n != 1 {
		t.Fatalf("singleton must hold one item, got %d", n)
	}
	diag := p.Items(model.ColumnDiagnosis)
	if len(diag) != 2 {
		t.Fatalf("expected item plus placeholder, got %d", len(diag))
	}
	ph := diag[1]
	if ph.Persisted() || ph.PatientID != 1 || ph.Get("date_of_diagnosis") != "2024-03-05" {
		t.Fatalf("unexpected placeholder %+v", ph)
	}
	if n := len(p.Items("microbiology_input")); n != 1 {
		t.Fatalf("hidden repeatable columns get a placeholder too, got %d", n)
	}
	if g.Tag() != DefaultTag || g.Mode() != ModeNormal || g.Cursor() != (Cursor{}) {
		t.Fatalf("unexpected initial state tag=%s mode=%s cursor=%+v", g.Tag(), g.Mode(), g.Cursor())
	}
}

func TestNewGrid_DoesNotAliasInput(t *testing.T) {
	in := mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine")
	g := newTestGrid(t, in)
	g.Rows()[0].Items(model.ColumnDiagnosis)[0].Set("condition", "changed")
	if got := in.Items(model.ColumnDiagnosis)[0].Get("condition"); got != "Sepsis" {
		t.Fatalf("input mutated: %q", got)
	}
	if len(in.Items(model.ColumnDiagnosis)) != 1 {
		t.Fatalf("placeholder leaked into input")
	}
}

func TestGrid_TagPreference(t *testing.T) {
	prefs := memPrefs{TagPrefKey: "icu"}
	g := NewGrid(testSchema(t), []model.Patient{
		mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"),
		mkPatient(2, "UCH", "T2", "1", model.CategoryInpatient, "icu"),
	}, append(testOpts(), WithPrefs(prefs))...)
	if g.Tag() != "icu" || len(g.Rows()) != 1 || g.Rows()[0].ID != 2 {
		t.Fatalf("stored tag not applied: tag=%s rows=%v", g.Tag(), ids(g.Rows()))
	}
	g.MoveDown()
	g.SetTag("mine")
	if prefs[TagPrefKey] != "mine" {
		t.Fatalf("tag not persisted: %v", prefs)
	}
	if g.Cursor().Row != 0 || g.Rows()[0].ID != 1 {
		t.Fatalf("expected first row of new list, cursor=%+v", g.Cursor())
	}
}

func TestGrid_SetQueryClampsCursor(t *testing.T) {
	g := newTestGrid(t,
		mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"),
		mkPatient(2, "UCH", "T2", "1", model.CategoryInpatient, "mine"),
		mkPatient(3, "NHNN", "A", "1", model.CategoryInpatient, "mine"),
	)
	g.Select(2, colDiagnosis, 1)
	g.SetQuery("nhnn", "")
	if len(g.Rows()) != 1 || g.Cursor().Row != 0 {
		t.Fatalf("rows=%v cursor=%+v", ids(g.Rows()), g.Cursor())
	}
}

func TestGrid_DeletePlaceholderIsNoop(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.Select(0, colDiagnosis, 1)
	if g.StartDelete() {
		t.Fatalf("placeholder must not be deletable")
	}
	g.Select(0, colDemographics, 0)
	if g.StartDelete() {
		t.Fatalf("singleton must not be deletable")
	}
	if g.Mode() != ModeNormal || len(g.Drain()) != 0 {
		t.Fatalf("no-op delete changed state")
	}
}

func TestGrid_DeleteItem(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.Select(0, colDiagnosis, 0)
	if !g.StartDelete() || g.Mode() != ModeDeleting {
		t.Fatalf("expected deleting mode")
	}
	if !g.DoDelete() {
		t.Fatalf("DoDelete failed")
	}
	req := drainOne(t, g, RequestDeleteItem)
	if req.ItemID != 102 || req.Column != model.ColumnDiagnosis || req.PatientID != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	if n := len(diagnoses(g, 0)); n != 1 {
		t.Fatalf("expected only the placeholder left, got %d", n)
	}
	if g.Mode() != ModeNormal {
		t.Fatalf("mode %s", g.Mode())
	}
}

func TestGrid_CancelDelete(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.Select(0, colDiagnosis, 0)
	g.StartDelete()
	if !g.CancelDelete() || g.Mode() != ModeNormal || len(diagnoses(g, 0)) != 2 {
		t.Fatalf("cancel must leave items alone")
	}
}

func TestGrid_SaveEditNewItem(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	if !g.EditItem(0, colDiagnosis, 1) {
		t.Fatalf("EditItem failed")
	}
	g.Buffer().Set("condition", "UTI")
	if !g.SaveEdit() {
		t.Fatalf("SaveEdit failed")
	}
	diag := diagnoses(g, 0)
	if len(diag) != 3 {
		t.Fatalf("expected new item plus fresh placeholder, got %d", len(diag))
	}
	if got := diag[1].Get("condition"); got != "Urinary tract infection" {
		t.Fatalf("synonym not resolved: %q", got)
	}
	if diag[2].Persisted() || diag[2].Get("condition") != "" {
		t.Fatalf("trailing item must be an empty placeholder: %+v", diag[2])
	}
	req := drainOne(t, g, RequestCreateItem)
	if req.Ref != diag[1].Ref || req.Item.Get("condition") != "Urinary tract infection" {
		t.Fatalf("unexpected create %+v", req)
	}
	if g.SyncStatus(req.Ref) != SyncPending {
		t.Fatalf("expected pending, got %s", g.SyncStatus(req.Ref))
	}
	g.Resolve(Result{Request: req, ID: 555})
	if got := diagnoses(g, 0)[1].ID; got != 555 {
		t.Fatalf("id not back-filled: %d", got)
	}
	if g.SyncStatus(req.Ref) != SyncConfirmed {
		t.Fatalf("expected confirmed, got %s", g.SyncStatus(req.Ref))
	}
}

func TestGrid_SaveEditExistingItem(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.EditItem(0, colDiagnosis, 0)
	g.Buffer().Set("details", "day 3")
	g.SaveEdit()
	req := drainOne(t, g, RequestUpdateItem)
	if req.ItemID != 102 || req.Item.Get("details") != "day 3" {
		t.Fatalf("unexpected update %+v", req)
	}
	if len(diagnoses(g, 0)) != 2 {
		t.Fatalf("update must not add a placeholder")
	}
}

func TestGrid_CancelEditLeavesItem(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.EditItem(0, colDiagnosis, 0)
	g.Buffer().Set("condition", "Cellulitis")
	if !g.CancelEdit() || g.Buffer() != nil || g.Mode() != ModeNormal {
		t.Fatalf("cancel failed")
	}
	if got := diagnoses(g, 0)[0].Get("condition"); got != "Sepsis" {
		t.Fatalf("buffer leaked into record: %q", got)
	}
	if len(g.Drain()) != 0 {
		t.Fatalf("cancel must not queue requests")
	}
}

func TestGrid_DateOfBirthRoundTrip(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.EditItem(0, colDemographics, 0)
	if got := g.Buffer().Get(model.FieldDateOfBirth); got != "1/2/1970" {
		t.Fatalf("display dob %q", got)
	}
	g.Buffer().Set(model.FieldDateOfBirth, "3/4/1980")
	g.SaveEdit()
	if got := g.Rows()[0].Demographics().DateOfBirth; got != "1980-04-03" {
		t.Fatalf("stored dob %q", got)
	}
	req := drainOne(t, g, RequestUpdateItem)
	if req.Item.Get(model.FieldDateOfBirth) != "1980-04-03" {
		t.Fatalf("request dob %q", req.Item.Get(model.FieldDateOfBirth))
	}
}

func TestGrid_SaveEditAndAdd(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.EditItem(0, colDiagnosis, 1)
	g.Buffer().Set("condition", "Cellulitis")
	if !g.SaveEditAndAdd() {
		t.Fatalf("SaveEditAndAdd failed")
	}
	if g.Mode() != ModeEditing || g.Cursor().Item != 2 || g.Buffer().Persisted() {
		t.Fatalf("expected editing the new placeholder, cursor=%+v", g.Cursor())
	}
}

func TestGrid_DeleteWhileCreateInFlight(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.EditItem(0, colDiagnosis, 1)
	g.Buffer().Set("condition", "Cellulitis")
	g.SaveEdit()
	create := drainOne(t, g, RequestCreateItem)

	g.Select(0, colDiagnosis, 1)
	if !g.StartDelete() || !g.DoDelete() {
		t.Fatalf("delete of unconfirmed item failed")
	}
	if reqs := g.Drain(); len(reqs) != 0 {
		t.Fatalf("delete must wait for the id, got %+v", reqs)
	}
	g.Resolve(Result{Request: create, ID: 77})
	del := drainOne(t, g, RequestDeleteItem)
	if del.ItemID != 77 {
		t.Fatalf("delete for wrong id %d", del.ItemID)
	}
	if len(diagnoses(g, 0)) != 2 {
		t.Fatalf("deleted item came back")
	}
}

func TestGrid_EditWhileCreateInFlight(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.EditItem(0, colDiagnosis, 1)
	g.Buffer().Set("condition", "Cellulitis")
	g.SaveEdit()
	create := drainOne(t, g, RequestCreateItem)

	g.EditItem(0, colDiagnosis, 1)
	g.Buffer().Set("details", "spreading")
	if !g.SaveEdit() {
		t.Fatalf("SaveEdit failed")
	}
	if reqs := g.Drain(); len(reqs) != 0 {
		t.Fatalf("second save must wait for the id, got %+v", reqs)
	}
	if len(diagnoses(g, 0)) != 3 {
		t.Fatalf("re-saving an unconfirmed item must not add a placeholder")
	}
	g.Resolve(Result{Request: create, ID: 78})
	upd := drainOne(t, g, RequestUpdateItem)
	if upd.ItemID != 78 || upd.Item.Get("details") != "spreading" {
		t.Fatalf("unexpected update %+v", upd)
	}
}

func TestGrid_FailedSyncKeepsLocalState(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.EditItem(0, colDiagnosis, 0)
	g.Buffer().Set("condition", "Endocarditis")
	g.SaveEdit()
	req := drainOne(t, g, RequestUpdateItem)
	g.Resolve(Result{Request: req, Err: errors.New("boom")})
	if g.SyncStatus(req.Ref) != SyncFailed {
		t.Fatalf("expected failed, got %s", g.SyncStatus(req.Ref))
	}
	if got := diagnoses(g, 0)[0].Get("condition"); got != "Endocarditis" {
		t.Fatalf("failure must not roll back, got %q", got)
	}
}

func TestGrid_LocationEditRefilters(t *testing.T) {
	g := newTestGrid(t,
		mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"),
		mkPatient(2, "UCH", "T2", "1", model.CategoryInpatient, "mine"),
	)
	g.EditItem(1, colLocation, 0)
	g.Buffer().Tags["mine"] = false
	g.SaveEdit()
	if len(g.Rows()) != 1 || g.Rows()[0].ID != 1 {
		t.Fatalf("rows=%v", ids(g.Rows()))
	}
	if g.Cursor() != (Cursor{Row: 0, Col: colLocation, Item: 0}) {
		t.Fatalf("cursor=%+v", g.Cursor())
	}
	req := drainOne(t, g, RequestUpdateItem)
	if req.Item.Tags["mine"] {
		t.Fatalf("tags not sent: %+v", req.Item.Tags)
	}

	g.EditItem(0, colLocation, 0)
	g.Buffer().Set(model.FieldWard, "T9")
	g.SaveEdit()
	if g.Cursor().Row != 0 || g.Rows()[0].Location().Ward != "T9" {
		t.Fatalf("patient must stay selected after a move")
	}
}

func TestGrid_ModeGating(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	if !g.StartAdd() {
		t.Fatalf("StartAdd from normal")
	}
	if g.StartEdit() || g.StartDelete() || g.StartDischarge(0) || g.StartAdd() {
		t.Fatalf("second flow opened while adding")
	}
	if g.Mode() != ModeAdding {
		t.Fatalf("mode %s", g.Mode())
	}
	g.CancelAdd()

	if !g.FocusSearch() || g.Cursor() != NoSelection || g.Mode() != ModeSearching {
		t.Fatalf("FocusSearch: mode=%s cursor=%+v", g.Mode(), g.Cursor())
	}
	if g.StartEdit() || g.StartDelete() {
		t.Fatalf("edit and delete need normal mode")
	}
	if !g.StartAdd() {
		t.Fatalf("StartAdd allowed while searching")
	}
	g.CancelAdd()
	g.Select(0, colDiagnosis, 0)
	if g.Mode() != ModeNormal {
		t.Fatalf("Select must force normal")
	}
	if g.SaveEdit() || g.DoDelete() || g.DoDischarge() || g.SaveAdd() {
		t.Fatalf("commits outside their mode must be no-ops")
	}
}

func TestGrid_DischargeDefaultCategory(t *testing.T) {
	tests := []struct {
		category string
		tag      string
		want     string
	}{
		{model.CategoryInpatient, "mine", model.CategoryDischarged},
		{model.CategoryReview, "mine", model.CategoryUnfollow},
		{model.CategoryFollowup, "mine", model.CategoryUnfollow},
		{model.CategoryTransferred, "mine", model.CategoryTransferred},
		{model.CategoryDischarged, "mine", model.CategoryDischarged},
		{model.CategoryDeceased, "mine", model.CategoryDeceased},
		{model.CategoryInpatient, "icu", model.CategoryDischarged},
		{model.CategoryReview, "icu", model.CategoryUnfollow},
	}
	for _, tc := range tests {
		t.Run(tc.category+"/"+tc.tag, func(t *testing.T) {
			g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", tc.category, tc.tag))
			g.SetTag(tc.tag)
			if !g.StartDischarge(0) {
				t.Fatalf("StartDischarge failed")
			}
			if got := g.Discharge().Category; got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
			if g.Discharge().Date != "2024-03-05" {
				t.Fatalf("discharge date %s", g.Discharge().Date)
			}
		})
	}
}

func TestGrid_DoDischarge(t *testing.T) {
	tests := []struct {
		name         string
		category     string
		wantCategory string
		wantDate     string
		wantVisible  bool
	}{
		{"discharged leaves the list", model.CategoryDischarged, model.CategoryDischarged, "2024-03-05", false},
		{"followup stays on the list", model.CategoryFollowup, model.CategoryFollowup, "2024-03-05", true},
		{"unfollow only drops the tag", model.CategoryUnfollow, model.CategoryInpatient, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine", "icu"))
			g.StartDischarge(0)
			g.Discharge().Category = tc.category
			if !g.DoDischarge() || g.Mode() != ModeNormal {
				t.Fatalf("DoDischarge failed")
			}
			req := drainOne(t, g, RequestUpdateLocation)
			if req.ItemID != 101 || req.Purpose != PurposeDischarge {
				t.Fatalf("unexpected request %+v", req)
			}
			if req.Item.Tags["mine"] != tc.wantVisible || !req.Item.Tags["icu"] {
				t.Fatalf("tags %+v", req.Item.Tags)
			}
			// Nothing changes until the server confirms.
			if g.Rows()[0].Location().Category != model.CategoryInpatient {
				t.Fatalf("location changed before confirmation")
			}
			g.Resolve(Result{Request: req})
			p := g.Patients()[0]
			loc := p.Location()
			if loc.Category != tc.wantCategory || loc.DischargeDate != tc.wantDate {
				t.Fatalf("location %+v", loc)
			}
			if p.Tags["mine"] != tc.wantVisible || (len(g.Rows()) == 1) != tc.wantVisible {
				t.Fatalf("visibility tags=%v rows=%d", p.Tags, len(g.Rows()))
			}
			if g.Cursor().Row != 0 {
				t.Fatalf("cursor %+v", g.Cursor())
			}
		})
	}
}

func TestGrid_DischargeFailureChangesNothing(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.StartDischarge(0)
	g.Discharge().Category = model.CategoryDischarged
	g.DoDischarge()
	req := drainOne(t, g, RequestUpdateLocation)
	g.Resolve(Result{Request: req, Err: errors.New("offline")})
	if len(g.Rows()) != 1 || g.Rows()[0].Location().Category != model.CategoryInpatient {
		t.Fatalf("failed discharge applied")
	}
	if g.SyncStatus(req.Ref) != SyncFailed {
		t.Fatalf("status %s", g.SyncStatus(req.Ref))
	}
}

func TestGrid_CancelDischarge(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.StartDischarge(0)
	if !g.CancelDischarge() || g.Discharge() != nil || len(g.Drain()) != 0 {
		t.Fatalf("cancel discharge")
	}
}

func TestGrid_AddLookup(t *testing.T) {
	found := mkPatient(9, "NHNN", "A", "2", model.CategoryReview, "icu")
	tests := []struct {
		name     string
		results  []model.Patient
		wantName string
		wantTags []string
	}{
		{"single match merges", []model.Patient{found}, "Patient 9", []string{"icu", "mine"}},
		{"no match keeps input", nil, "", []string{"mine"}},
		{"several matches count as none", []model.Patient{found, mkPatient(10, "UCH", "B", "1", "", "icu")}, "", []string{"mine"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGrid(t)
			g.StartAdd()
			add := g.Add()
			if add.Buffer.Location.Get(model.FieldDateOfAdmission) != "2024-03-05" {
				t.Fatalf("admission date %q", add.Buffer.Location.Get(model.FieldDateOfAdmission))
			}
			add.Buffer.Demographics.Set(model.FieldHospitalNumber, "H009")
			g.FindByHospitalNumber()
			if !add.Finding {
				t.Fatalf("expected lookup in flight")
			}
			req := drainOne(t, g, RequestSearch)
			if req.Criteria.HospitalNumber != "H009" || req.Purpose != PurposeLookup {
				t.Fatalf("unexpected search %+v", req)
			}
			g.Resolve(Result{Request: req, Patients: tc.results})
			add = g.Add()
			if add.Finding || !add.Looked || add.Matches != len(tc.results) {
				t.Fatalf("lookup state %+v", add)
			}
			if got := add.Buffer.Demographics.Get(model.FieldName); got != tc.wantName {
				t.Fatalf("name %q want %q", got, tc.wantName)
			}
			got := add.Buffer.Location.Tags.Names()
			if fmt.Sprint(got) != fmt.Sprint(tc.wantTags) {
				t.Fatalf("tags %v want %v", got, tc.wantTags)
			}
		})
	}
}

func TestGrid_LookupAfterCancelIsIgnored(t *testing.T) {
	g := newTestGrid(t)
	g.StartAdd()
	g.FindByHospitalNumber()
	req := drainOne(t, g, RequestSearch)
	g.CancelAdd()
	g.Resolve(Result{Request: req, Patients: []model.Patient{mkPatient(9, "UCH", "T1", "1", "", "mine")}})
	if g.Add() != nil || g.Mode() != ModeNormal {
		t.Fatalf("late lookup reopened the add flow")
	}
}

func TestGrid_SaveAdd(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.StartAdd()
	g.Add().Buffer.Demographics.Set(model.FieldName, "New Person")
	if !g.SaveAdd() || g.Mode() != ModeNormal || g.Add() != nil {
		t.Fatalf("SaveAdd must close the flow at once")
	}
	req := drainOne(t, g, RequestCreatePatient)
	if req.NewPatient.Demographics.Get(model.FieldName) != "New Person" {
		t.Fatalf("buffer not sent: %+v", req.NewPatient)
	}

	created := mkPatient(5, "UCH", "T5", "1", model.CategoryInpatient, "mine")
	g.Resolve(Result{Request: req, Patient: created})
	if len(g.Patients()) != 2 {
		t.Fatalf("patients=%d", len(g.Patients()))
	}
	row := -1
	for i, p := range g.Rows() {
		if p.ID == 5 {
			row = i
		}
	}
	if row < 0 || g.Cursor() != (Cursor{Row: row, Col: 0, Item: 0}) {
		t.Fatalf("new patient not selected: row=%d cursor=%+v", row, g.Cursor())
	}
	diag := g.Rows()[row].Items(model.ColumnDiagnosis)
	if len(diag) != 1 || diag[0].Persisted() {
		t.Fatalf("new patient must start with a lone placeholder: %+v", diag)
	}

	// The same patient coming back again replaces the first copy.
	g.Resolve(Result{Request: req, Patient: created})
	if len(g.Patients()) != 2 {
		t.Fatalf("duplicate patient: %d", len(g.Patients()))
	}
}

func TestGrid_Dispatch(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))

	handled, prevent := g.Dispatch(KeyEvent{Code: KeyBackspace})
	if !handled || !prevent {
		t.Fatalf("backspace must be handled and prevent default")
	}
	if g.Mode() != ModeNormal {
		t.Fatalf("backspace on a singleton opened %s", g.Mode())
	}

	g.Dispatch(KeyEvent{Code: KeyRight})
	g.Dispatch(KeyEvent{Code: KeyRight})
	if g.Cursor().Col != colDiagnosis {
		t.Fatalf("cursor %+v", g.Cursor())
	}
	if h, _ := g.Dispatch(KeyEvent{Code: KeySlash}); h {
		t.Fatalf("plain slash is not bound")
	}
	g.Dispatch(KeyEvent{Code: KeySlash, Shift: true})
	if !g.HelpVisible() {
		t.Fatalf("shift+/ opens help")
	}

	g.Dispatch(KeyEvent{Code: KeyEnter})
	if g.Mode() != ModeEditing {
		t.Fatalf("enter opens the editor, mode=%s", g.Mode())
	}
	if h, _ := g.Dispatch(KeyEvent{Code: KeyDown}); h {
		t.Fatalf("arrows are not bound while editing")
	}
	g.Dispatch(KeyEvent{Code: KeyEscape})
	if g.Mode() != ModeNormal {
		t.Fatalf("escape cancels edit, mode=%s", g.Mode())
	}

	g.Dispatch(KeyEvent{Code: KeyDelete})
	if g.Mode() != ModeDeleting {
		t.Fatalf("delete asks for confirmation, mode=%s", g.Mode())
	}
	g.Dispatch(KeyEvent{Code: KeyEscape})
	if g.Mode() != ModeNormal || len(diagnoses(g, 0)) != 2 {
		t.Fatalf("escape cancels delete")
	}

	g.FocusSearch()
	if h, _ := g.Dispatch(KeyEvent{Code: KeyEscape}); h {
		t.Fatalf("searching has no bindings")
	}
}

func TestGrid_Hover(t *testing.T) {
	g := newTestGrid(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	g.MouseEnter(0, 3)
	if g.Hover() != (Hover{Row: 0, Col: 3}) {
		t.Fatalf("hover %+v", g.Hover())
	}
	g.MouseLeave()
	if g.Hover() != NoHover {
		t.Fatalf("hover %+v", g.Hover())
	}
}

func TestGrid_CursorStaysInBoundsAcrossOperations(t *testing.T) {
	g := newTestGrid(t,
		mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"),
		mkPatient(2, "UCH", "T2", "1", model.CategoryInpatient, "mine"),
	)
	check := func(step string) {
		t.Helper()
		c := g.Cursor()
		b := g.bounds()
		if c.Row < 0 || c.Row >= b.Rows() || c.Col < 0 || c.Col >= b.Columns() || c.Item < 0 || c.Item >= b.Items(c.Row, c.Col) {
			t.Fatalf("%s: cursor %+v out of bounds", step, c)
		}
	}
	g.Select(1, colDiagnosis, 0)
	g.StartDelete()
	g.DoDelete()
	check("delete")
	for i := 0; i < 10; i++ {
		g.MoveDown()
		check("down")
	}
	for i := 0; i < 10; i++ {
		g.MoveLeft()
		check("left")
	}
	g.Select(9, 9, 9)
	check("select")
	g.SetTag("mine")
	check("tag")
}

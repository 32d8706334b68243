package board

import (
	"testing"

	"patientboard/internal/model"
)

func newTestDetail(t *testing.T, p model.Patient) *Detail {
	t.Helper()
	return NewDetail(testSchema(t), p, testOpts()...)
}

func detailIndex(d *Detail, name string) int {
	for i, c := range d.Columns() {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func TestDetail_ArrowsOnlyMoveVertically(t *testing.T) {
	d := newTestDetail(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	if h, _ := d.Dispatch(KeyEvent{Code: KeyLeft}); h {
		t.Fatalf("left is not bound in the detail view")
	}
	if h, _ := d.Dispatch(KeyEvent{Code: KeyRight}); h {
		t.Fatalf("right is not bound in the detail view")
	}
	d.Dispatch(KeyEvent{Code: KeyDown})
	d.Dispatch(KeyEvent{Code: KeyDown})
	if d.Cursor() != (DetailCursor{Col: 2, Item: 0}) {
		t.Fatalf("down should roll across singletons, cursor=%+v", d.Cursor())
	}
	d.Dispatch(KeyEvent{Code: KeyDown})
	if d.Cursor() != (DetailCursor{Col: 2, Item: 1}) {
		t.Fatalf("cursor=%+v", d.Cursor())
	}
	for i := 0; i < 50; i++ {
		d.MoveDown()
	}
	last := len(d.Columns()) - 1
	if c := d.Cursor(); c.Col != last || c.Item != len(d.Patient().Items(d.Columns()[last].Name))-1 {
		t.Fatalf("expected to stop at the last item, cursor=%+v", c)
	}
}

func TestDetail_SaveEditNewItem(t *testing.T) {
	d := newTestDetail(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	col := detailIndex(d, model.ColumnDiagnosis)
	if !d.EditItem(col, 1) {
		t.Fatalf("EditItem failed")
	}
	d.Buffer().Set("condition", "CAP")
	d.SaveEdit()
	items := d.Patient().Items(model.ColumnDiagnosis)
	if len(items) != 3 || items[1].Get("condition") != "Community acquired pneumonia" {
		t.Fatalf("items %+v", items)
	}
	req := drainOne(t, d, RequestCreateItem)
	d.Resolve(Result{Request: req, ID: 900})
	if d.Patient().Items(model.ColumnDiagnosis)[1].ID != 900 {
		t.Fatalf("id not back-filled")
	}
}

func TestDetail_LocationEditUpdatesPatientTags(t *testing.T) {
	d := newTestDetail(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	d.EditItem(detailIndex(d, model.ColumnLocation), 0)
	if !d.Buffer().Tags["mine"] {
		t.Fatalf("location buffer carries the patient's tags")
	}
	d.Buffer().Tags["icu"] = true
	d.SaveEdit()
	if !d.Patient().Tags["icu"] || !d.Patient().Location().Tags["icu"] {
		t.Fatalf("tags not applied: %+v", d.Patient().Tags)
	}
	drainOne(t, d, RequestUpdateItem)
}

func TestDetail_Delete(t *testing.T) {
	d := newTestDetail(t, mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine"))
	col := detailIndex(d, model.ColumnDiagnosis)
	d.Select(col, 1)
	if d.StartDelete() {
		t.Fatalf("placeholder must not be deletable")
	}
	d.Select(col, 0)
	d.Dispatch(KeyEvent{Code: KeyBackspace})
	if d.Mode() != ModeDeleting {
		t.Fatalf("mode %s", d.Mode())
	}
	d.DoDelete()
	req := drainOne(t, d, RequestDeleteItem)
	if req.ItemID != 102 {
		t.Fatalf("item id %d", req.ItemID)
	}
	if c := d.Cursor(); c.Col != col || c.Item != 0 {
		t.Fatalf("cursor %+v", c)
	}
}

func TestDetail_EmptySingletonIsCreated(t *testing.T) {
	p := mkPatient(1, "UCH", "T1", "1", model.CategoryInpatient, "mine")
	delete(p.Columns, model.ColumnDemographics)
	d := newTestDetail(t, p)
	if !d.EditItem(detailIndex(d, model.ColumnDemographics), 0) {
		t.Fatalf("empty singleton must be editable")
	}
	d.Buffer().Set(model.FieldName, "Someone")
	d.SaveEdit()
	req := drainOne(t, d, RequestCreateItem)
	if req.Column != model.ColumnDemographics || req.PatientID != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	if n := len(d.Patient().Items(model.ColumnDemographics)); n != 1 {
		t.Fatalf("singleton grew to %d items", n)
	}
}

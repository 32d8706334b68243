package board

import (
	"patientboard/internal/model"
	"patientboard/internal/schema"
)

// Detail is the single-patient controller. Columns are stacked, so the cursor only moves up
// and down.
type Detail struct {
	session
	columns []schema.Column
	patient *model.Patient
	cursor  DetailCursor
	hover   int
	keys    Keymap
}

func NewDetail(s *schema.Schema, patient model.Patient, opts ...Option) *Detail {
	d := &Detail{
		session: newSession(s, opts),
		columns: s.DetailColumns,
		hover:   -1,
	}
	p := patient.Clone()
	d.prepare(&p, d.columns)
	d.patient = &p
	d.keys = NewKeymap()
	bindNavigation(d.keys,
		nil, nil, d.MoveUp, d.MoveDown,
		func() { d.StartEdit() },
		func() { d.StartDelete() },
		d.ShowHelp,
	)
	bindCancels(d.keys, cancels{
		edit: func() { d.CancelEdit() },
		del:  func() { d.CancelDelete() },
	})
	return d
}

type detailBounds struct{ d *Detail }

func (b detailBounds) Columns() int { return len(b.d.columns) }
func (b detailBounds) Items(col int) int {
	if col < 0 || col >= len(b.d.columns) {
		return 0
	}
	return len(b.d.patient.Items(b.d.columns[col].Name))
}

func (d *Detail) Patient() *model.Patient  { return d.patient }
func (d *Detail) Columns() []schema.Column { return d.columns }
func (d *Detail) Cursor() DetailCursor     { return d.cursor }
func (d *Detail) Hover() int               { return d.hover }
func (d *Detail) Keymap() Keymap           { return d.keys }
func (d *Detail) Schema() *schema.Schema   { return d.schema }

func (d *Detail) MoveUp()   { d.cursor = d.cursor.Up(detailBounds{d}) }
func (d *Detail) MoveDown() { d.cursor = d.cursor.Down(detailBounds{d}) }

func (d *Detail) MouseEnter(col int) { d.hover = col }
func (d *Detail) MouseLeave()        { d.hover = -1 }

func (d *Detail) Current() (*model.Item, bool) {
	c := d.cursor
	if c.Col < 0 || c.Col >= len(d.columns) {
		return nil, false
	}
	items := d.patient.Items(d.columns[c.Col].Name)
	if c.Item < 0 || c.Item >= len(items) {
		return nil, false
	}
	return &items[c.Item], true
}

func (d *Detail) Select(col, item int) {
	d.cursor = DetailCursor{Col: col, Item: item}.Clamp(detailBounds{d})
	d.buf = nil
	d.setMode(ModeNormal)
}

func (d *Detail) Dispatch(ev KeyEvent) (handled, preventDefault bool) {
	return d.keys.Dispatch(d.mode, ev)
}

func (d *Detail) StartEdit() bool {
	if d.mode != ModeNormal {
		return false
	}
	it, ok := d.Current()
	if !ok {
		return false
	}
	col := d.columns[d.cursor.Col]
	d.beginEdit(col, *it)
	if col.Name == model.ColumnLocation {
		d.buf.Tags = d.patient.Tags.Clone()
	}
	return true
}

func (d *Detail) EditItem(col, item int) bool {
	if col < 0 || col >= len(d.columns) {
		return false
	}
	d.Select(col, item)
	return d.StartEdit()
}

func (d *Detail) SaveEdit() bool {
	if d.mode != ModeEditing {
		return false
	}
	if _, ok := d.Current(); !ok {
		d.cancelEdit()
		return false
	}
	return d.commitEdit(d.patient, d.columns[d.cursor.Col], d.cursor.Item)
}

func (d *Detail) SaveEditAndAdd() bool {
	if !d.SaveEdit() {
		return false
	}
	d.cursor.Item = detailBounds{d}.Items(d.cursor.Col) - 1
	d.cursor = d.cursor.Clamp(detailBounds{d})
	return d.StartEdit()
}

func (d *Detail) CancelEdit() bool { return d.cancelEdit() }

func (d *Detail) StartDelete() bool {
	if d.mode != ModeNormal {
		return false
	}
	if _, ok := d.Current(); !ok {
		return false
	}
	col := d.columns[d.cursor.Col]
	if !canDelete(col, d.patient.Items(col.Name), d.cursor.Item) {
		return false
	}
	d.setMode(ModeDeleting)
	return true
}

func (d *Detail) DoDelete() bool {
	if d.mode != ModeDeleting {
		return false
	}
	if !d.commitDelete(d.patient, d.columns[d.cursor.Col], d.cursor.Item) {
		return false
	}
	d.cursor = d.cursor.Clamp(detailBounds{d})
	return true
}

func (d *Detail) CancelDelete() bool {
	if d.mode != ModeDeleting {
		return false
	}
	d.setMode(ModeNormal)
	return true
}

// Resolve applies the outcome of a drained request.
func (d *Detail) Resolve(res Result) {
	var p *model.Patient
	if res.Request.PatientID == d.patient.ID {
		p = d.patient
	}
	d.resolveItem(p, res)
	d.cursor = d.cursor.Clamp(detailBounds{d})
}

package board

import (
	"patientboard/internal/model"
	"patientboard/internal/schema"
)

// AddSession is the state of the add-patient flow.
type AddSession struct {
	Buffer model.NewPatient
	// Finding is set while a hospital-number lookup is out.
	Finding bool
	// Looked is set once a lookup has come back; the form then shows the remaining fields.
	Looked bool
	// Matches is how many patients the last lookup returned. Only exactly one is merged.
	Matches int
}

// DischargeOrder is the state of the discharge confirmation.
type DischargeOrder struct {
	Row       int
	PatientID int64
	Category  string
	Date      string
}

// Grid is the list-view controller: visible patients by list columns.
type Grid struct {
	session
	columns   []schema.Column
	patients  []*model.Patient
	rows      []*model.Patient
	filter    Filter
	cursor    Cursor
	hover     Hover
	add       *AddSession
	discharge *DischargeOrder
	keys      Keymap
}

// NewGrid builds the controller over a copy of patients. The active tag comes from prefs when
// one is stored.
func NewGrid(s *schema.Schema, patients []model.Patient, opts ...Option) *Grid {
	g := &Grid{
		session: newSession(s, opts),
		columns: s.ListColumns(),
		hover:   NoHover,
	}
	tag := g.tag
	if g.prefs != nil {
		if v := g.prefs.Get(TagPrefKey); v != "" {
			tag = v
		}
	}
	g.filter = Filter{Tag: tag, Flagship: g.flagship}
	for _, p := range patients {
		cp := p.Clone()
		g.prepare(&cp, s.Columns)
		g.patients = append(g.patients, &cp)
	}
	g.refresh()
	g.keys = g.keymap()
	return g
}

func (g *Grid) keymap() Keymap {
	k := NewKeymap()
	bindNavigation(k,
		g.MoveLeft, g.MoveRight, g.MoveUp, g.MoveDown,
		func() { g.StartEdit() },
		func() { g.StartDelete() },
		g.ShowHelp,
	)
	bindCancels(k, cancels{
		add:       func() { g.CancelAdd() },
		edit:      func() { g.CancelEdit() },
		del:       func() { g.CancelDelete() },
		discharge: func() { g.CancelDischarge() },
	})
	return k
}

// gridBounds adapts the grid to the cursor's Bounds.
type gridBounds struct{ g *Grid }

func (b gridBounds) Rows() int    { return len(b.g.rows) }
func (b gridBounds) Columns() int { return len(b.g.columns) }
func (b gridBounds) Items(row, col int) int {
	if row < 0 || row >= len(b.g.rows) || col < 0 || col >= len(b.g.columns) {
		return 0
	}
	return len(b.g.rows[row].Items(b.g.columns[col].Name))
}

func (g *Grid) bounds() gridBounds { return gridBounds{g} }

func (g *Grid) Rows() []*model.Patient     { return g.rows }
func (g *Grid) Patients() []*model.Patient { return g.patients }
func (g *Grid) Columns() []schema.Column   { return g.columns }
func (g *Grid) Cursor() Cursor             { return g.cursor }
func (g *Grid) Hover() Hover               { return g.hover }
func (g *Grid) Filter() Filter             { return g.filter }
func (g *Grid) Tag() string                { return g.filter.Tag }
func (g *Grid) Add() *AddSession           { return g.add }
func (g *Grid) Discharge() *DischargeOrder { return g.discharge }
func (g *Grid) Keymap() Keymap             { return g.keys }
func (g *Grid) Schema() *schema.Schema     { return g.schema }

// Current returns the patient and item under the cursor.
func (g *Grid) Current() (*model.Patient, *model.Item, bool) {
	c := g.cursor
	if !c.Selected() || c.Row >= len(g.rows) || c.Col >= len(g.columns) {
		return nil, nil, false
	}
	p := g.rows[c.Row]
	items := p.Items(g.columns[c.Col].Name)
	if c.Item >= len(items) {
		return p, nil, false
	}
	return p, &items[c.Item], true
}

func (g *Grid) refresh() {
	g.rows = ComputeVisible(g.patients, g.filter)
}

func (g *Grid) rowOf(id int64) int {
	for i, p := range g.rows {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (g *Grid) patient(id int64) *model.Patient {
	for _, p := range g.patients {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *Grid) clamp() {
	if g.cursor.Selected() {
		g.cursor = g.cursor.Clamp(g.bounds())
	}
}

// SetTag switches the active list, persists the choice and returns to the first row.
func (g *Grid) SetTag(tag string) {
	g.filter.Tag = tag
	if g.prefs != nil {
		if err := g.prefs.Put(TagPrefKey, tag); err != nil {
			g.log.Warn().Err(err).Str("tag", tag).Msg("save tag preference")
		}
	}
	g.refresh()
	if g.cursor.Selected() {
		g.cursor.Row = 0
	}
	g.clamp()
}

// SetQuery updates the hospital and ward filters.
func (g *Grid) SetQuery(hospital, ward string) {
	g.filter.Hospital = hospital
	g.filter.Ward = ward
	g.refresh()
	g.clamp()
}

func (g *Grid) MoveLeft()  { g.cursor = g.cursor.Left(g.bounds()) }
func (g *Grid) MoveRight() { g.cursor = g.cursor.Right(g.bounds()) }
func (g *Grid) MoveUp()    { g.cursor = g.cursor.Up(g.bounds()) }
func (g *Grid) MoveDown()  { g.cursor = g.cursor.Down(g.bounds()) }

// Select moves the cursor and leaves any open flow.
func (g *Grid) Select(row, col, item int) {
	g.cursor = Cursor{Row: row, Col: col, Item: item}.Clamp(g.bounds())
	g.buf = nil
	g.add = nil
	g.discharge = nil
	g.setMode(ModeNormal)
}

// FocusSearch clears the selection while the search box has focus.
func (g *Grid) FocusSearch() bool {
	if !g.mode.idle() {
		return false
	}
	g.cursor = NoSelection
	g.setMode(ModeSearching)
	return true
}

func (g *Grid) MouseEnter(row, col int) { g.hover = Hover{Row: row, Col: col} }
func (g *Grid) MouseLeave()             { g.hover = NoHover }

// Dispatch routes a key through the current mode's table.
func (g *Grid) Dispatch(ev KeyEvent) (handled, preventDefault bool) {
	return g.keys.Dispatch(g.mode, ev)
}

// StartAdd opens the add flow with admission dated today.
func (g *Grid) StartAdd() bool {
	if !g.mode.idle() {
		return false
	}
	loc := model.Item{Fields: map[string]string{model.FieldDateOfAdmission: g.today()}, Tags: model.Tags{}}
	g.add = &AddSession{Buffer: model.NewPatient{
		Demographics: model.Item{Fields: map[string]string{}},
		Location:     loc,
		Tags:         model.Tags{},
	}}
	g.setMode(ModeAdding)
	return true
}

// FindByHospitalNumber looks up the number typed into the add buffer.
func (g *Grid) FindByHospitalNumber() bool {
	if g.mode != ModeAdding || g.add == nil {
		return false
	}
	g.add.Finding = true
	g.issue(Request{
		Kind:     RequestSearch,
		Purpose:  PurposeLookup,
		Criteria: Criteria{HospitalNumber: g.add.Buffer.Demographics.Get(model.FieldHospitalNumber)},
		Tag:      g.filter.Tag,
	})
	return true
}

// SaveAdd closes the add flow and queues the create. The patient appears when it resolves.
func (g *Grid) SaveAdd() bool {
	if g.mode != ModeAdding || g.add == nil {
		return false
	}
	buf := g.add.Buffer.Clone()
	g.add = nil
	g.setMode(ModeNormal)
	g.issue(Request{Kind: RequestCreatePatient, NewPatient: buf, Tag: g.filter.Tag})
	return true
}

func (g *Grid) CancelAdd() bool {
	if g.mode != ModeAdding {
		return false
	}
	g.add = nil
	g.setMode(ModeNormal)
	return true
}

// StartEdit opens the item under the cursor.
func (g *Grid) StartEdit() bool {
	if g.mode != ModeNormal {
		return false
	}
	_, it, ok := g.Current()
	if !ok {
		return false
	}
	g.beginEdit(g.columns[g.cursor.Col], *it)
	return true
}

// EditItem selects a cell item and opens it.
func (g *Grid) EditItem(row, col, item int) bool {
	if row < 0 || row >= len(g.rows) || col < 0 || col >= len(g.columns) {
		return false
	}
	g.Select(row, col, item)
	return g.StartEdit()
}

func (g *Grid) SaveEdit() bool {
	if g.mode != ModeEditing {
		return false
	}
	p, _, ok := g.Current()
	if !ok {
		g.cancelEdit()
		return false
	}
	col := g.columns[g.cursor.Col]
	if !g.commitEdit(p, col, g.cursor.Item) {
		return false
	}
	if col.Name == model.ColumnLocation {
		g.refresh()
		row := g.rowOf(p.ID)
		if row < 0 {
			row = 0
		}
		g.Select(row, g.cursor.Col, 0)
	}
	return true
}

// SaveEditAndAdd saves, then opens the new placeholder of the same cell.
func (g *Grid) SaveEditAndAdd() bool {
	if !g.SaveEdit() {
		return false
	}
	g.cursor.Item = g.bounds().Items(g.cursor.Row, g.cursor.Col) - 1
	g.clamp()
	return g.StartEdit()
}

func (g *Grid) CancelEdit() bool { return g.cancelEdit() }

// StartDelete asks for confirmation. Singletons and the placeholder cannot be deleted.
func (g *Grid) StartDelete() bool {
	if g.mode != ModeNormal {
		return false
	}
	p, _, ok := g.Current()
	if !ok {
		return false
	}
	col := g.columns[g.cursor.Col]
	if !canDelete(col, p.Items(col.Name), g.cursor.Item) {
		return false
	}
	g.setMode(ModeDeleting)
	return true
}

func (g *Grid) DoDelete() bool {
	if g.mode != ModeDeleting {
		return false
	}
	p, _, ok := g.Current()
	if !ok {
		g.setMode(ModeNormal)
		return false
	}
	if !g.commitDelete(p, g.columns[g.cursor.Col], g.cursor.Item) {
		return false
	}
	g.clamp()
	return true
}

func (g *Grid) CancelDelete() bool {
	if g.mode != ModeDeleting {
		return false
	}
	g.setMode(ModeNormal)
	return true
}

// StartDischarge opens the discharge form for a visible row with a suggested category.
func (g *Grid) StartDischarge(row int) bool {
	if !g.mode.idle() || row < 0 || row >= len(g.rows) {
		return false
	}
	p := g.rows[row]
	category := suggestDischarge(p.Location().Category)
	g.discharge = &DischargeOrder{Row: row, PatientID: p.ID, Category: category, Date: g.today()}
	g.setMode(ModeDischarging)
	return true
}

// suggestDischarge maps a current category to the one a discharge usually moves it to.
func suggestDischarge(category string) string {
	switch category {
	case model.CategoryInpatient:
		return model.CategoryDischarged
	case model.CategoryReview, model.CategoryFollowup:
		return model.CategoryUnfollow
	default:
		return category
	}
}

// DoDischarge queues the location update. Unfollow only drops the tag; Followup keeps it.
func (g *Grid) DoDischarge() bool {
	if g.mode != ModeDischarging || g.discharge == nil {
		return false
	}
	order := *g.discharge
	g.discharge = nil
	g.setMode(ModeNormal)
	p := g.patient(order.PatientID)
	if p == nil {
		return false
	}
	items := p.Items(model.ColumnLocation)
	if len(items) == 0 {
		return false
	}
	loc := items[0]
	editing := loc.Clone()
	if order.Category != model.CategoryUnfollow {
		editing.Set(model.FieldCategory, order.Category)
		editing.Set(model.FieldDischargeDate, order.Date)
	}
	editing.Tags = p.Tags.Clone()
	if order.Category != model.CategoryFollowup {
		editing.Tags[g.filter.Tag] = false
	}
	g.issue(Request{
		Kind:      RequestUpdateLocation,
		Purpose:   PurposeDischarge,
		Column:    model.ColumnLocation,
		PatientID: p.ID,
		ItemID:    loc.ID,
		Ref:       loc.Ref,
		Item:      editing,
		Tag:       g.filter.Tag,
		Category:  order.Category,
	})
	return true
}

func (g *Grid) CancelDischarge() bool {
	if g.mode != ModeDischarging {
		return false
	}
	g.discharge = nil
	g.setMode(ModeNormal)
	return true
}

// Resolve applies the outcome of a drained request.
func (g *Grid) Resolve(res Result) {
	req := res.Request
	switch req.Kind {
	case RequestSearch:
		if req.Purpose == PurposeLookup {
			g.resolveLookup(res)
		}
	case RequestCreatePatient:
		g.resolveCreatePatient(res)
	case RequestUpdateLocation:
		g.resolveDischarge(res)
	default:
		g.resolveItem(g.patient(req.PatientID), res)
		g.clamp()
	}
}

func (g *Grid) resolveLookup(res Result) {
	if g.mode != ModeAdding || g.add == nil {
		return
	}
	add := g.add
	add.Finding = false
	add.Looked = true
	add.Matches = len(res.Patients)
	if res.Err != nil {
		add.Matches = 0
		g.log.Warn().Err(res.Err).Msg("hospital number lookup failed")
	}
	if res.Err == nil && len(res.Patients) == 1 {
		found := res.Patients[0].Clone()
		if demo := found.Items(model.ColumnDemographics); len(demo) > 0 {
			add.Buffer.Demographics = demo[0].Clone()
		}
		if loc := found.Items(model.ColumnLocation); len(loc) > 0 {
			add.Buffer.Location = loc[0].Clone()
		}
		add.Buffer.Tags = found.Tags.Clone()
	}
	if add.Buffer.Location.Tags == nil {
		add.Buffer.Location.Tags = model.Tags{}
	}
	if add.Buffer.Tags == nil {
		add.Buffer.Tags = model.Tags{}
	}
	add.Buffer.Location.Tags[res.Request.Tag] = true
	add.Buffer.Tags[res.Request.Tag] = true
}

func (g *Grid) resolveCreatePatient(res Result) {
	if res.Err != nil {
		g.log.Warn().Err(res.Err).Msg("create patient failed")
		return
	}
	p := res.Patient.Clone()
	for _, c := range g.schema.Columns {
		if !c.Singleton() {
			p.SetItems(c.Name, nil)
		}
	}
	g.prepare(&p, g.schema.Columns)
	kept := g.patients[:0]
	for _, existing := range g.patients {
		if existing.ID != p.ID {
			kept = append(kept, existing)
		}
	}
	g.patients = append(kept, &p)
	g.refresh()
	if !g.mode.idle() {
		g.clamp()
		return
	}
	row := g.rowOf(p.ID)
	if row < 0 {
		row = 0
	}
	g.Select(row, 0, 0)
}

func (g *Grid) resolveDischarge(res Result) {
	r := res.Request
	g.settle(r.Ref, res.Err)
	if res.Err != nil {
		g.log.Warn().Err(res.Err).Int64("patient", r.PatientID).Msg("discharge failed")
		return
	}
	p := g.patient(r.PatientID)
	if p == nil {
		return
	}
	items := p.Items(model.ColumnLocation)
	if len(items) == 0 {
		return
	}
	loc := &items[0]
	if r.Category != model.CategoryUnfollow {
		loc.Set(model.FieldCategory, r.Item.Get(model.FieldCategory))
		loc.Set(model.FieldDischargeDate, r.Item.Get(model.FieldDischargeDate))
	}
	loc.Tags = r.Item.Tags.Clone()
	p.Tags = r.Item.Tags.Clone()
	g.refresh()
	if !g.mode.idle() {
		g.clamp()
		return
	}
	col := g.cursor.Col
	if col < 0 {
		col = 0
	}
	g.Select(0, col, 0)
}

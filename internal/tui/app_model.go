package tui

import (
	"sort"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"patientboard/internal/board"
	"patientboard/internal/gateway"
	"patientboard/internal/model"
	"patientboard/internal/schema"
)

// controller is what the host needs from either the grid or the detail view.
type controller interface {
	Mode() board.Mode
	Buffer() *model.Item
	Drain() []board.Request
	SyncStatus(ref string) board.SyncState
	HelpVisible() bool
	CloseHelp()
	Keymap() board.Keymap
	Schema() *schema.Schema
	Dispatch(board.KeyEvent) (handled, preventDefault bool)
	SaveEdit() bool
	SaveEditAndAdd() bool
	DoDelete() bool
	Resolve(board.Result)
}

const (
	headerLines = 4
	footerLines = 2
)

type appModel struct {
	grid   *board.Grid
	detail *board.Detail
	ctl    controller
	sync   *syncer
	log    zerolog.Logger

	keys        keyMap
	help        help.Model
	form        *form
	search      [2]textinput.Model
	searchFocus int

	width  int
	height int
	top    int
	status string

	quitting bool
}

func newAppModel(gw gateway.Gateway, log zerolog.Logger) *appModel {
	m := &appModel{
		sync: newSyncer(gw, log),
		log:  log,
		keys: newKeyMap(),
		help: help.New(),
	}
	m.search[0] = newInput("hospital")
	m.search[1] = newInput("ward")
	m.search[0].Width, m.search[1].Width = 16, 16
	return m
}

func newGridModel(g *board.Grid, gw gateway.Gateway, log zerolog.Logger) *appModel {
	m := newAppModel(gw, log)
	m.grid, m.ctl = g, g
	return m
}

func newDetailModel(d *board.Detail, gw gateway.Gateway, log zerolog.Logger) *appModel {
	m := newAppModel(gw, log)
	m.detail, m.ctl = d, d
	return m
}

func (m *appModel) Init() tea.Cmd {
	return m.sync.wait()
}

func (m *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	reload := false
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
	case resultMsg:
		res := board.Result(msg)
		m.ctl.Resolve(res)
		if res.Err != nil {
			m.status = string(res.Request.Kind) + " failed: " + res.Err.Error()
		}
		reload = true
		cmds = append(cmds, m.sync.wait())
	case tea.MouseMsg:
		m.mouse(msg)
	case tea.KeyMsg:
		if cmd := m.key(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	m.reconcile(reload)
	m.sync.enqueue(m.ctl.Drain()...)
	m.scrollToCursor()
	if m.quitting {
		return m, tea.Quit
	}
	return m, tea.Batch(cmds...)
}

func (m *appModel) key(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return nil
	}
	m.status = ""
	if m.ctl.HelpVisible() {
		m.ctl.CloseHelp()
		return nil
	}
	switch m.ctl.Mode() {
	case board.ModeSearching:
		return m.searchKey(msg)
	case board.ModeAdding, board.ModeEditing:
		if msg.Type != tea.KeyEsc {
			return m.formKey(msg)
		}
	case board.ModeDeleting:
		if key.Matches(msg, m.keys.Confirm) {
			m.ctl.DoDelete()
			return nil
		}
	case board.ModeDischarging:
		if key.Matches(msg, m.keys.Category) {
			if d := m.grid.Discharge(); d != nil {
				delta := 1
				if msg.Type == tea.KeyLeft {
					delta = -1
				}
				d.Category = cycleCategory(d.Category, delta)
			}
			return nil
		}
		if key.Matches(msg, m.keys.Confirm) {
			m.grid.DoDischarge()
			return nil
		}
	case board.ModeNormal:
		if m.hostKey(msg) {
			return nil
		}
	}
	if ev, ok := boardKey(msg); ok {
		m.ctl.Dispatch(ev)
	}
	return nil
}

// hostKey handles the normal-mode keys that are not in the controller's table.
func (m *appModel) hostKey(msg tea.KeyMsg) bool {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return true
	}
	if m.grid == nil {
		return false
	}
	switch {
	case key.Matches(msg, m.keys.Search):
		if m.grid.FocusSearch() {
			m.searchFocus = 0
			m.search[0].Focus()
		}
	case key.Matches(msg, m.keys.Tag):
		m.grid.SetTag(nextTag(m.grid))
	case key.Matches(msg, m.keys.Add):
		m.grid.StartAdd()
	case key.Matches(msg, m.keys.Discharge):
		m.grid.StartDischarge(m.grid.Cursor().Row)
	default:
		return false
	}
	return true
}

func (m *appModel) searchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter, tea.KeyDown:
		m.search[0].Blur()
		m.search[1].Blur()
		m.grid.Select(0, 0, 0)
		return nil
	case tea.KeyTab, tea.KeyShiftTab:
		m.search[m.searchFocus].Blur()
		m.searchFocus = 1 - m.searchFocus
		m.search[m.searchFocus].Focus()
		return nil
	}
	var cmd tea.Cmd
	m.search[m.searchFocus], cmd = m.search[m.searchFocus].Update(msg)
	m.grid.SetQuery(m.search[0].Value(), m.search[1].Value())
	return cmd
}

func (m *appModel) formKey(msg tea.KeyMsg) tea.Cmd {
	adding := m.ctl.Mode() == board.ModeAdding
	switch {
	case key.Matches(msg, m.keys.Save):
		m.save(adding)
		return nil
	case key.Matches(msg, m.keys.SaveAdd):
		if !adding {
			m.ctl.SaveEditAndAdd()
		}
		return nil
	case key.Matches(msg, m.keys.Lookup):
		if adding {
			m.grid.FindByHospitalNumber()
		}
		return nil
	case msg.Type == tea.KeyEnter:
		if adding && !m.grid.Add().Looked {
			m.grid.FindByHospitalNumber()
			return nil
		}
		m.save(adding)
		return nil
	}
	if m.form == nil {
		return nil
	}
	return m.form.update(msg)
}

func (m *appModel) save(adding bool) {
	if adding {
		m.grid.SaveAdd()
		return
	}
	m.ctl.SaveEdit()
}

// reconcile keeps the open form in step with the controller's mode and buffers.
func (m *appModel) reconcile(reload bool) {
	sc := m.ctl.Schema()
	switch m.ctl.Mode() {
	case board.ModeEditing:
		buf := m.ctl.Buffer()
		if buf == nil {
			m.form = nil
			return
		}
		if m.form == nil || m.form.buf != buf {
			m.form = newEditForm(sc, m.editColumn(), buf)
		}
	case board.ModeAdding:
		a := m.grid.Add()
		if a == nil {
			m.form = nil
			return
		}
		if m.form == nil || m.form.np != &a.Buffer || m.form.looked != a.Looked {
			m.form = newAddForm(sc, &a.Buffer, a.Looked)
		} else if reload {
			m.form.load()
		}
		m.form.note = lookupNote(a)
	default:
		m.form = nil
	}
}

func (m *appModel) editColumn() schema.Column {
	if m.grid != nil {
		return m.grid.Columns()[m.grid.Cursor().Col]
	}
	return m.detail.Columns()[m.detail.Cursor().Col]
}

// nextTag cycles through every list name seen on the board.
func nextTag(g *board.Grid) string {
	seen := map[string]bool{board.DefaultTag: true, g.Tag(): true}
	for _, p := range g.Patients() {
		for name := range p.Tags {
			seen[name] = true
		}
		for name := range p.Location().Tags {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if name == g.Tag() {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}

func (m *appModel) mouse(msg tea.MouseMsg) {
	if m.ctl.Mode() != board.ModeNormal && m.ctl.Mode() != board.ModeSearching {
		return
	}
	h, ok := m.hitTest(msg.X, msg.Y)
	switch msg.Action {
	case tea.MouseActionMotion:
		if !ok {
			m.leave()
			return
		}
		if m.grid != nil {
			m.grid.MouseEnter(h.row, h.col)
		} else {
			m.detail.MouseEnter(h.col)
		}
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !ok || h.item < 0 {
			return
		}
		if m.grid != nil {
			m.grid.Select(h.row, h.col, h.item)
		} else {
			m.detail.Select(h.col, h.item)
		}
	}
}

func (m *appModel) leave() {
	if m.grid != nil {
		m.grid.MouseLeave()
	} else {
		m.detail.MouseLeave()
	}
}

func (m *appModel) bodyHeight() int {
	if m.height <= 0 {
		return 1 << 20
	}
	h := m.height - headerLines - footerLines
	if h < 1 {
		h = 1
	}
	return h
}

func (m *appModel) scrollToCursor() {
	lines := m.bodyLines()
	target := -1
	for i, ln := range lines {
		if m.isCursorLine(ln) {
			target = i
			break
		}
	}
	bh := m.bodyHeight()
	if target >= 0 {
		if target < m.top {
			m.top = target
		}
		if target >= m.top+bh {
			m.top = target - bh + 1
		}
	}
	if last := len(lines) - bh; m.top > last {
		m.top = last
	}
	if m.top < 0 {
		m.top = 0
	}
}

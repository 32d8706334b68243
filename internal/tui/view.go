package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"patientboard/internal/board"
	"patientboard/internal/model"
	"patientboard/internal/schema"
)

type lineKind int

const (
	lineItem lineKind = iota
	lineHeading
	lineDivider
)

// bodyLine is one rendered line of the scrolling body. Grid lines carry a row and the line
// within it (sub); detail lines carry a column and item.
type bodyLine struct {
	kind lineKind
	row  int
	sub  int
	col  int
	item int
}

type hit struct{ row, col, item int }

func (m *appModel) bodyLines() []bodyLine {
	var out []bodyLine
	if m.grid != nil {
		cols := m.grid.Columns()
		for r, p := range m.grid.Rows() {
			h := 1
			for _, c := range cols {
				if n := len(p.Items(c.Name)); n > h {
					h = n
				}
			}
			for sub := 0; sub < h; sub++ {
				out = append(out, bodyLine{kind: lineItem, row: r, sub: sub})
			}
			out = append(out, bodyLine{kind: lineDivider, row: r})
		}
		return out
	}
	p := m.detail.Patient()
	for c, col := range m.detail.Columns() {
		out = append(out, bodyLine{kind: lineHeading, col: c, item: -1})
		for i := range p.Items(col.Name) {
			out = append(out, bodyLine{kind: lineItem, col: c, item: i})
		}
		out = append(out, bodyLine{kind: lineDivider, col: c, item: -1})
	}
	return out
}

func (m *appModel) isCursorLine(ln bodyLine) bool {
	if ln.kind != lineItem {
		return false
	}
	if m.grid != nil {
		cur := m.grid.Cursor()
		if !cur.Selected() {
			return false
		}
		return ln.row == cur.Row && ln.sub == cur.Item
	}
	cur := m.detail.Cursor()
	return ln.col == cur.Col && ln.item == cur.Item
}

func (m *appModel) viewWidth() int {
	if m.width <= 0 {
		return 100
	}
	return m.width
}

// hitTest maps a screen cell to a grid cell (row, col, item) or a detail column and item.
// item is -1 when the position holds no item.
func (m *appModel) hitTest(x, y int) (hit, bool) {
	idx := y - headerLines + m.top
	lines := m.bodyLines()
	if y < headerLines || idx < 0 || idx >= len(lines) || idx >= m.top+m.bodyHeight() {
		return hit{}, false
	}
	ln := lines[idx]
	if m.grid == nil {
		if ln.kind == lineDivider {
			return hit{}, false
		}
		return hit{row: -1, col: ln.col, item: ln.item}, true
	}
	if ln.kind != lineItem {
		return hit{}, false
	}
	cols := m.grid.Columns()
	widths := columnWidths(m.viewWidth(), len(cols))
	c, left := -1, 0
	for i, w := range widths {
		if x >= left && x < left+w {
			c = i
			break
		}
		left += w
	}
	if c < 0 {
		return hit{}, false
	}
	item := ln.sub
	if item >= len(m.grid.Rows()[ln.row].Items(cols[c].Name)) {
		item = -1
	}
	return hit{row: ln.row, col: c, item: item}, true
}

func (m *appModel) View() string {
	if m.quitting {
		return ""
	}
	w := m.viewWidth()
	switch {
	case m.ctl.HelpVisible():
		return m.place(modalBox(w, renderMarkdown(m.helpMarkdown(), modalBodyWidth(w)-4)))
	case m.form != nil:
		return m.place(m.form.view(w))
	case m.ctl.Mode() == board.ModeDeleting:
		return m.place(renderConfirmModal(w, "Delete", m.deleteBody(), "Delete", "Cancel"))
	case m.ctl.Mode() == board.ModeDischarging:
		if d := m.grid.Discharge(); d != nil {
			if p := m.patientByID(d.PatientID); p != nil {
				return m.place(renderDischargeModal(w, p, d))
			}
		}
	}
	return m.mainView(w)
}

func (m *appModel) place(s string) string {
	if m.width <= 0 || m.height <= 0 {
		return s
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func (m *appModel) patientByID(id int64) *model.Patient {
	for _, p := range m.grid.Patients() {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *appModel) mainView(w int) string {
	var header string
	if m.grid != nil {
		header = m.gridHeader(w)
	} else {
		header = m.detailHeader(w)
	}

	lines := m.bodyLines()
	var body []string
	for i := m.top; i < len(lines) && i < m.top+m.bodyHeight(); i++ {
		body = append(body, m.renderLine(lines[i], w))
	}
	bodyH := 0
	if m.height > 0 {
		bodyH = m.bodyHeight()
	}
	if len(lines) == 0 {
		body = []string{styleMuted().Render("  No patients on this list.")}
	}

	status := ""
	switch {
	case m.status != "":
		status = styleError().Render(m.status)
	case m.sync.pending() > 0:
		status = lipgloss.NewStyle().Foreground(colorPendingFg).Render(fmt.Sprintf("syncing %d…", m.sync.pending()))
	}
	foot := status + "\n" + m.help.View(footer{keys: m.keys, mode: m.ctl.Mode(), detail: m.grid == nil})

	return strings.Join([]string{
		normalizePane(header, w, headerLines),
		normalizePane(strings.Join(body, "\n"), w, bodyH),
		normalizePane(foot, w, footerLines),
	}, "\n")
}

func (m *appModel) gridHeader(w int) string {
	g := m.grid
	title := styleHeading().Render("Patient board") +
		styleMuted().Render(" · list ") + styleHeading().Render(g.Tag()) +
		styleMuted().Render(fmt.Sprintf(" · %d of %d patients", len(g.Rows()), len(g.Patients())))
	search := styleMuted().Render("Hospital ") + m.search[0].View() + styleMuted().Render("  Ward ") + m.search[1].View()

	cols := g.Columns()
	widths := columnWidths(w, len(cols))
	var heads []string
	for i, c := range cols {
		heads = append(heads, styleHeading().Render(fitLine(c.Label(), widths[i]-1))+" ")
	}
	rule := styleMuted().Render(strings.Repeat("─", w))
	return strings.Join([]string{title, search, strings.Join(heads, ""), rule}, "\n")
}

func (m *appModel) detailHeader(w int) string {
	p := m.detail.Patient()
	d := p.Demographics()
	name := d.Name
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("Patient %d", p.ID)
	}
	var ident []string
	if d.HospitalNumber != "" {
		ident = append(ident, "Hospital number "+d.HospitalNumber)
	}
	if dob := model.FormatDOB(d.DateOfBirth); dob != "" {
		ident = append(ident, "DOB "+dob)
	}
	loc := p.Location()
	where := strings.TrimSpace(strings.Join([]string{loc.Hospital, loc.Ward, loc.Bed}, " "))
	locLine := styleCategory(loc.Category).Render(loc.Category) + " " + where
	if lists := trueTags(p.Tags); len(lists) > 0 {
		locLine += styleMuted().Render(" · lists: " + strings.Join(lists, ", "))
	}
	rule := styleMuted().Render(strings.Repeat("─", w))
	return strings.Join([]string{styleHeading().Render(name), styleMuted().Render(strings.Join(ident, " · ")), locLine, rule}, "\n")
}

func (m *appModel) renderLine(ln bodyLine, w int) string {
	if ln.kind == lineDivider {
		return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted)).Render(strings.Repeat("┄", w))
	}
	if m.grid != nil {
		return m.gridLine(ln, w)
	}
	return m.detailLine(ln, w)
}

func (m *appModel) gridLine(ln bodyLine, w int) string {
	g := m.grid
	p := g.Rows()[ln.row]
	cols := g.Columns()
	widths := columnWidths(w, len(cols))
	cur, hov := g.Cursor(), g.Hover()
	var b strings.Builder
	for c, col := range cols {
		items := p.Items(col.Name)
		text := ""
		if ln.sub < len(items) {
			text = m.itemText(col, items[ln.sub], false)
		}
		cell := fitLine(text, widths[c]-1)
		switch {
		case cur.Selected() && cur.Row == ln.row && cur.Col == c && cur.Item == ln.sub && ln.sub < len(items):
			cell = styleSelected().Render(cell)
		case hov.Row == ln.row && hov.Col == c:
			cell = styleHover().Render(cell)
		case col.Name == model.ColumnLocation && ln.sub == 0:
			cell = styleCategory(p.Location().Category).UnsetBold().Render(cell)
		}
		b.WriteString(cell)
		b.WriteString(" ")
	}
	return b.String()
}

func (m *appModel) detailLine(ln bodyLine, w int) string {
	d := m.detail
	col := d.Columns()[ln.col]
	if ln.kind == lineHeading {
		st := styleHeading()
		if d.Hover() == ln.col {
			st = st.Inherit(styleHover())
		}
		return st.Render(fitLine(col.Label(), w))
	}
	it := d.Patient().Items(col.Name)[ln.item]
	text := fitLine(m.itemText(col, it, true), w-2)
	cur := d.Cursor()
	if cur.Col == ln.col && cur.Item == ln.item {
		text = styleSelected().Render(text)
	}
	return "  " + text
}

// itemText renders an item's summary; full adds the remaining non-empty fields.
func (m *appModel) itemText(col schema.Column, it model.Item, full bool) string {
	marker := ""
	switch m.ctl.SyncStatus(it.Ref) {
	case board.SyncPending:
		marker = "… "
	case board.SyncFailed:
		marker = "! "
	}
	if it.Empty() {
		if col.Singleton() {
			return marker + "·"
		}
		return marker + "+ add"
	}
	seen := map[string]bool{}
	var parts []string
	for _, f := range col.SummaryFields() {
		seen[f] = true
		v := it.Get(f)
		if f == model.FieldDateOfBirth {
			v = model.FormatDOB(v)
		}
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	if full {
		for _, f := range col.Fields {
			if seen[f.Name] {
				continue
			}
			if v := strings.TrimSpace(it.Get(f.Name)); v != "" {
				parts = append(parts, f.Title()+": "+v)
			}
		}
	}
	return marker + strings.Join(parts, " · ")
}

func (m *appModel) deleteBody() string {
	col := m.editColumn()
	var it *model.Item
	if m.grid != nil {
		_, it, _ = m.grid.Current()
	} else {
		it, _ = m.detail.Current()
	}
	body := "Delete this " + strings.ToLower(col.Label()) + " entry?"
	if it != nil {
		body += "\n\n" + m.itemText(col, *it, true)
	}
	return body
}

func (m *appModel) helpMarkdown() string {
	var b strings.Builder
	b.WriteString("# Keyboard shortcuts\n\n| Key | Action |\n| --- | --- |\n")
	for _, bd := range m.ctl.Keymap().Bindings(board.ModeNormal) {
		fmt.Fprintf(&b, "| %s | %s |\n", bd.Key(), bd.Help)
	}
	hosts := footer{keys: m.keys, mode: board.ModeNormal, detail: m.grid == nil}.ShortHelp()
	hosts = append(hosts, m.keys.Save, m.keys.SaveAdd, m.keys.Next, m.keys.Cancel)
	if m.grid != nil {
		hosts = append(hosts, m.keys.Lookup)
	}
	for _, kb := range hosts {
		h := kb.Help()
		if h.Key == "?" {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s |\n", h.Key, h.Desc)
	}
	b.WriteString("\nPress any key to close.\n")
	return b.String()
}

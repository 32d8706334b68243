package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"patientboard/internal/board"
	"patientboard/internal/model"
	"patientboard/internal/schema"
)

type formField struct {
	label   string
	input   textinput.Model
	options []string
	get     func() string
	set     func(string)
}

// form edits a buffer owned by the controller. Every keystroke is written straight back.
type form struct {
	title  string
	fields []formField
	focus  int
	// buf and np are the buffers this form was built for.
	buf *model.Item
	np  *model.NewPatient
	// looked records the add flow's lookup state the form was built for.
	looked bool
	note   string
}

func newInput(placeholder string) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 200
	in.Width = 40
	in.Prompt = ""
	return in
}

func itemField(sc *schema.Schema, f schema.Field, it *model.Item, dob bool) formField {
	in := newInput(placeholderFor(f))
	var opts []string
	if f.Options != "" && sc != nil {
		opts = sc.OptionList(f.Options)
		if len(opts) > 0 {
			in.ShowSuggestions = true
			in.SetSuggestions(opts)
		}
	}
	name := f.Name
	ff := formField{label: f.Title(), input: in, options: opts}
	if dob {
		// The add buffer keeps stored dates; the form shows D/M/YYYY.
		ff.get = func() string { return model.FormatDOB(it.Get(name)) }
		ff.set = func(v string) { it.Set(name, model.ParseDOB(v)) }
	} else {
		ff.get = func() string { return it.Get(name) }
		ff.set = func(v string) { it.Set(name, v) }
	}
	return ff
}

func placeholderFor(f schema.Field) string {
	switch {
	case f.Name == model.FieldDateOfBirth:
		return "D/M/YYYY"
	case f.Type == schema.FieldDate:
		return "YYYY-MM-DD"
	case f.Type == schema.FieldBool:
		return "true/false"
	}
	return ""
}

// tagsField edits location tags as a comma list. Dropped names are kept as false so the
// server clears them.
func tagsField(it *model.Item) formField {
	ff := formField{label: "Lists", input: newInput("mine, icu")}
	ff.get = func() string { return strings.Join(trueTags(it.Tags), ", ") }
	ff.set = func(v string) {
		if it.Tags == nil {
			it.Tags = model.Tags{}
		}
		for k := range it.Tags {
			it.Tags[k] = false
		}
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				it.Tags[name] = true
			}
		}
	}
	return ff
}

func trueTags(t model.Tags) []string {
	var out []string
	for k, v := range t {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func newEditForm(sc *schema.Schema, col schema.Column, buf *model.Item) *form {
	f := &form{title: "Edit " + strings.ToLower(col.Label()), buf: buf}
	if buf.Persisted() {
		f.title = col.Label()
	} else if !col.Singleton() {
		f.title = "New " + strings.ToLower(col.Label())
	}
	for _, fd := range col.Fields {
		f.fields = append(f.fields, itemField(sc, fd, buf, false))
	}
	if col.Name == model.ColumnLocation {
		f.fields = append(f.fields, tagsField(buf))
	}
	f.load()
	return f
}

var (
	addDemographics = []string{model.FieldName, model.FieldDateOfBirth}
	addLocation     = []string{model.FieldHospital, model.FieldWard, model.FieldBed, model.FieldCategory, model.FieldDateOfAdmission}
)

// newAddForm asks for the hospital number first; the rest appears once a lookup has run.
func newAddForm(sc *schema.Schema, np *model.NewPatient, looked bool) *form {
	f := &form{title: "Add patient", np: np, looked: looked}
	demo, _ := sc.Column(model.ColumnDemographics)
	loc, _ := sc.Column(model.ColumnLocation)
	byName := func(c schema.Column, name string) schema.Field {
		for _, fd := range c.Fields {
			if fd.Name == name {
				return fd
			}
		}
		return schema.Field{Name: name}
	}
	f.fields = append(f.fields, itemField(sc, byName(demo, model.FieldHospitalNumber), &np.Demographics, false))
	if looked {
		for _, name := range addDemographics {
			f.fields = append(f.fields, itemField(sc, byName(demo, name), &np.Demographics, name == model.FieldDateOfBirth))
		}
		for _, name := range addLocation {
			f.fields = append(f.fields, itemField(sc, byName(loc, name), &np.Location, false))
		}
	}
	f.load()
	return f
}

// complete returns the first option extending the typed prefix.
func (ff formField) complete() string {
	v := strings.ToLower(ff.input.Value())
	if v == "" {
		return ""
	}
	for _, o := range ff.options {
		if len(o) > len(v) && strings.HasPrefix(strings.ToLower(o), v) {
			return o
		}
	}
	return ""
}

// load copies buffer values into the inputs and focuses the current field.
func (f *form) load() {
	for i := range f.fields {
		f.fields[i].input.SetValue(f.fields[i].get())
		f.fields[i].input.CursorEnd()
		f.fields[i].input.Blur()
	}
	if f.focus >= len(f.fields) {
		f.focus = 0
	}
	if len(f.fields) > 0 {
		f.fields[f.focus].input.Focus()
	}
}

func (f *form) move(delta int) {
	if len(f.fields) == 0 {
		return
	}
	f.fields[f.focus].input.Blur()
	f.focus = (f.focus + delta + len(f.fields)) % len(f.fields)
	f.fields[f.focus].input.Focus()
}

func (f *form) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		f.move(1)
		return nil
	case "shift+tab", "up":
		f.move(-1)
		return nil
	}
	if len(f.fields) == 0 {
		return nil
	}
	ff := &f.fields[f.focus]
	if msg.Type == tea.KeyRight && ff.input.Position() >= len([]rune(ff.input.Value())) {
		if s := ff.complete(); s != "" {
			ff.input.SetValue(s)
			ff.input.CursorEnd()
			ff.set(s)
			return nil
		}
	}
	var cmd tea.Cmd
	ff.input, cmd = ff.input.Update(msg)
	ff.set(ff.input.Value())
	return cmd
}

func (f *form) view(width int) string {
	labelW := 0
	for _, ff := range f.fields {
		if w := lipgloss.Width(ff.label); w > labelW {
			labelW = w
		}
	}
	label := styleMuted().Width(labelW + 2)
	lines := []string{styleHeading().Render(f.title), ""}
	if f.note != "" {
		lines = append(lines, styleMuted().Render(f.note), "")
	}
	for i, ff := range f.fields {
		l := label.Render(ff.label)
		if i == f.focus {
			l = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(labelW + 2).Render(ff.label)
		}
		lines = append(lines, l+ff.input.View())
	}
	return modalBox(width, strings.Join(lines, "\n"))
}

// lookupNote tells the user what the hospital number lookup found. Several matches are never
// merged; the user fills the form in by hand or cancels.
func lookupNote(a *board.AddSession) string {
	switch {
	case a == nil:
		return ""
	case a.Finding:
		return "Looking up…"
	case !a.Looked:
		return "Enter the hospital number and press enter to look it up."
	case a.Matches == 1:
		return "Existing patient found; saving adds them to this list."
	case a.Matches > 1:
		return fmt.Sprintf("%d patients share this hospital number; none was filled in.", a.Matches)
	}
	return "No existing patient; enter the details."
}

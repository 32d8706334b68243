package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"patientboard/internal/board"
)

// boardKey translates a terminal key into the controller's key event.
func boardKey(msg tea.KeyMsg) (board.KeyEvent, bool) {
	switch msg.Type {
	case tea.KeyLeft:
		return board.KeyEvent{Code: board.KeyLeft}, true
	case tea.KeyRight:
		return board.KeyEvent{Code: board.KeyRight}, true
	case tea.KeyUp:
		return board.KeyEvent{Code: board.KeyUp}, true
	case tea.KeyDown:
		return board.KeyEvent{Code: board.KeyDown}, true
	case tea.KeyShiftLeft:
		return board.KeyEvent{Code: board.KeyLeft, Shift: true}, true
	case tea.KeyShiftRight:
		return board.KeyEvent{Code: board.KeyRight, Shift: true}, true
	case tea.KeyShiftUp:
		return board.KeyEvent{Code: board.KeyUp, Shift: true}, true
	case tea.KeyShiftDown:
		return board.KeyEvent{Code: board.KeyDown, Shift: true}, true
	case tea.KeyEnter:
		return board.KeyEvent{Code: board.KeyEnter}, true
	case tea.KeyF2:
		return board.KeyEvent{Code: board.KeyF2}, true
	case tea.KeyBackspace:
		return board.KeyEvent{Code: board.KeyBackspace}, true
	case tea.KeyDelete:
		return board.KeyEvent{Code: board.KeyDelete}, true
	case tea.KeyEsc:
		return board.KeyEvent{Code: board.KeyEscape}, true
	case tea.KeyRunes:
		if len(msg.Runes) == 1 && msg.Runes[0] == '?' {
			return board.KeyEvent{Code: board.KeySlash, Shift: true}, true
		}
	}
	return board.KeyEvent{}, false
}

// keyMap holds the host keys that sit outside the controller's tables.
type keyMap struct {
	Quit      key.Binding
	Search    key.Binding
	Tag       key.Binding
	Add       key.Binding
	Discharge key.Binding
	Help      key.Binding
	Save      key.Binding
	SaveAdd   key.Binding
	Lookup    key.Binding
	Next      key.Binding
	Prev      key.Binding
	Confirm   key.Binding
	Cancel    key.Binding
	Category  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Tag:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "next list")),
		Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add patient")),
		Discharge: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "discharge")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		SaveAdd:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "save and add another")),
		Lookup:    key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "look up hospital number")),
		Next:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Prev:      key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
		Confirm:   key.NewBinding(key.WithKeys("enter", "y"), key.WithHelp("enter", "confirm")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Category:  key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←/→", "category")),
	}
}

// footer selects the bindings shown for a mode; it implements help.KeyMap.
type footer struct {
	keys   keyMap
	mode   board.Mode
	detail bool
}

func (f footer) ShortHelp() []key.Binding {
	k := f.keys
	switch f.mode {
	case board.ModeEditing:
		return []key.Binding{k.Next, k.Save, k.SaveAdd, k.Cancel}
	case board.ModeAdding:
		return []key.Binding{k.Next, k.Lookup, k.Save, k.Cancel}
	case board.ModeDeleting:
		return []key.Binding{k.Confirm, k.Cancel}
	case board.ModeDischarging:
		return []key.Binding{k.Category, k.Confirm, k.Cancel}
	case board.ModeSearching:
		return []key.Binding{k.Next, k.Cancel}
	}
	if f.detail {
		return []key.Binding{k.Help, k.Quit}
	}
	return []key.Binding{k.Search, k.Tag, k.Add, k.Discharge, k.Help, k.Quit}
}

func (f footer) FullHelp() [][]key.Binding { return [][]key.Binding{f.ShortHelp()} }

package board

import "fmt"

// KeyCode follows browser keyCodes so key tables read the same in every host.
type KeyCode int

const (
	KeyBackspace KeyCode = 8
	KeyEnter     KeyCode = 13
	KeyEscape    KeyCode = 27
	KeyLeft      KeyCode = 37
	KeyUp        KeyCode = 38
	KeyRight     KeyCode = 39
	KeyDown      KeyCode = 40
	KeyDelete    KeyCode = 46
	KeyF2        KeyCode = 113
	// KeySlash is "/"; shifted it is "?".
	KeySlash KeyCode = 191
)

type KeyEvent struct {
	Code  KeyCode
	Shift bool
}

func (e KeyEvent) String() string {
	name := e.Code.String()
	if e.Shift {
		return "shift+" + name
	}
	return name
}

func (k KeyCode) String() string {
	switch k {
	case KeyBackspace:
		return "backspace"
	case KeyEnter:
		return "enter"
	case KeyEscape:
		return "esc"
	case KeyLeft:
		return "left"
	case KeyUp:
		return "up"
	case KeyRight:
		return "right"
	case KeyDown:
		return "down"
	case KeyDelete:
		return "delete"
	case KeyF2:
		return "f2"
	case KeySlash:
		return "/"
	default:
		return fmt.Sprintf("key(%d)", int(k))
	}
}

// Binding ties a key to an action. Shift bindings only fire with shift held; the others
// ignore it.
type Binding struct {
	Code           KeyCode
	Shift          bool
	PreventDefault bool
	Help           string
	Run            func()
}

func (b Binding) Key() string {
	if b.Code == KeySlash && b.Shift {
		return "?"
	}
	return KeyEvent{Code: b.Code, Shift: b.Shift}.String()
}

func (b Binding) matches(ev KeyEvent) bool {
	if b.Code != ev.Code {
		return false
	}
	return !b.Shift || ev.Shift
}

// Keymap holds one key table per mode. A mode without a table ignores every key.
type Keymap struct {
	tables map[Mode][]Binding
}

func NewKeymap() Keymap { return Keymap{tables: map[Mode][]Binding{}} }

func (k Keymap) Bind(m Mode, b ...Binding) {
	k.tables[m] = append(k.tables[m], b...)
}

func (k Keymap) Bindings(m Mode) []Binding {
	return append([]Binding(nil), k.tables[m]...)
}

// Dispatch runs the binding for ev in mode m, if any.
func (k Keymap) Dispatch(m Mode, ev KeyEvent) (handled, preventDefault bool) {
	for _, b := range k.tables[m] {
		if !b.matches(ev) {
			continue
		}
		if b.Run != nil {
			b.Run()
		}
		return true, b.PreventDefault
	}
	return false, false
}

// cancels maps each modal mode to its cancel operation.
type cancels struct {
	add, edit, del, discharge func()
}

// bindNavigation installs the normal-mode table. Left/right are only bound when given.
func bindNavigation(k Keymap, left, right, up, down, edit, del, help func()) {
	if left != nil {
		k.Bind(ModeNormal, Binding{Code: KeyLeft, Help: "previous column", Run: left})
	}
	if right != nil {
		k.Bind(ModeNormal, Binding{Code: KeyRight, Help: "next column", Run: right})
	}
	k.Bind(ModeNormal,
		Binding{Code: KeyUp, Help: "previous item", Run: up},
		Binding{Code: KeyDown, Help: "next item", Run: down},
		Binding{Code: KeyEnter, Help: "edit item", Run: edit},
		Binding{Code: KeyF2, Help: "edit item", Run: edit},
		Binding{Code: KeyBackspace, PreventDefault: true, Help: "delete item", Run: del},
		Binding{Code: KeyDelete, Help: "delete item", Run: del},
		Binding{Code: KeySlash, Shift: true, Help: "keyboard shortcuts", Run: help},
	)
}

func bindCancels(k Keymap, c cancels) {
	if c.add != nil {
		k.Bind(ModeAdding, Binding{Code: KeyEscape, Help: "cancel", Run: c.add})
	}
	if c.edit != nil {
		k.Bind(ModeEditing, Binding{Code: KeyEscape, Help: "cancel", Run: c.edit})
	}
	if c.del != nil {
		k.Bind(ModeDeleting, Binding{Code: KeyEscape, Help: "cancel", Run: c.del})
	}
	if c.discharge != nil {
		k.Bind(ModeDischarging, Binding{Code: KeyEscape, Help: "cancel", Run: c.discharge})
	}
}

package board

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"patientboard/internal/model"
	"patientboard/internal/schema"
)

// Prefs persists small user preferences across sessions.
type Prefs interface {
	Get(key string) string
	Put(key, value string) error
}

const (
	TagPrefKey = "patientboard.currentTag"
	DefaultTag = "mine"
)

type Option func(*options)

type options struct {
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
	prefs    Prefs
	flagship string
	tag      string
}

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithClock replaces time.Now; placeholders and discharge dates use it.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithIDs replaces the uuid generator used for request ids and item refs.
func WithIDs(next func() string) Option { return func(o *options) { o.newID = next } }

func WithPrefs(p Prefs) Option { return func(o *options) { o.prefs = p } }

func WithFlagship(hospital string) Option { return func(o *options) { o.flagship = hospital } }

// WithDefaultTag sets the tag used when no preference is stored.
func WithDefaultTag(tag string) Option { return func(o *options) { o.tag = tag } }

func buildOptions(opts []Option) options {
	o := options{
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
		flagship: DefaultFlagship,
		tag:      DefaultTag,
	}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// session is the edit state shared by the grid and the detail view.
type session struct {
	options
	outbox
	schema *schema.Schema
	mode   Mode
	buf    *model.Item
	help   bool
	// deferred holds edits to items whose create has not come back yet.
	deferred map[string]model.Item
}

func newSession(s *schema.Schema, opts []Option) session {
	return session{
		options:  buildOptions(opts),
		outbox:   newOutbox(),
		schema:   s,
		deferred: map[string]model.Item{},
	}
}

func (s *session) Mode() Mode { return s.mode }

// Buffer is the detached copy under edit, nil outside editing.
func (s *session) Buffer() *model.Item { return s.buf }

// Drain hands the queued requests to the caller, oldest first.
func (s *session) Drain() []Request { return s.drain() }

func (s *session) SyncStatus(ref string) SyncState { return s.status[ref] }

func (s *session) HelpVisible() bool { return s.help }

func (s *session) ShowHelp() { s.help = true }

func (s *session) CloseHelp() { s.help = false }

func (s *session) setMode(m Mode) {
	if s.mode != m {
		s.log.Debug().Stringer("from", s.mode).Stringer("to", m).Msg("mode")
	}
	s.mode = m
}

func (s *session) today() string { return model.FormatDate(s.now()) }

func (s *session) issue(r Request) Request {
	r.ID = s.newID()
	r.IssuedAt = s.now()
	s.log.Debug().Str("request", r.ID).Str("kind", string(r.Kind)).Str("ref", r.Ref).Msg("queued")
	return s.push(r)
}

func (s *session) placeholder(patientID int64, column string) model.Item {
	return model.NewPlaceholder(patientID, column, s.now(), s.newID())
}

// prepare gives every item a ref, fills empty singletons and appends the trailing
// placeholder of each repeatable column.
func (s *session) prepare(p *model.Patient, cols []schema.Column) {
	for _, c := range cols {
		items := p.Items(c.Name)
		for i := range items {
			if items[i].Ref == "" {
				items[i].Ref = s.newID()
			}
			if items[i].Fields == nil {
				items[i].Fields = map[string]string{}
			}
		}
		switch {
		case c.Singleton() && len(items) == 0:
			items = append(items, model.Item{PatientID: p.ID, Fields: map[string]string{}, Ref: s.newID()})
		case !c.Singleton():
			items = append(items, s.placeholder(p.ID, c.Name))
		}
		p.SetItems(c.Name, items)
	}
	loc := p.Items(model.ColumnLocation)
	if len(loc) > 0 && loc[0].Tags == nil {
		loc[0].Tags = p.Tags.Clone()
	}
	if p.Tags == nil {
		p.Tags = p.Location().Tags.Clone()
	}
}

func (s *session) beginEdit(col schema.Column, it model.Item) {
	buf := it.Clone()
	if buf.Fields == nil {
		buf.Fields = map[string]string{}
	}
	if col.Name == model.ColumnDemographics {
		if v := buf.Get(model.FieldDateOfBirth); v != "" {
			buf.Set(model.FieldDateOfBirth, model.FormatDOB(v))
		}
	}
	s.buf = &buf
	s.setMode(ModeEditing)
}

func (s *session) cancelEdit() bool {
	if s.mode != ModeEditing {
		return false
	}
	s.buf = nil
	s.setMode(ModeNormal)
	return true
}

// commitEdit writes the buffer into p's column at idx and queues the matching request.
func (s *session) commitEdit(p *model.Patient, col schema.Column, idx int) bool {
	if s.mode != ModeEditing || s.buf == nil {
		return false
	}
	buf := s.buf.Clone()
	s.buf = nil
	s.setMode(ModeNormal)

	items := p.Items(col.Name)
	if idx < 0 || idx >= len(items) {
		return false
	}
	if col.Name == model.ColumnDemographics {
		if v := buf.Get(model.FieldDateOfBirth); v != "" {
			buf.Set(model.FieldDateOfBirth, model.ParseDOB(v))
		}
	}
	for _, f := range col.Fields {
		if f.Options == "" {
			continue
		}
		if v := buf.Get(f.Name); v != "" {
			buf.Set(f.Name, s.schema.Canonical(f.Options, v))
		}
	}
	if buf.Ref == "" {
		buf.Ref = s.newID()
	}
	buf.PatientID = p.ID
	trailing := !col.Singleton() && idx == len(items)-1
	items[idx] = buf
	if col.Name == model.ColumnLocation {
		p.Tags = buf.Tags.Clone()
	}

	req := Request{Column: col.Name, PatientID: p.ID, Ref: buf.Ref, Item: buf.Clone()}
	switch {
	case buf.Persisted():
		req.Kind = RequestUpdateItem
		req.ItemID = buf.ID
	case s.status[buf.Ref] == SyncPending:
		// The create is still out; send this as an update once the id arrives.
		s.deferred[buf.Ref] = buf.Clone()
		p.SetItems(col.Name, items)
		return true
	default:
		req.Kind = RequestCreateItem
		if trailing {
			items = append(items, s.placeholder(p.ID, col.Name))
		}
	}
	p.SetItems(col.Name, items)
	s.issue(req)
	return true
}

// canDelete reports whether the item at idx may be removed: never a singleton and never the
// trailing placeholder.
func canDelete(col schema.Column, items []model.Item, idx int) bool {
	if col.Singleton() {
		return false
	}
	return idx >= 0 && idx < len(items)-1
}

func (s *session) commitDelete(p *model.Patient, col schema.Column, idx int) bool {
	if s.mode != ModeDeleting {
		return false
	}
	s.setMode(ModeNormal)
	items := p.Items(col.Name)
	if !canDelete(col, items, idx) {
		return false
	}
	it := items[idx]
	items = append(items[:idx:idx], items[idx+1:]...)
	p.SetItems(col.Name, items)
	delete(s.deferred, it.Ref)
	if !it.Persisted() {
		s.orphaned[it.Ref] = true
		return true
	}
	s.issue(Request{
		Kind:      RequestDeleteItem,
		Column:    col.Name,
		PatientID: p.ID,
		ItemID:    it.ID,
		Ref:       it.Ref,
	})
	return true
}

// resolveItem settles create/update/delete results. p may be nil when the patient is gone.
func (s *session) resolveItem(p *model.Patient, res Result) {
	req := res.Request
	if res.Err != nil {
		s.settle(req.Ref, res.Err)
		delete(s.deferred, req.Ref)
		s.log.Warn().Err(res.Err).Str("kind", string(req.Kind)).Str("column", req.Column).
			Int64("patient", req.PatientID).Msg("sync failed")
		return
	}
	if req.Kind != RequestCreateItem {
		s.settle(req.Ref, nil)
		return
	}
	if s.orphaned[req.Ref] {
		delete(s.orphaned, req.Ref)
		s.issue(Request{
			Kind:      RequestDeleteItem,
			Column:    req.Column,
			PatientID: req.PatientID,
			ItemID:    res.ID,
			Ref:       req.Ref,
		})
		return
	}
	s.settle(req.Ref, nil)
	if s.buf != nil && s.buf.Ref == req.Ref {
		s.buf.ID = res.ID
	}
	if p == nil {
		return
	}
	items := p.Items(req.Column)
	for i := range items {
		if items[i].Ref != req.Ref {
			continue
		}
		items[i].ID = res.ID
		if edit, ok := s.deferred[req.Ref]; ok {
			delete(s.deferred, req.Ref)
			edit.ID = res.ID
			s.issue(Request{
				Kind:      RequestUpdateItem,
				Column:    req.Column,
				PatientID: req.PatientID,
				ItemID:    res.ID,
				Ref:       req.Ref,
				Item:      edit,
			})
		}
		return
	}
}

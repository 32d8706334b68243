package board

import (
	"time"

	"patientboard/internal/model"
)

// RequestKind names a backend operation the board wants performed.
type RequestKind string

const (
	RequestSearch         RequestKind = "search"
	RequestCreatePatient  RequestKind = "create_patient"
	RequestCreateItem     RequestKind = "create_item"
	RequestUpdateItem     RequestKind = "update_item"
	RequestDeleteItem     RequestKind = "delete_item"
	RequestUpdateLocation RequestKind = "update_location"
)

// Purpose distinguishes requests of the same kind that resolve differently.
type Purpose string

const (
	PurposeNone      Purpose = ""
	PurposeLookup    Purpose = "lookup"
	PurposeDischarge Purpose = "discharge"
)

// Criteria is a patient search. Empty fields are ignored.
type Criteria struct {
	HospitalNumber string
	Name           string
}

// Request is a command object. The controller only records intent; the host runs it against
// a gateway and hands back a Result.
type Request struct {
	ID       string
	Kind     RequestKind
	Purpose  Purpose
	IssuedAt time.Time

	Column    string
	PatientID int64
	ItemID    int64
	// Ref is the local handle of the item the request concerns.
	Ref  string
	Item model.Item

	NewPatient model.NewPatient
	Criteria   Criteria

	// Tag is the list that was active when the request was issued.
	Tag string
	// Category is the discharge category chosen by the user.
	Category string
}

// Result is the outcome of a Request.
type Result struct {
	Request Request
	Err     error

	// ID is the id assigned by a create_item.
	ID       int64
	Patient  model.Patient
	Patients []model.Patient
	Item     model.Item
}

func (r Result) OK() bool { return r.Err == nil }

// SyncState is the local view of whether an item has reached the server.
type SyncState int

const (
	SyncUnknown SyncState = iota
	SyncPending
	SyncConfirmed
	SyncFailed
)

func (s SyncState) String() string {
	switch s {
	case SyncPending:
		return "pending"
	case SyncConfirmed:
		return "confirmed"
	case SyncFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type outbox struct {
	queue  []Request
	status map[string]SyncState
	// orphaned holds refs deleted locally while their create was in flight.
	orphaned map[string]bool
}

func newOutbox() outbox {
	return outbox{status: map[string]SyncState{}, orphaned: map[string]bool{}}
}

func (o *outbox) push(r Request) Request {
	o.queue = append(o.queue, r)
	if r.Ref != "" {
		o.status[r.Ref] = SyncPending
	}
	return r
}

func (o *outbox) settle(ref string, err error) {
	if ref == "" {
		return
	}
	if err != nil {
		o.status[ref] = SyncFailed
		return
	}
	o.status[ref] = SyncConfirmed
}

func (o *outbox) drain() []Request {
	out := o.queue
	o.queue = nil
	return out
}

// Package gateway is the boundary between the board and whatever stores patients: a local
// database (sqlstore) or a remote board server (httpgw).
package gateway

import (
	"context"
	"errors"
	"fmt"

	"patientboard/internal/board"
	"patientboard/internal/model"
)

type Gateway interface {
	ListPatients(ctx context.Context) ([]model.Patient, error)
	GetPatient(ctx context.Context, id int64) (model.Patient, error)
	Search(ctx context.Context, c board.Criteria) ([]model.Patient, error)
	CreatePatient(ctx context.Context, np model.NewPatient) (model.Patient, error)
	CreateItem(ctx context.Context, column string, it model.Item) (model.Item, error)
	UpdateItem(ctx context.Context, column string, it model.Item) (model.Item, error)
	DeleteItem(ctx context.Context, column string, id int64) error
	UpdateLocation(ctx context.Context, it model.Item) (model.Item, error)
}

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
)

type NotFoundError struct {
	Kind string
	ID   int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(kind string, id int64) error {
	return NotFoundError{Kind: kind, ID: id}
}

type InvalidError struct {
	Reason string
}

func (e InvalidError) Error() string { return "invalid request: " + e.Reason }

func (e InvalidError) Is(target error) bool { return target == ErrInvalid }

func Invalid(format string, args ...any) error {
	return InvalidError{Reason: fmt.Sprintf(format, args...)}
}

// Run executes one queued board request and packages the outcome for Resolve.
func Run(ctx context.Context, gw Gateway, req board.Request) board.Result {
	res := board.Result{Request: req}
	it := req.Item.Clone()
	if req.PatientID != 0 {
		it.PatientID = req.PatientID
	}
	switch req.Kind {
	case board.RequestSearch:
		res.Patients, res.Err = gw.Search(ctx, req.Criteria)
	case board.RequestCreatePatient:
		res.Patient, res.Err = gw.CreatePatient(ctx, req.NewPatient)
	case board.RequestCreateItem:
		it.ID = 0
		res.Item, res.Err = gw.CreateItem(ctx, req.Column, it)
		res.ID = res.Item.ID
	case board.RequestUpdateItem:
		it.ID = req.ItemID
		res.Item, res.Err = gw.UpdateItem(ctx, req.Column, it)
	case board.RequestDeleteItem:
		res.Err = gw.DeleteItem(ctx, req.Column, req.ItemID)
	case board.RequestUpdateLocation:
		it.ID = req.ItemID
		res.Item, res.Err = gw.UpdateLocation(ctx, it)
	default:
		res.Err = Invalid("unknown request kind %q", req.Kind)
	}
	if res.Err != nil {
		res.Err = fmt.Errorf("%s: %w", req.Kind, res.Err)
	}
	return res
}

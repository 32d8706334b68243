// Package httpgw talks to a remote board server over its REST interface.
package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"patientboard/internal/board"
	"patientboard/internal/gateway"
	"patientboard/internal/model"
)

type Client struct {
	base *url.URL
	http *http.Client
}

var _ gateway.Gateway = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.http = c } }

// New parses the server base URL ("http://host:8000/"). Paths are resolved relative to it.
func New(base string, opts ...Option) (*Client, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, fmt.Errorf("server url is empty")
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 15 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	u, err := c.base.Parse(path)
	if err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		msg := strings.TrimSpace(eb.Error)
		if msg == "" {
			msg = resp.Status
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s %s: %s: %w", method, path, msg, gateway.ErrNotFound)
		case http.StatusBadRequest:
			return gateway.Invalid("%s %s: %s", method, path, msg)
		default:
			return fmt.Errorf("%s %s: %s", method, path, msg)
		}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func (c *Client) ListPatients(ctx context.Context) ([]model.Patient, error) {
	var out []model.Patient
	err := c.do(ctx, http.MethodGet, "patient/", nil, &out)
	return out, err
}

func (c *Client) GetPatient(ctx context.Context, id int64) (model.Patient, error) {
	var out model.Patient
	err := c.do(ctx, http.MethodGet, "patient/"+strconv.FormatInt(id, 10)+"/", nil, &out)
	return out, err
}

type searchResults struct {
	Patients []model.Patient `json:"patients"`
}

func (c *Client) Search(ctx context.Context, cr board.Criteria) ([]model.Patient, error) {
	q := url.Values{}
	if cr.HospitalNumber != "" {
		q.Set("hospital_number", cr.HospitalNumber)
	}
	if cr.Name != "" {
		q.Set("name", cr.Name)
	}
	var out searchResults
	err := c.do(ctx, http.MethodGet, "search/?"+q.Encode(), nil, &out)
	return out.Patients, err
}

func (c *Client) CreatePatient(ctx context.Context, np model.NewPatient) (model.Patient, error) {
	var out model.Patient
	err := c.do(ctx, http.MethodPost, "patient/", np, &out)
	return out, err
}

func itemPath(column string, id int64) string {
	p := "patient/" + url.PathEscape(column) + "/"
	if id != 0 {
		p += strconv.FormatInt(id, 10) + "/"
	}
	return p
}

func (c *Client) CreateItem(ctx context.Context, column string, it model.Item) (model.Item, error) {
	var out model.Item
	err := c.do(ctx, http.MethodPost, itemPath(column, 0), it, &out)
	return out, err
}

func (c *Client) UpdateItem(ctx context.Context, column string, it model.Item) (model.Item, error) {
	if it.ID == 0 {
		return model.Item{}, gateway.Invalid("update %s: missing id", column)
	}
	var out model.Item
	err := c.do(ctx, http.MethodPut, itemPath(column, it.ID), it, &out)
	return out, err
}

func (c *Client) DeleteItem(ctx context.Context, column string, id int64) error {
	if id == 0 {
		return gateway.Invalid("delete %s: missing id", column)
	}
	return c.do(ctx, http.MethodDelete, itemPath(column, id), nil, nil)
}

func (c *Client) UpdateLocation(ctx context.Context, it model.Item) (model.Item, error) {
	return c.UpdateItem(ctx, model.ColumnLocation, it)
}

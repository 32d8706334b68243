// Package server exposes a gateway over the REST shape the board client speaks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"patientboard/internal/board"
	"patientboard/internal/gateway"
	"patientboard/internal/model"
)

type Server struct {
	echo *echo.Echo
	gw   gateway.Gateway
	log  zerolog.Logger
}

// New wires routes for gw. reg may be nil, in which case /metrics is not served.
func New(gw gateway.Gateway, log zerolog.Logger, reg *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(Recovery(log))
	e.Use(RequestID())
	e.Use(Logger(log))

	s := &Server{echo: e, gw: gw, log: log}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}

	e.GET("/patient/", s.listPatients)
	e.POST("/patient/", s.createPatient)
	e.GET("/patient/:id/", s.getPatient)
	e.GET("/search/", s.search)
	e.POST("/patient/:column/", s.createItem)
	e.PUT("/patient/:column/:id/", s.updateItem)
	e.DELETE("/patient/:column/:id/", s.deleteItem)
	return s
}

func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("listening")
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := statusFor(err)
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = toString(he.Message)
		}
		if code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorBody{Error: msg})
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, gateway.Invalid("bad id %q", c.Param("id"))
	}
	return id, nil
}

func decode(c echo.Context, v any) error {
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		return gateway.Invalid("decode body: %v", err)
	}
	return nil
}

func (s *Server) listPatients(c echo.Context) error {
	ps, err := s.gw.ListPatients(c.Request().Context())
	if err != nil {
		return err
	}
	if ps == nil {
		ps = []model.Patient{}
	}
	return c.JSON(http.StatusOK, ps)
}

func (s *Server) getPatient(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := s.gw.GetPatient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) search(c echo.Context) error {
	cr := board.Criteria{
		HospitalNumber: strings.TrimSpace(c.QueryParam("hospital_number")),
		Name:           strings.TrimSpace(c.QueryParam("name")),
	}
	ps, err := s.gw.Search(c.Request().Context(), cr)
	if err != nil {
		return err
	}
	if ps == nil {
		ps = []model.Patient{}
	}
	return c.JSON(http.StatusOK, map[string][]model.Patient{"patients": ps})
}

func (s *Server) createPatient(c echo.Context) error {
	var np model.NewPatient
	if err := decode(c, &np); err != nil {
		return err
	}
	p, err := s.gw.CreatePatient(c.Request().Context(), np)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) createItem(c echo.Context) error {
	column := c.Param("column")
	var it model.Item
	if err := decode(c, &it); err != nil {
		return err
	}
	if it.PatientID == 0 {
		return gateway.Invalid("%s: missing patient", column)
	}
	it.ID = 0
	out, err := s.gw.CreateItem(c.Request().Context(), column, it)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) updateItem(c echo.Context) error {
	column := c.Param("column")
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var it model.Item
	if err := decode(c, &it); err != nil {
		return err
	}
	it.ID = id
	ctx := c.Request().Context()
	var out model.Item
	if column == model.ColumnLocation {
		out, err = s.gw.UpdateLocation(ctx, it)
	} else {
		out, err = s.gw.UpdateItem(ctx, column, it)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.gw.DeleteItem(c.Request().Context(), c.Param("column"), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

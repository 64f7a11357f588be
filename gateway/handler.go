package gateway

import (
	"errors"
	"strconv"

	"github.com/adeilh/rakh-records/auth"
	"github.com/adeilh/rakh-records/command"
	"github.com/adeilh/rakh-records/httpx"
	"github.com/adeilh/rakh-records/record"
)

// BasePath is where Handler mounts the public routes.
const BasePath = "/api/records"

type Handler struct {
	svc  *Service
	auth *auth.Middleware
}

// NewHandler builds the HTTP surface. A nil authMW leaves writes open.
func NewHandler(svc *Service, authMW *auth.Middleware) *Handler {
	return &Handler{svc: svc, auth: authMW}
}

func (h *Handler) Register(app *httpx.App) {
	var write []httpx.MiddlewareFunc
	if h.auth != nil {
		write = append(write, httpx.AuthMiddleware(h.auth))
	}
	app.Group(BasePath).
		GET("", h.getAll).
		GET("/:id", h.getByID).
		POST("", h.create, write...).
		PUT("/:id", h.update, write...).
		DELETE("/:id", h.delete, write...)
}

func (h *Handler) getByID(c httpx.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(httpx.StatusOK, r)
}

func (h *Handler) getAll(c httpx.Context) error {
	records, err := h.svc.GetAll(c.Request().Context())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return c.NoContent(httpx.StatusNoContent)
	}
	return c.JSON(httpx.StatusOK, records)
}

func (h *Handler) create(c httpx.Context) error {
	f, err := bindFields(c)
	if err != nil {
		return err
	}
	ack, err := h.svc.Create(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(httpx.StatusAccepted, ack)
}

func (h *Handler) update(c httpx.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	f, err := bindFields(c)
	if err != nil {
		return err
	}
	ack, err := h.svc.Update(c.Request().Context(), id, f)
	if err != nil {
		return err
	}
	return c.JSON(httpx.StatusAccepted, ack)
}

func (h *Handler) delete(c httpx.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ack, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(httpx.StatusAccepted, ack)
}

// StatusFor maps service errors to HTTP statuses. Install it with
// httpx.WithErrorMapper.
func StatusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, record.ErrInvalidFields),
		errors.Is(err, record.ErrInvalidID),
		errors.Is(err, command.ErrUnencodable):
		return httpx.StatusBadRequest, true
	case errors.Is(err, ErrNotFound):
		return httpx.StatusNotFound, true
	case errors.Is(err, ErrStore), errors.Is(err, ErrPublish):
		return httpx.StatusServiceUnavailable, true
	}
	return 0, false
}

func pathID(c httpx.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, httpx.HTTPError(httpx.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func bindFields(c httpx.Context) (record.Fields, error) {
	var f record.Fields
	if err := c.Bind(&f); err != nil {
		return record.Fields{}, httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	return f, nil
}

// Package rpc exposes a recordstore.Client over JSON HTTP and provides the
// matching client used by the gateway.
package rpc

import (
	"crypto/subtle"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/adeilh/rakh-records/httpx"
	"github.com/adeilh/rakh-records/record"
	"github.com/adeilh/rakh-records/recordstore"
)

// BasePath is where Register mounts the store routes.
const BasePath = "/rpc/records"

// TokenHeader carries the shared store token.
const TokenHeader = "X-Store-Token"

// RequireToken rejects requests whose TokenHeader does not match token.
// Install it with httpx.WithValidators. An empty token accepts everything.
func RequireToken(token string) httpx.Validator {
	return func(c httpx.Context) error {
		if token == "" {
			return nil
		}
		got := c.Request().Header.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return httpx.HTTPError(httpx.StatusUnauthorized, "invalid store token")
		}
		return nil
	}
}

type createResponse struct {
	ID int64 `json:"id"`
}

type mutationResponse struct {
	Success bool `json:"success"`
}

type handler struct {
	store recordstore.Client
	log   *zap.Logger
}

// Register mounts the record store routes on app:
//
//	GET    /rpc/records      all records ordered by id
//	POST   /rpc/records      create, responds {"id": n}
//	GET    /rpc/records/:id  one record or 404
//	PUT    /rpc/records/:id  update, responds {"success": bool}
//	DELETE /rpc/records/:id  delete, responds {"success": bool}
func Register(app *httpx.App, store recordstore.Client, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{store: store, log: logger.Named("rpc")}
	app.Group(BasePath).
		GET("", h.readAll).
		POST("", h.create).
		GET("/:id", h.readByID).
		PUT("/:id", h.update).
		DELETE("/:id", h.delete)
}

func (h *handler) readAll(c httpx.Context) error {
	records, err := h.store.ReadAll(c.Request().Context())
	if err != nil {
		return h.fail(err)
	}
	if records == nil {
		records = []record.Record{}
	}
	return c.JSON(httpx.StatusOK, records)
}

func (h *handler) readByID(c httpx.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	r, err := h.store.ReadByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(httpx.StatusOK, r)
}

func (h *handler) create(c httpx.Context) error {
	var f record.Fields
	if err := c.Bind(&f); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	id, err := h.store.Create(c.Request().Context(), f)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(httpx.StatusCreated, createResponse{ID: id})
}

func (h *handler) update(c httpx.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var f record.Fields
	if err := c.Bind(&f); err != nil {
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid body")
	}
	ok, err := h.store.Update(c.Request().Context(), id, f)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(httpx.StatusOK, mutationResponse{Success: ok})
}

func (h *handler) delete(c httpx.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ok, err := h.store.Delete(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(httpx.StatusOK, mutationResponse{Success: ok})
}

func (h *handler) fail(err error) error {
	switch {
	case errors.Is(err, recordstore.ErrNotFound):
		return httpx.HTTPError(httpx.StatusNotFound, err.Error())
	case errors.Is(err, record.ErrInvalidFields):
		return httpx.HTTPError(httpx.StatusBadRequest, err.Error())
	}
	h.log.Error("record store call failed", zap.Error(err))
	return httpx.HTTPError(httpx.StatusInternalError, "record store failure")
}

func pathID(c httpx.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, httpx.HTTPError(httpx.StatusBadRequest, "invalid id")
	}
	return id, nil
}

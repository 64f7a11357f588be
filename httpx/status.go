package httpx

import "net/http"

const (
	StatusOK                 = http.StatusOK
	StatusCreated            = http.StatusCreated
	StatusAccepted           = http.StatusAccepted // command published, not yet applied
	StatusNoContent          = http.StatusNoContent
	StatusBadRequest         = http.StatusBadRequest
	StatusUnauthorized       = http.StatusUnauthorized
	StatusForbidden          = http.StatusForbidden
	StatusNotFound           = http.StatusNotFound
	StatusInternalError      = http.StatusInternalServerError
	StatusServiceUnavailable = http.StatusServiceUnavailable
)

package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"armario-estampados/asset"
	"armario-estampados/bgremoval"
	"armario-estampados/capture"
	"armario-estampados/customization"
	"armario-estampados/manipulation"
	"armario-estampados/repository"
	"armario-estampados/service"
)

// retryAfterSeconds is the hint sent with transient failures
const retryAfterSeconds = 5

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("❌ Failed to encode response")
	}
}

// statusFor maps the error taxonomy onto HTTP. Transient failures carry a retry hint.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, capture.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, service.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, asset.ErrTainted):
		return http.StatusUnprocessableEntity, "tainted"
	case errors.Is(err, capture.ErrNotReady), errors.Is(err, service.ErrNothingToRender):
		return http.StatusUnprocessableEntity, "not_ready"
	case errors.Is(err, asset.ErrDecode):
		return http.StatusUnprocessableEntity, "decode_error"
	case errors.Is(err, manipulation.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "invalid_transition"
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, repository.ErrOrderNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, customization.ErrUnknownTarget):
		return http.StatusNotFound, "unknown_target"
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, customization.ErrInvalidState),
		errors.Is(err, bgremoval.ErrInvalidTolerance):
		return http.StatusBadRequest, "invalid_request"
	case capture.IsTransient(err):
		return http.StatusBadGateway, "transient"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("❌ Request failed")
	} else {
		log.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("⚠️  Request rejected")
	}
	if code == "transient" {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		return errors.Join(service.ErrInvalidRequest, err)
	}
	return nil
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/emrgen/docgen/internal/apperr"
	"github.com/sirupsen/logrus"
)

var errorStatusMap = map[apperr.Kind]int{
	apperr.KindValidation: http.StatusBadRequest,
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindForbidden:  http.StatusForbidden,
	apperr.KindIntegrity:  http.StatusUnprocessableEntity,
	apperr.KindTransient:  http.StatusServiceUnavailable,
	apperr.KindStorage:    http.StatusBadGateway,
	apperr.KindRender:     http.StatusUnprocessableEntity,
	apperr.KindInternal:   http.StatusInternalServerError,
}

func statusOf(kind apperr.Kind) int {
	if status, ok := errorStatusMap[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("error writing response: %v", err)
	}
}

// writeError answers with the status of the error kind. Internal failures
// hide their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)

	message := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) && e.Message != "" {
		message = e.Message
	}
	if kind == apperr.KindInternal {
		logrus.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Errorf("request failed: %v", err)
		message = http.StatusText(status)
	}

	writeJSON(w, status, errorBody{Kind: kind, Message: message})
}

func badRequest(w http.ResponseWriter, r *http.Request, op, message string) {
	writeError(w, r, apperr.Validation(op, message))
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

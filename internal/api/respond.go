package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"keepit/internal/apperr"
	"keepit/internal/auth"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

var errRouteNotFound = apperr.New(apperr.NotFound, "ROUTE_NOT_FOUND", "route not found")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error", "code"}. Unclassified errors are
// logged in full and shown as a generic message.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	msg, code := apperr.Public(err)
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// fail writes err using the request-scoped logger when there is one.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	log := h.log
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		log = l.With().Str("component", "api").Logger()
	}
	writeError(w, log, err)
}

func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return apperr.Validation("request body is required")
	}
	if err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func identity(r *http.Request) *auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

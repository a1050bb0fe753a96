package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/getsentry/relay-go/envelope"
	serrors "github.com/getsentry/relay-go/infrastructure/errors"
	"github.com/getsentry/relay-go/infrastructure/httputil"
)

// IngestHandler builds the POST /api/{project_id}/envelope/ handler: parse
// the newline-delimited envelope (spec.md §6), run it through the
// pipeline, and surface the enforced rate limits and/or accepted event id.
func (p *Pipeline) IngestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		if projectID == "" {
			httputil.BadRequest(w, "missing project id")
			return
		}

		env, err := envelope.Parse(r.Body, httputil.ClientIP(r))
		if err != nil {
			se := serrors.BadEnvelope(err.Error(), err)
			httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
			return
		}

		limits, err := p.HandleEnvelope(r.Context(), projectID, env)
		if limits != nil && !limits.IsEmpty() {
			w.Header().Set("X-Sentry-Rate-Limits", limits.FormatHeader())
		}
		if err != nil {
			se := serrors.GetServiceError(err)
			if se == nil {
				se = serrors.Internal("pipeline failed", err)
			}
			httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]string{"id": env.Header.EventID})
	}
}

// HealthHandler is a plain liveness endpoint (the teacher's cmd/gateway
// equivalent is a marble-aware /health; this relay owns no enclave state,
// so it is a bare 200).
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

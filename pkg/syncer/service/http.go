package service

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/errors"
	apphttp "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/http"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/auth"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes mounts the wallet sync API on the given chi router. The
// versioned routes require a bearer token; health stays open for probes.
func RegisterRoutes(r chi.Router, service Service, verifier *auth.Verifier, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/health", apphttp.HandleError(h.health))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(verifier))

		r.Post("/wallets", apphttp.HandleError(h.registerWallet))
		r.Get("/wallets/resolve", apphttp.HandleError(h.resolveWallet))
		r.Post("/wallets/{walletID}/sync", apphttp.HandleError(h.manualSync))
		r.Get("/jobs/{jobID}", apphttp.HandleError(h.jobStatus))
	})
}

func (h *HTTP) registerWallet(w http.ResponseWriter, r *http.Request) error {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "missing authenticated user")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	resp, err := h.service.RegisterWallet(r.Context(), userID, req)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, resp)
	return nil
}

func (h *HTTP) manualSync(w http.ResponseWriter, r *http.Request) error {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "missing authenticated user")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	// An empty body means default options.
	var opts SyncOptions
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &opts); err != nil {
			return apperrors.BadRequestError(err, "invalid JSON")
		}
	}

	resp, err := h.service.ManualSync(r.Context(), userID, chi.URLParam(r, "walletID"), opts)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusAccepted, resp)
	return nil
}

func (h *HTTP) jobStatus(w http.ResponseWriter, r *http.Request) error {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "missing authenticated user")
	}

	job, err := h.service.GetJobStatus(r.Context(), userID, chi.URLParam(r, "jobID"))
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, job)
	return nil
}

func (h *HTTP) resolveWallet(w http.ResponseWriter, r *http.Request) error {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "missing authenticated user")
	}

	wv, err := h.service.ResolveWallet(r.Context(), userID, r.URL.Query().Get("ref"))
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, wv)
	return nil
}

func (h *HTTP) health(w http.ResponseWriter, r *http.Request) error {
	health, err := h.service.GetServiceHealth(r.Context())
	if err != nil {
		return err
	}

	status := http.StatusOK
	if !health.Healthy() {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, health)
	return nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package api

import (
	"errors"
	"net/http"

	intake "github.com/xraph/intake"
	"github.com/xraph/intake/provider"
)

func (h *Handler) createProvider(w http.ResponseWriter, r *http.Request) {
	var in provider.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.in.Providers().Create(r.Context(), in)
	if err != nil {
		var vErr *provider.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Error())
		case errors.Is(err, intake.ErrProviderExists):
			writeError(w, http.StatusConflict, "provider already exists")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	// The token is serialized nowhere else; the creation response is the one
	// place the caller can read it back.
	writeJSON(w, http.StatusCreated, map[string]any{
		"provider": p,
		"token":    p.Token,
	})
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	opts := provider.ListOpts{
		Offset:     queryInt(r, "offset", 0),
		Limit:      queryInt(r, "limit", 50),
		ActiveOnly: queryParam(r, "active") == "true",
	}

	providers, err := h.in.Providers().List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, providers)
}

func (h *Handler) getProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.in.Providers().Get(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, intake.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) updateProvider(w http.ResponseWriter, r *http.Request) {
	var in provider.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.in.Providers().Update(r.Context(), r.PathValue("name"), in)
	if err != nil {
		var vErr *provider.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Error())
		case errors.Is(err, intake.ErrProviderNotFound):
			writeError(w, http.StatusNotFound, "provider not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) activateProvider(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) deactivateProvider(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	err := h.in.Providers().SetActive(r.Context(), r.PathValue("name"), active)
	if err != nil {
		if errors.Is(err, intake.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := h.in.Providers().RotateSecret(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, intake.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

func (h *Handler) rotateToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.in.Providers().RotateToken(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, intake.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"vault-gateway/middleware/auth"
	"vault-gateway/middleware/ratelimit"
	"vault-gateway/middleware/ratelimit/application"
	"vault-gateway/vault/domain"
)

// folga para o JSON em volta do payload em base64
const bodyOverhead = 1 << 10

type handlers struct {
	vault  Vault
	logger *slog.Logger
}

type payloadRequest struct {
	Payload []byte `json:"payload"`
}

type itemResponse struct {
	ID        string    `json:"id"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listResponse struct {
	Items []itemResponse `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toResponse(it domain.Item) itemResponse {
	return itemResponse{
		ID:        it.ID,
		Payload:   it.Payload,
		CreatedAt: it.CreatedAt.UTC(),
		UpdatedAt: it.UpdatedAt.UTC(),
	}
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, r, http.StatusUnauthorized, auth.ErrUnauthorized)
		return
	}
	payload, err := h.decode(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	it, err := h.vault.Create(r.Context(), owner, payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(it))
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, r, http.StatusUnauthorized, auth.ErrUnauthorized)
		return
	}

	items, err := h.vault.List(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := listResponse{Items: make([]itemResponse, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, toResponse(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.IdentityFrom(r.Context())
	if !ok {
		h.writeError(w, r, http.StatusUnauthorized, auth.ErrUnauthorized)
		return
	}
	payload, err := h.decode(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	it, err := h.vault.Update(r.Context(), owner, r.PathValue("id"), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(it))
}

// decode lê {"payload": "<base64>"} com teto de tamanho.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := int64(h.vault.MaxPayloadBytes())*4/3 + bodyOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req payloadRequest
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, domain.ErrPayloadTooLarge
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return req.Payload, nil
}

// fail traduz erros do vault para status.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.writeError(w, r, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, application.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError é também o ratelimit.ErrorWriter: 401/429/503 saem no mesmo formato.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := http.StatusText(status)
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		h.logger.ErrorContext(r.Context(), "vault request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	case status == http.StatusBadRequest && err != nil:
		// o detalhe do JSON ajuda o cliente; não carrega segredo
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

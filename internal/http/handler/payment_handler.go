package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"payment-idempotency-service/internal/http/response"
	"payment-idempotency-service/internal/repository"
	"payment-idempotency-service/internal/service"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "X-Idempotency-Replayed"
	maxPayloadBytes      = 64 * 1024
)

type PaymentHandler struct {
	coordinator *service.IdempotencyCoordinator
	payments    *service.PaymentService
}

func NewPaymentHandler(coordinator *service.IdempotencyCoordinator, payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{coordinator: coordinator, payments: payments}
}

// Create runs the idempotent payment creation protocol. The response body is
// the captured outcome written verbatim; replays are flagged via header.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing Idempotency-Key header", nil)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "failed to read request body", nil)
		return
	}
	if len(payload) > maxPayloadBytes {
		response.Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload exceeds 64KiB limit", nil)
		return
	}

	result, err := h.coordinator.Execute(r.Context(), key, payload)
	if err != nil {
		h.writeCreateError(w, r, err)
		return
	}
	if result.Replayed {
		w.Header().Set(replayedHeader, "true")
	}
	response.Raw(w, result.Outcome.StatusCode, result.Outcome.ContentType, result.Outcome.Body)
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	payment, err := h.payments.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "payment not found", nil)
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "storage temporarily unavailable", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, payment)
}

// Capture needs no idempotency key: it sets the payment to an absolute target
// state, so repeating it is naturally a no-op.
func (h *PaymentHandler) Capture(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	payment, err := h.payments.Capture(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "payment not found", nil)
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "storage temporarily unavailable", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, payment)
}

func (h *PaymentHandler) writeCreateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMissingIdempotencyKey):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing Idempotency-Key header", nil)
	case errors.Is(err, service.ErrKeyConflict):
		response.Error(w, r, http.StatusConflict, "CONFLICT", "idempotency key was already used with a different payload", nil)
	case errors.Is(err, service.ErrInvalidPaymentRequest):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "storage temporarily unavailable", nil)
	}
}

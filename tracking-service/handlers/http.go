package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/ecocycle/waste-tracking/shared/saga"
	"github.com/ecocycle/waste-tracking/tracking-service/application"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
)

// TrackingHandlers contains the tracking HTTP handlers
type TrackingHandlers struct {
	registerRecover         *application.RegisterRecover
	registerTransferRequest *application.RegisterTransferRequest
	registerTransferAccept  *application.RegisterTransferAccept
	registerTransferReject  *application.RegisterTransferReject
	registerTransferCancel  *application.RegisterTransferCancel
	registerTransport       *application.RegisterTransport
	getTransaction          *application.GetTransaction
}

// NewTrackingHandlers creates new tracking handlers
func NewTrackingHandlers(
	registerRecover *application.RegisterRecover,
	registerTransferRequest *application.RegisterTransferRequest,
	registerTransferAccept *application.RegisterTransferAccept,
	registerTransferReject *application.RegisterTransferReject,
	registerTransferCancel *application.RegisterTransferCancel,
	registerTransport *application.RegisterTransport,
	getTransaction *application.GetTransaction,
) *TrackingHandlers {
	return &TrackingHandlers{
		registerRecover:         registerRecover,
		registerTransferRequest: registerTransferRequest,
		registerTransferAccept:  registerTransferAccept,
		registerTransferReject:  registerTransferReject,
		registerTransferCancel:  registerTransferCancel,
		registerTransport:       registerTransport,
		getTransaction:          getTransaction,
	}
}

// RegisterRecover handles waste recovery registration requests
func (h *TrackingHandlers) RegisterRecover(w http.ResponseWriter, r *http.Request) {
	var cmd application.RegisterRecoverCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.RequesterID = requesterID(r, cmd.RequesterID)

	response, err := h.registerRecover.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// RegisterTransferRequest handles transfer request creation
func (h *TrackingHandlers) RegisterTransferRequest(w http.ResponseWriter, r *http.Request) {
	var cmd application.RegisterTransferRequestCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.RequesterID = requesterID(r, cmd.RequesterID)

	response, err := h.registerTransferRequest.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// RegisterTransferAccept handles transfer acceptance
func (h *TrackingHandlers) RegisterTransferAccept(w http.ResponseWriter, r *http.Request) {
	var cmd application.RegisterTransferAcceptCommand
	if err := decodeOptionalBody(r, &cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.RequesterID = requesterID(r, cmd.RequesterID)
	cmd.TransactionID = chi.URLParam(r, "id")

	response, err := h.registerTransferAccept.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterTransferReject handles transfer rejection
func (h *TrackingHandlers) RegisterTransferReject(w http.ResponseWriter, r *http.Request) {
	var cmd application.RegisterTransferRejectCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.RequesterID = requesterID(r, cmd.RequesterID)
	cmd.TransactionID = chi.URLParam(r, "id")

	response, err := h.registerTransferReject.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterTransferCancel handles transfer cancellation
func (h *TrackingHandlers) RegisterTransferCancel(w http.ResponseWriter, r *http.Request) {
	var cmd application.RegisterTransferCancelCommand
	if err := decodeOptionalBody(r, &cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.RequesterID = requesterID(r, cmd.RequesterID)
	cmd.TransactionID = chi.URLParam(r, "id")

	response, err := h.registerTransferCancel.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// RegisterTransport handles transport registration requests
func (h *TrackingHandlers) RegisterTransport(w http.ResponseWriter, r *http.Request) {
	var cmd application.RegisterTransportCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cmd.RequesterID = requesterID(r, cmd.RequesterID)

	response, err := h.registerTransport.Execute(r.Context(), &cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

// GetTransaction handles transaction retrieval
func (h *TrackingHandlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	query := &application.GetTransactionQuery{
		RequesterID:   requesterID(r, r.URL.Query().Get("requester_id")),
		TransactionID: chi.URLParam(r, "id"),
	}

	transaction, err := h.getTransaction.Execute(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

// RegisterRoutes registers tracking routes
func (h *TrackingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recoveries", h.RegisterRecover)
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", h.RegisterTransferRequest)
			r.Post("/{id}/accept", h.RegisterTransferAccept)
			r.Post("/{id}/reject", h.RegisterTransferReject)
			r.Post("/{id}/cancel", h.RegisterTransferCancel)
		})
		r.Post("/transports", h.RegisterTransport)
		r.Get("/transactions/{id}", h.GetTransaction)
	})
}

// requesterID prefers the authenticated user header over the body field
func requesterID(r *http.Request, fallback string) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return fallback
}

// decodeOptionalBody decodes the body when present; an empty body is fine for
// endpoints whose inputs all come from the URL and headers
func decodeOptionalBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		deniedErr     *domain.DeniedError
		workflowErr   *saga.WorkflowError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &deniedErr):
		status = http.StatusForbidden
	case errors.As(err, &workflowErr):
		// A failed workflow may still wrap a client error as its cause
		switch {
		case errors.As(workflowErr.Cause, &validationErr):
			status = http.StatusUnprocessableEntity
		case errors.As(workflowErr.Cause, &deniedErr):
			status = http.StatusForbidden
		}
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

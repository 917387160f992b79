package render

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/trackline/trackline/pkg/apperr"
)

// Message is the categorized half of the response envelope. Success and error
// responses fill the respective pair; Details is free-form.
type Message struct {
	ErrorType      string      `json:"error_type,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	SuccessType    string      `json:"success_type,omitempty"`
	SuccessMessage string      `json:"success_message,omitempty"`
	Details        interface{} `json:"details,omitempty"`
}

// Envelope is the standard response shape for every mutation and read.
type Envelope struct {
	Success bool        `json:"success"`
	Message *Message    `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PaginatedResponse is the standard list payload.
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	TotalDocs  int64       `json:"total_docs"`
	Page       int         `json:"page"`
	TotalPages int64       `json:"total_pages"`
	Limit      int         `json:"limit"`
}

func NewPaginated(items interface{}, total int64, page, limit int) *PaginatedResponse {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return &PaginatedResponse{
		Items:      items,
		TotalDocs:  total,
		Page:       page,
		TotalPages: pages,
		Limit:      limit,
	}
}

// PaginationParams holds page and limit.
type PaginationParams struct {
	Page  int
	Limit int
}

// ParsePagination extracts page and limit from the request.
func ParsePagination(r *http.Request) PaginationParams {
	page := 1
	limit := 10

	if p := r.URL.Query().Get("page"); p != "" {
		if val, err := strconv.Atoi(p); err == nil && val > 0 {
			page = val
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	if limit > 100 {
		limit = 100
	}

	return PaginationParams{Page: page, Limit: limit}
}

// OK responds 200 with a success envelope.
func OK(w http.ResponseWriter, r *http.Request, successType, message string, details, data interface{}) {
	respond(w, r, http.StatusOK, successType, message, details, data)
}

// Created responds 201 with a success envelope.
func Created(w http.ResponseWriter, r *http.Request, successType, message string, details, data interface{}) {
	respond(w, r, http.StatusCreated, successType, message, details, data)
}

func respond(w http.ResponseWriter, r *http.Request, status int, successType, message string, details, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, &Envelope{
		Success: true,
		Message: &Message{
			SuccessType:    successType,
			SuccessMessage: message,
			Details:        details,
		},
		Data: data,
	})
}

// JSON responds 200 with a bare payload (no envelope), for internal endpoints
// like ping.
func JSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	render.JSON(w, r, v)
}

// Err maps a categorized error onto the envelope and the matching status
// code. Anything unclassified is reported as a 500 with a generic message.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := &Message{
		ErrorType:    "Unexpected failure",
		ErrorMessage: "An unexpected error occurred",
	}

	if ae := apperr.AsError(err); ae != nil {
		msg.ErrorType = ae.Type
		msg.ErrorMessage = ae.Message
		msg.Details = ae.Details
		switch ae.Kind {
		case apperr.NotFound:
			status = http.StatusNotFound
		case apperr.InvalidInput:
			status = http.StatusBadRequest
		case apperr.PermissionDenied:
			status = http.StatusForbidden
		case apperr.Conflict:
			status = http.StatusConflict
		default:
			// Internal: keep the label but not the cause.
			msg.ErrorMessage = ae.Message
		}
	}

	render.Status(r, status)
	render.JSON(w, r, &Envelope{Success: false, Message: msg})
}

// ErrUnauthorized responds 401 for missing or invalid credentials.
func ErrUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, &Envelope{
		Success: false,
		Message: &Message{
			ErrorType:    "Authentication required",
			ErrorMessage: message,
		},
	})
}

package common

import (
	"encoding/json"
	"io"
	"net/http"

	"flowcanvas/pkg/errors"
	"flowcanvas/pkg/logger"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// WriteJSON writes data wrapped in the success envelope.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	response := NewSuccessResponse(data)
	response.RequestID = chimiddleware.GetReqID(r.Context())
	writeEnvelope(w, status, response)
}

// WriteJSONWithMeta writes data plus pagination metadata.
func WriteJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data, meta any) {
	response := NewSuccessResponse(data)
	response.Meta = meta
	response.RequestID = chimiddleware.GetReqID(r.Context())
	writeEnvelope(w, status, response)
}

// WriteError maps an error to its HTTP status and writes the failure
// envelope. Unknown errors are masked as internal.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errors.GetAppError(err)

	apiErr := &APIError{
		Type:    string(appErr.Type),
		Code:    string(appErr.Code),
		Message: appErr.Message,
	}
	if len(appErr.Context) > 0 {
		apiErr.Details = appErr.Context
	} else if appErr.Details != "" {
		apiErr.Details = appErr.Details
	}

	response := NewErrorResponse(apiErr)
	response.RequestID = chimiddleware.GetReqID(r.Context())
	writeEnvelope(w, appErr.HTTPStatus(), response)
}

func writeEnvelope(w http.ResponseWriter, status int, response *APIResponse) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// DecodeJSON reads a request body into dst, rejecting unknown fields so
// clients cannot smuggle server-owned attributes into updates.
func DecodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxImportSize)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.ValidationError(errors.CodeMissingField, "request body is required")
		}
		return errors.Wrap(err, errors.ErrorTypeValidation, errors.CodeInvalidInput,
			"malformed request body")
	}
	return nil
}

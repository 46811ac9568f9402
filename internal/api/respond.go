package api

import (
	"encoding/json"
	"net/http"

	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

// errorBody is the envelope every failed request returns
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Ticker  string `json:"ticker,omitempty"`
}

// writeJSON serializes v with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps an error to its HTTP status and writes the error
// envelope. ticker is included when the failure is ticker-scoped.
func respondError(w http.ResponseWriter, log *logger.Logger, err error, ticker string) {
	status, short := httpStatus(err)

	if status >= http.StatusInternalServerError {
		log.Errorw("Request failed", "error", err, "ticker", ticker)
	} else {
		log.Debugw("Request rejected", "error", err, "ticker", ticker, "status", status)
	}

	writeJSON(w, status, errorBody{
		Success: false,
		Error:   short,
		Message: err.Error(),
		Ticker:  ticker,
	})
}

// httpStatus maps an error chain to a status code and a short label.
// Vendor 401s surface as 500: a bad API key is a server-side
// misconfiguration, not something the client can fix.
func httpStatus(err error) (int, string) {
	var ve *errors.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, "validation_error"
	}
	if errors.Is(err, errors.ErrInvalidInput) {
		return http.StatusBadRequest, "invalid_input"
	}
	if errors.Is(err, errors.ErrNotFound) {
		return http.StatusNotFound, "not_found"
	}
	if errors.Is(err, errors.ErrVendorRateLimited) {
		return http.StatusTooManyRequests, "vendor_rate_limited"
	}
	if errors.Is(err, errors.ErrVendorUnauthorized) {
		return http.StatusInternalServerError, "vendor_unauthorized"
	}
	if errors.Is(err, errors.ErrVendorTimeout) {
		return http.StatusInternalServerError, "vendor_timeout"
	}

	var vendorErr *errors.VendorError
	if errors.As(err, &vendorErr) {
		if vendorErr.StatusCode >= 400 && vendorErr.StatusCode < 600 {
			return vendorErr.StatusCode, "vendor_error"
		}
		return http.StatusInternalServerError, "vendor_error"
	}

	return http.StatusInternalServerError, "internal_error"
}

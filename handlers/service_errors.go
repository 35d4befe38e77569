package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/tokens"
	"github.com/upb/genai-gateway/utils"
)

// statusForKind maps a failure kind to its HTTP status
var statusForKind = map[providers.Kind]int{
	providers.KindInvalidParams:     http.StatusBadRequest,
	providers.KindInvalidPrompt:     http.StatusBadRequest,
	providers.KindInvalidDimensions: http.StatusBadRequest,
	providers.KindInvalidProvider:   http.StatusBadRequest,
	providers.KindAuthRequired:      http.StatusUnauthorized,
	providers.KindAuthInvalid:       http.StatusUnauthorized,
	providers.KindAuthExpired:       http.StatusUnauthorized,
	providers.KindRateLimited:       http.StatusTooManyRequests,
	providers.KindQuotaExceeded:     http.StatusTooManyRequests,
	providers.KindProviderError:     http.StatusBadGateway,
	providers.KindTimeout:           http.StatusGatewayTimeout,
}

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status, code, details := classifyServiceError(err)
	if retry, ok := details["retry_after_seconds"].(int); ok && retry > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("unhandled error type", zap.Error(err))
		message = "An unexpected error occurred"
	} else {
		logger.Debug("handled service error",
			zap.Int("status", status),
			zap.String("code", code),
			zap.Error(err))
	}

	if werr := utils.WriteError(w, status, code, message, details); werr != nil {
		logger.Error("failed to write error response", zap.Error(werr))
	}
}

func classifyServiceError(err error) (int, string, map[string]interface{}) {
	var provErr *providers.Error
	if errors.As(err, &provErr) {
		status, ok := statusForKind[provErr.Kind]
		if !ok {
			status = http.StatusBadGateway
		}
		details := provErr.Details()
		if len(details) == 0 {
			details = nil
		}
		return status, string(provErr.Kind), details
	}

	switch {
	case errors.Is(err, tokens.ErrNoTokens):
		return http.StatusUnauthorized, string(providers.KindAuthRequired), nil
	case errors.Is(err, tokens.ErrAllTokensExhausted), errors.Is(err, tokens.ErrMaxRetries):
		return http.StatusTooManyRequests, string(providers.KindQuotaExceeded), nil
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, string(providers.KindTimeout), nil
	case errors.Is(err, context.Canceled):
		// client went away; the status is only seen by logs and metrics
		return 499, "canceled", nil
	}
	return http.StatusInternalServerError, "internal_error", nil
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsBodyTooLarge(err) {
		if werr := utils.WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", nil); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields)+1)
		for k, v := range fields {
			details[k] = v
		}
		if field := utils.FirstField(err); field != "" {
			details["field"] = field
		}
		if werr := utils.WriteBadRequest(w, string(providers.KindInvalidParams), err.Error(), details); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	// Generic validation error
	if werr := utils.WriteBadRequest(w, string(providers.KindInvalidParams), "Invalid JSON body", map[string]interface{}{"field": "body"}); werr != nil {
		logger.Error("failed to write validation error response", zap.Error(werr))
	}
}

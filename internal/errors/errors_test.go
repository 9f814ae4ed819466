package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestTaxonomyStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		typ  ErrorType
		code int
	}{
		{"unsupported format", NewUnsupportedFormatError("bad type", nil), ErrorTypeUnsupportedFormat, http.StatusUnsupportedMediaType},
		{"decode", NewDecodeError("bad bytes", nil), ErrorTypeDecode, http.StatusBadRequest},
		{"payload too large", NewPayloadTooLargeError("too big", nil), ErrorTypePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"engine timeout", NewEngineTimeoutError("slow", nil), ErrorTypeEngineTimeout, http.StatusGatewayTimeout},
		{"engine", NewEngineError("broken", nil), ErrorTypeEngine, http.StatusInternalServerError},
		{"saturated", NewSaturatedError("full", nil), ErrorTypeSaturated, http.StatusTooManyRequests},
		{"validation", NewValidationError("bad input", nil), ErrorTypeValidation, http.StatusBadRequest},
		{"network", NewNetworkError("unreachable", nil), ErrorTypeNetwork, http.StatusBadGateway},
		{"internal", NewInternalError("oops", nil), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.typ {
				t.Errorf("expected type %s, got %s", tt.typ, tt.err.Type)
			}
			if tt.err.StatusCode != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, tt.err.StatusCode)
			}
			if !IsType(tt.err, tt.typ) {
				t.Errorf("IsType should match %s", tt.typ)
			}
		})
	}
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewDecodeError("cannot decode", cause)

	if got := err.Error(); got != "decode_error: cannot decode (caused by: root cause)" {
		t.Errorf("unexpected Error(): %s", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}

	bare := NewEngineError("fatal", nil)
	if got := bare.Error(); got != "engine_error: fatal" {
		t.Errorf("unexpected Error(): %s", got)
	}
}

func TestGetStatusCode_Fallback(t *testing.T) {
	if got := GetStatusCode(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("expected 500 for non-AppError, got %d", got)
	}
	if got := GetStatusCode(NewPayloadTooLargeError("big", nil)); got != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", got)
	}
}

func TestIsType_NonAppError(t *testing.T) {
	if IsType(errors.New("plain"), ErrorTypeInternal) {
		t.Error("plain errors should never match a taxonomy type")
	}
}

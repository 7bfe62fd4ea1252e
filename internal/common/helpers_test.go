package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumSeparatesParts(t *testing.T) {
	require.Len(t, Checksum("x"), 64)
	require.Equal(t, Checksum("a", "b"), Checksum("a", "b"))
	require.NotEqual(t, Checksum("ab", "c"), Checksum("a", "bc"))
}

func TestClientIPStripsPort(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	require.Equal(t, "203.0.113.7", ClientIP(r))

	r.RemoteAddr = "203.0.113.8"
	require.Equal(t, "203.0.113.8", ClientIP(r))
}

func TestAppErrorRenderFallbacks(t *testing.T) {
	rec := httptest.NewRecorder()
	appErr := &AppError{Err: errors.New("boom")}
	appErr.Render(rec, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE")

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "UPSTREAM_UNAVAILABLE", body.Error.Code)
	require.Equal(t, http.StatusText(http.StatusBadGateway), body.Error.Message)
}

func TestValidationCarriesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	Validation("form is invalid", map[string]string{"phone": "is required"}).Render(rec, http.StatusBadRequest, "BAD_REQUEST")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Equal(t, "is required", body.Error.Details["phone"])
}

func TestDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Data(rec, http.StatusCreated, map[string]int{"n": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"data":{"n":1}}`, rec.Body.String())
}

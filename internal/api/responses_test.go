package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// jsonBody builds an *http.Request body reader from v, for POST/PUT test requests.
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, "did the thing")

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body MutatingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, "did the thing", body.Message)
	require.Empty(t, body.Error)
}

func TestWriteErrorWithCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorWithCode(rec, 403, ErrForbidden, "invalid admin PIN")

	require.Equal(t, 403, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])
	require.Equal(t, string(ErrForbidden), body["code"])
	require.Equal(t, "invalid admin PIN", body["error"])
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes_valid_body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", jsonBody(t, map[string]string{"a": "b"}))
		var v map[string]string
		require.NoError(t, DecodeJSON(req, &v))
		require.Equal(t, "b", v["a"])
	})

	t.Run("nil_body_is_an_error", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", nil)
		req.Body = nil
		var v map[string]string
		require.Error(t, DecodeJSON(req, &v))
	})
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest("GET", "/?device=abc123&tank=2&since=1700000000.5", nil)

	device, ok := QueryString(req, "device")
	require.True(t, ok)
	require.Equal(t, "abc123", device)

	_, ok = QueryString(req, "missing")
	require.False(t, ok)

	tank, ok := QueryInt(req, "tank")
	require.True(t, ok)
	require.Equal(t, 2, tank)

	_, ok = QueryInt(req, "device") // not numeric
	require.False(t, ok)

	since, ok := QueryEpoch(req, "since")
	require.True(t, ok)
	require.InDelta(t, 1700000000.5, since, 0.001)
}

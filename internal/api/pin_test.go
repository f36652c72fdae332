package api

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPINStoreBootstrapAndRotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin-pin.sha256")

	store, err := NewPINStore("", path)
	require.NoError(t, err)
	require.False(t, store.Configured())

	require.NoError(t, store.Set("", "1234"))
	require.True(t, store.Configured())
	require.True(t, store.Verify("1234"))
	require.False(t, store.Verify("0000"))

	require.Error(t, store.Set("wrong", "5678"), "rotating requires the current PIN")
	require.NoError(t, store.Set("1234", "5678"))
	require.True(t, store.Verify("5678"))
	require.False(t, store.Verify("1234"), "old pin no longer verifies after rotation")
}

func TestPINStorePersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin-pin.sha256")

	first, err := NewPINStore("4242", path)
	require.NoError(t, err)
	require.True(t, first.Configured())

	_, err = os.Stat(path)
	require.NoError(t, err, "digest should be persisted to disk")

	second, err := NewPINStore("", path)
	require.NoError(t, err)
	require.True(t, second.Configured())
	require.True(t, second.Verify("4242"))
}

func TestPINHandlerSetPIN(t *testing.T) {
	pins := newTestPINStore(t, "")
	h := NewPINHandler(pins)

	t.Run("first_run_sets_pin_unconditionally", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/pin", jsonBody(t, pinRequest{NewPIN: "1111"}))
		h.SetPIN(rec, req)
		require.Equal(t, 200, rec.Code)
		require.True(t, pins.Verify("1111"))
	})

	t.Run("verify_only_call_checks_existing_pin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/pin", jsonBody(t, pinRequest{PIN: "1111"}))
		h.SetPIN(rec, req)
		require.Equal(t, 200, rec.Code)
	})

	t.Run("invalid_new_pin_is_rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/pin", jsonBody(t, pinRequest{PIN: "1111", NewPIN: "12"}))
		h.SetPIN(rec, req)
		require.Equal(t, 400, rec.Code)
	})

	t.Run("rotation_with_wrong_current_pin_is_forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/pin", jsonBody(t, pinRequest{PIN: "9999", NewPIN: "2222"}))
		h.SetPIN(rec, req)
		require.Equal(t, 403, rec.Code)
	})
}

package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
)

// PINStore guards the admin PIN used by every mutating endpoint (spec §6).
// The PIN is never held in memory as plaintext once set via POST /api/pin;
// it is compared and persisted as a SHA-256 digest.
type PINStore struct {
	mu       sync.RWMutex
	digest   string // hex SHA-256, "" if unconfigured
	diskPath string
}

// NewPINStore builds a PINStore seeded from bootPIN (e.g. config.AdminPIN,
// or a freshly generated one on first run) and backed by diskPath for
// restart continuity. An empty bootPIN with no file on disk leaves the
// store unconfigured.
func NewPINStore(bootPIN, diskPath string) (*PINStore, error) {
	s := &PINStore{diskPath: diskPath}
	if b, err := os.ReadFile(diskPath); err == nil {
		s.digest = string(b)
		return s, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	if bootPIN != "" {
		if err := s.setDigest(hashPIN(bootPIN)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func hashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// Configured reports whether an admin PIN has ever been set.
func (s *PINStore) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.digest != ""
}

// Verify reports whether pin matches the configured PIN.
func (s *PINStore) Verify(pin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashPIN(pin)), []byte(s.digest)) == 1
}

// Set changes the PIN. If the store is already configured, currentPIN must
// verify first; an unconfigured store accepts any first PIN unconditionally.
func (s *PINStore) Set(currentPIN, newPIN string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.digest != "" && subtle.ConstantTimeCompare([]byte(hashPIN(currentPIN)), []byte(s.digest)) != 1 {
		return fmt.Errorf("current PIN does not match")
	}
	return s.setDigest(hashPIN(newPIN))
}

func (s *PINStore) setDigest(digest string) error {
	if s.diskPath != "" {
		if err := os.WriteFile(s.diskPath, []byte(digest), 0600); err != nil {
			return err
		}
	}
	s.digest = digest
	return nil
}

// pinRequest is the POST /api/pin body: set a PIN for the first time (pin
// only), or change one (pin = current, newPin = desired).
type pinRequest struct {
	PIN    string `json:"pin"`
	NewPIN string `json:"newPin"`
}

func isValidPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// PINHandler handles POST /api/pin: set (first run), change, or verify.
type PINHandler struct {
	pins *PINStore
}

func NewPINHandler(pins *PINStore) *PINHandler {
	return &PINHandler{pins: pins}
}

// SetPIN implements POST /api/pin. This endpoint is intentionally exempt
// from PINAuth's own gate (bootstrap and rotation would otherwise be
// impossible); it gates itself via PINStore.Set.
func (h *PINHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := DecodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorWithCode(w, http.StatusRequestEntityTooLarge, ErrInvalidBody, "request body too large")
			return
		}
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "malformed JSON body")
		return
	}

	if req.NewPIN == "" {
		// Verify-only call: {"pin": "1234"}.
		if h.pins.Verify(req.PIN) {
			WriteSuccess(w, "pin verified")
			return
		}
		WriteErrorWithCode(w, http.StatusForbidden, ErrForbidden, "invalid admin PIN")
		return
	}

	if !isValidPIN(req.NewPIN) {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "newPin must be exactly 4 digits")
		return
	}
	if err := h.pins.Set(req.PIN, req.NewPIN); err != nil {
		WriteErrorWithCode(w, http.StatusForbidden, ErrForbidden, err.Error())
		return
	}
	WriteSuccess(w, "pin updated")
}

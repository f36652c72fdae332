package api

import (
	"net/http"

	"github.com/coldbrook/fleetwatch/internal/calib"
)

// CalibrationHandler serves the learned per-tank calibration params and
// accepts manual readings that feed the regression.
type CalibrationHandler struct {
	calib *calib.Store
}

func NewCalibrationHandler(store *calib.Store) *CalibrationHandler {
	return &CalibrationHandler{calib: store}
}

// Get implements GET /api/calibration?device=<uid>&tank=<n>.
func (h *CalibrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	device, ok := QueryString(r, "device")
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "device is required")
		return
	}
	tank, ok := QueryInt(r, "tank")
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "tank is required")
		return
	}

	params, _ := h.calib.Lookup(device, tank)
	entries := h.calib.Entries(device, tank)
	WriteJSON(w, http.StatusOK, map[string]any{
		"params":  params,
		"entries": entries,
	})
}

// calibrationSubmission is the POST /api/calibration request body.
type calibrationSubmission struct {
	Device         string  `json:"device"`
	Tank           int     `json:"tank"`
	SensorReading  float64 `json:"sensorReading"`
	VerifiedLevel  float64 `json:"verifiedLevel"`
	Notes          string  `json:"notes"`
	ConfigMaxValue float64 `json:"configMaxValue"`
}

// Submit implements POST /api/calibration: one manual reading, per spec §4.4.
func (h *CalibrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body calibrationSubmission
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if body.Device == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "device is required")
		return
	}

	entry := calib.Entry{
		Epoch:         nowEpoch(),
		DeviceUID:     body.Device,
		TankNumber:    body.Tank,
		SensorReading: body.SensorReading,
		VerifiedLevel: body.VerifiedLevel,
		Notes:         body.Notes,
	}
	params, err := h.calib.Submit(entry, body.ConfigMaxValue)
	if err != nil {
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrCapacityExhausted, "calibration log full")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"params":  params,
	})
}

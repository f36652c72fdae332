package api

import (
	"net/http"

	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/decode"
	"github.com/coldbrook/fleetwatch/internal/ingest"
)

// ConfigHandler implements POST /api/config: dispatches a per-device
// configuration to device:<uid>:config.qi and mirrors it into the local
// cache so the decoder picks it up without waiting for a device ack.
type ConfigHandler struct {
	bus    bus.Adapter
	config *ingest.ConfigCache
}

func NewConfigHandler(adapter bus.Adapter, cache *ingest.ConfigCache) *ConfigHandler {
	return &ConfigHandler{bus: adapter, config: cache}
}

// tankConfigSubmission is one tank's entry in the POST /api/config body.
type tankConfigSubmission struct {
	Tank        int     `json:"tank"`
	SubType     string  `json:"subType"`
	RangeMin    float64 `json:"rangeMin"`
	RangeMax    float64 `json:"rangeMax"`
	MountHeight float64 `json:"mountHeight"`
	VMin        float64 `json:"vMin"`
	VMax        float64 `json:"vMax"`
}

// configSubmission is the POST /api/config request body: dispatches a
// full per-device configuration, replacing whatever the cache held.
type configSubmission struct {
	Device string                 `json:"device"`
	Site   string                 `json:"site"`
	Tanks  []tankConfigSubmission `json:"tanks"`
}

// Dispatch implements POST /api/config.
func (h *ConfigHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var body configSubmission
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if body.Device == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "device is required")
		return
	}

	cached := ingest.DeviceConfig{Site: body.Site, Tanks: make(map[int]decode.Config, len(body.Tanks))}
	wire := make([]map[string]any, 0, len(body.Tanks))
	for _, t := range body.Tanks {
		cached.Tanks[t.Tank] = decode.Config{
			Present:     true,
			SubType:     decode.SubType(t.SubType),
			RangeMin:    t.RangeMin,
			RangeMax:    t.RangeMax,
			MountHeight: t.MountHeight,
			VMin:        t.VMin,
			VMax:        t.VMax,
		}
		wire = append(wire, map[string]any{
			"tank":        t.Tank,
			"subType":     t.SubType,
			"rangeMin":    t.RangeMin,
			"rangeMax":    t.RangeMax,
			"mountHeight": t.MountHeight,
			"vMin":        t.VMin,
			"vMax":        t.VMax,
		})
	}

	wireBody := map[string]any{"site": body.Site, "tanks": wire}
	if err := h.bus.Enqueue(r.Context(), bus.DeviceFile(body.Device, "config.qi"), wireBody, true); err != nil {
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrUpstreamFailure, "config dispatch failed")
		return
	}

	h.config.Set(body.Device, cached)
	WriteSuccess(w, "configuration dispatched")
}

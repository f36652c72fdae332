package alert

import (
	"context"

	"github.com/coldbrook/fleetwatch/internal/bus"
)

// Outbound command router (spec overview item c): thin, stateless wrappers
// addressing a single device's per-client notefiles. Like SMS (and unlike
// email), these are enqueued synchronously — the HTTP caller wants to know
// the enqueue landed before it responds.

// DispatchConfig pushes a device configuration to device:<uid>:config.qi.
func DispatchConfig(ctx context.Context, adapter bus.Adapter, deviceUID string, config map[string]any) error {
	return adapter.Enqueue(ctx, bus.DeviceFile(deviceUID, "config.qi"), config, true)
}

// DispatchRelay enqueues an explicit relay command, per spec §6/§9 (a
// "cmd" discriminator distinguishes this from DispatchRelayReset on the
// shared relay.qi queue).
func DispatchRelay(ctx context.Context, adapter bus.Adapter, deviceUID, relay string, state bool, source string) error {
	body := map[string]any{
		"cmd":    "relay",
		"relay":  relay,
		"state":  state,
		"source": source,
	}
	return adapter.Enqueue(ctx, bus.DeviceFile(deviceUID, "relay.qi"), body, true)
}

// DispatchRelayReset enqueues a tank-scoped relay reset command on the same
// queue as DispatchRelay, discriminated by "cmd":"relay_reset".
func DispatchRelayReset(ctx context.Context, adapter bus.Adapter, deviceUID string, relayResetTank int, source string) error {
	body := map[string]any{
		"cmd":              "relay_reset",
		"relay_reset_tank": relayResetTank,
		"source":           source,
	}
	return adapter.Enqueue(ctx, bus.DeviceFile(deviceUID, "relay.qi"), body, true)
}

// DispatchSerialRequest asks a device to send its serial log.
func DispatchSerialRequest(ctx context.Context, adapter bus.Adapter, deviceUID string, timestamp float64) error {
	body := map[string]any{"request": "send_logs", "timestamp": timestamp}
	return adapter.Enqueue(ctx, bus.DeviceFile(deviceUID, "serial_request.qi"), body, true)
}

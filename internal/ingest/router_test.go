package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldbrook/fleetwatch/internal/bus"
)

func TestRouteMatchesEveryInboundFile(t *testing.T) {
	want := map[string]HandlerName{
		bus.FileTelemetry: HandlerTelemetry,
		bus.FileAlarm:     HandlerAlarm,
		bus.FileDaily:     HandlerDaily,
		bus.FileUnload:    HandlerUnload,
		bus.FileSerialLog: HandlerSerialLog,
		bus.FileSerialAck: HandlerSerialAck,
	}

	require.Len(t, bus.InboundFiles, len(want), "InboundFiles and the route table must cover the same set")

	for _, name := range bus.InboundFiles {
		h, ok := Route(name)
		require.True(t, ok, "expected a route for %q", name)
		require.Equal(t, want[name], h)
	}
}

func TestRouteUnknownFileIsNotFound(t *testing.T) {
	_, ok := Route("relay.qi")
	require.False(t, ok, "relay.qi is outbound-only and never dispatched through Route")
}

package bus

import (
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/rs/zerolog"
)

// EmbeddedBroker runs a local MQTT broker in-process, standing in for the
// modem sidecar in standalone or development deployments where there is no
// external cloud broker to relay through. MQTTClient then connects to it
// over loopback like it would any other broker.
type EmbeddedBroker struct {
	server *mochi.Server
	log    zerolog.Logger
}

// NewEmbeddedBroker starts listening on addr (e.g. ":1883").
func NewEmbeddedBroker(addr string, log zerolog.Logger) (*EmbeddedBroker, error) {
	server := mochi.New(nil)
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "fleet-local", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, err
	}

	b := &EmbeddedBroker{server: server, log: log}
	go func() {
		if err := server.Serve(); err != nil {
			b.log.Error().Err(err).Msg("bus: embedded broker stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("bus: embedded local broker listening")
	return b, nil
}

// Close stops the broker and closes its listeners.
func (b *EmbeddedBroker) Close() error {
	return b.server.Close()
}

package ingest

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coldbrook/fleetwatch/internal/decode"
)

// DeviceConfig is the cached device-config snapshot consumed by the sensor
// decoder: the opaque per-tank decode configuration plus the extracted site
// name, mirroring whatever the server last dispatched to the device (or
// restored from backup). Never mutated except by an outbound config
// dispatch (see alert.DispatchConfig).
type DeviceConfig struct {
	Site string
	Tanks map[int]decode.Config
}

// ConfigCache holds one DeviceConfig per deviceUid, in memory, mirrored to
// disk as tab-delimited "uid\t<json>\n" lines.
type ConfigCache struct {
	mu   sync.RWMutex
	data map[string]DeviceConfig
	log  zerolog.Logger
}

// NewConfigCache builds an empty cache.
func NewConfigCache(log zerolog.Logger) *ConfigCache {
	return &ConfigCache{data: make(map[string]DeviceConfig), log: log}
}

// Get returns the cached config for deviceUid, if any.
func (c *ConfigCache) Get(deviceUID string) (DeviceConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.data[deviceUID]
	return d, ok
}

// TankConfig returns the decode.Config for one tank, or a zero-value
// (Present=false) config if the device or tank is uncached.
func (c *ConfigCache) TankConfig(deviceUID string, tank int) decode.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.data[deviceUID]
	if !ok {
		return decode.Config{}
	}
	cfg, ok := d.Tanks[tank]
	if !ok {
		return decode.Config{}
	}
	return cfg
}

// Set replaces the cached config for deviceUid, e.g. after a dispatched
// config is accepted by the device.
func (c *ConfigCache) Set(deviceUID string, cfg DeviceConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[deviceUID] = cfg
}

// Save mirrors the full cache to path as tab-delimited lines.
func (c *ConfigCache) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for uid, cfg := range c.data {
		blob, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		if _, err := w.WriteString(uid + "\t" + string(blob) + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// LoadConfigCache restores a cache previously written by Save. Truncated or
// malformed lines are skipped with a logged warning.
func LoadConfigCache(path string, log zerolog.Logger) (*ConfigCache, error) {
	c := NewConfigCache(log)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		uid, blob, ok := strings.Cut(line, "\t")
		if !ok {
			log.Warn().Str("line", line).Msg("config cache: skipping truncated line")
			continue
		}
		var cfg DeviceConfig
		if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
			log.Warn().Err(err).Str("device", uid).Msg("config cache: skipping malformed entry")
			continue
		}
		c.data[uid] = cfg
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

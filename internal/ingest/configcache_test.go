package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/coldbrook/fleetwatch/internal/decode"
)

func TestConfigCacheGetSetTankConfig(t *testing.T) {
	c := NewConfigCache(zerolog.Nop())

	_, ok := c.Get("dev:1")
	require.False(t, ok)
	require.False(t, c.TankConfig("dev:1", 1).Present)

	c.Set("dev:1", DeviceConfig{
		Site: "north lot",
		Tanks: map[int]decode.Config{
			1: {Present: true, SubType: decode.SubTypePressure, RangeMin: 0, RangeMax: 100},
		},
	})

	got, ok := c.Get("dev:1")
	require.True(t, ok)
	require.Equal(t, "north lot", got.Site)

	cfg := c.TankConfig("dev:1", 1)
	require.True(t, cfg.Present)
	require.Equal(t, decode.SubTypePressure, cfg.SubType)

	require.False(t, c.TankConfig("dev:1", 2).Present, "uncached tank number yields a zero-value config")
}

func TestConfigCacheSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device-config-cache.tsv")

	c := NewConfigCache(zerolog.Nop())
	c.Set("dev:1", DeviceConfig{
		Site: "north lot",
		Tanks: map[int]decode.Config{
			1: {Present: true, SubType: decode.SubTypeUltrasonic, MountHeight: 12.5},
			2: {Present: true, VMin: 0.5, VMax: 4.5},
		},
	})
	c.Set("dev:2", DeviceConfig{Site: "south lot"})

	require.NoError(t, c.Save(path))

	loaded, err := LoadConfigCache(path, zerolog.Nop())
	require.NoError(t, err)

	got1, ok := loaded.Get("dev:1")
	require.True(t, ok)
	require.Equal(t, "north lot", got1.Site)
	require.Equal(t, decode.SubTypeUltrasonic, got1.Tanks[1].SubType)
	require.InDelta(t, 12.5, got1.Tanks[1].MountHeight, 0.001)
	require.InDelta(t, 4.5, got1.Tanks[2].VMax, 0.001)

	got2, ok := loaded.Get("dev:2")
	require.True(t, ok)
	require.Equal(t, "south lot", got2.Site)
}

func TestLoadConfigCacheMissingFileReturnsEmptyCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.tsv")
	c, err := LoadConfigCache(path, zerolog.Nop())
	require.NoError(t, err)
	_, ok := c.Get("anything")
	require.False(t, ok)
}

func TestLoadConfigCacheSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device-config-cache.tsv")
	contents := "dev:1\t{\"Site\":\"ok\",\"Tanks\":{}}\n" +
		"no-tab-here\n" +
		"dev:2\tnot-json\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	c, err := LoadConfigCache(path, zerolog.Nop())
	require.NoError(t, err)

	got, ok := c.Get("dev:1")
	require.True(t, ok)
	require.Equal(t, "ok", got.Site)

	_, ok = c.Get("dev:2")
	require.False(t, ok, "malformed JSON line should be skipped, not cached")
}

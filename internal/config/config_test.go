package config_test

import (
	"testing"
	"time"

	"github.com/mauriceling/serebo/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SEREBO_BLACKBOX_PATH", "")
	t.Setenv("SEREBO_NOTARY_URL", "")
	t.Setenv("SEREBO_SELFSIGN_INTERVAL", "")

	cfg := config.Load()
	require.Equal(t, config.DefaultBlackboxPath, cfg.BlackboxPath)
	require.Equal(t, config.DefaultNotaryURL, cfg.NotaryURL)
	require.Equal(t, config.DefaultSelfSignInterval, cfg.SelfSignInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SEREBO_BLACKBOX_PATH", "/tmp/bb.sdb")
	t.Setenv("SEREBO_NOTARY_URL", "http://localhost:9999/rpc")
	t.Setenv("SEREBO_SELFSIGN_INTERVAL", "15m")

	cfg := config.Load()
	require.Equal(t, "/tmp/bb.sdb", cfg.BlackboxPath)
	require.Equal(t, "http://localhost:9999/rpc", cfg.NotaryURL)
	require.Equal(t, 15*time.Minute, cfg.SelfSignInterval)
}

func TestLoad_MalformedIntervalFallsBack(t *testing.T) {
	for _, v := range []string{"soon", "-5m", "0"} {
		t.Setenv("SEREBO_SELFSIGN_INTERVAL", v)
		require.Equal(t, config.DefaultSelfSignInterval, config.Load().SelfSignInterval, "value %q", v)
	}
}

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(args ...string) (int, string) {
	var out bytes.Buffer
	code := execute(context.Background(), args, &out, &out)
	return code, out.String()
}

func TestUsageErrorsExitTwo(t *testing.T) {
	for _, args := range [][]string{
		{"rx", "--bogus"},
		{"rx", "--freq", "not-a-number"},
		{"rx", "extra"},
		{"rx", "--pilots=false"},
		{"nope"},
	} {
		code, out := run(args...)
		assert.Equal(t, exitUsage, code, "%v", args)
		assert.Contains(t, out, "Usage:", "%v", args)
	}
}

func TestMissingConfigExitsOne(t *testing.T) {
	code, out := run("tx", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Equal(t, exitFailure, code)
	assert.NotContains(t, out, "Usage:")
}

func TestHelpExitsZero(t *testing.T) {
	code, out := run("tx", "--help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "--pilots")
	assert.Contains(t, out, "8PSK5/6")
}

func TestParametersKeepFileDefaults(t *testing.T) {
	root, _ := newRootCmd()
	tx, _, err := root.Find([]string{"tx"})
	require.NoError(t, err)
	require.NoError(t, tx.ParseFlags([]string{"--freq", "1.2e9", "--pilots=false"}))

	defaults := config.Default().Transmit
	defaults.Gain = 12
	defaults.Port = 6000

	p, err := parameters(tx.Flags(), defaults)
	require.NoError(t, err)

	assert.Equal(t, 1.2e9, p.Freq)
	assert.False(t, p.Pilots)
	// Not given on the command line, so the file values win over the flag defaults
	assert.Equal(t, 12.0, p.Gain)
	assert.Equal(t, 6000, p.Port)
	assert.Equal(t, defaults.ModCod, p.ModCod)
}

func TestReceiveHasNoPilotsFlag(t *testing.T) {
	root, _ := newRootCmd()
	rx, _, err := root.Find([]string{"rx"})
	require.NoError(t, err)
	require.NoError(t, rx.ParseFlags([]string{"--modcod", "8PSK2/3"}))

	p, err := parameters(rx.Flags(), config.Default().Receive)
	require.NoError(t, err)
	assert.Equal(t, "8PSK2/3", p.ModCod)
	assert.Nil(t, rx.Flags().Lookup("pilots"))
}

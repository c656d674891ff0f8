package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sigreer/astrogod/internal/config"
	"github.com/sigreer/astrogod/internal/indi"
)

func TestAPIBase(t *testing.T) {
	cfg := &config.Config{API: config.API{Listen: ":8624"}}
	assert.Equal(t, "http://localhost:8624/api", apiBase(cfg))

	cfg.API.Listen = "10.0.0.5:9000"
	assert.Equal(t, "http://10.0.0.5:9000/api", apiBase(cfg))
}

func TestParseProperty(t *testing.T) {
	assert.Equal(t, indi.Property{Device: "ZWO CCD ASI294MC Pro", Name: "CCD_EXPOSURE"},
		parseProperty("ZWO CCD ASI294MC Pro.CCD_EXPOSURE"))
	assert.Equal(t, indi.Property{Device: "EQMod v1.2", Name: "CONNECTION"},
		parseProperty("EQMod v1.2.CONNECTION"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "scan", "usb", "kb", "drivers", "setup", "status", "history", "prop", "version"} {
		assert.True(t, names[want], want)
	}
}

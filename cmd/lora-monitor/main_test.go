package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	if args == nil {
		// nil makes cobra fall back to os.Args
		args = []string{}
	}
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestDecodeCommand(t *testing.T) {
	out := execute(t, "", "decode", "QAEBAgMEBQYHCAkKCwwNDg8=")
	assert.Contains(t, out, "DevAddr: 01010203")
	assert.Contains(t, out, "FCnt: 1541")
	assert.Contains(t, out, "Port: none")
}

func TestDecodeCommandRejectsBadPayload(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"decode", "QAEC"})
	assert.Error(t, rootCmd.Execute())
}

func TestMonitorPrintsSummary(t *testing.T) {
	out := execute(t, "gateway booting\nnothing to see\n")
	assert.Contains(t, out, "SESSION STATISTICS")
	assert.Contains(t, out, "Lines read: 2")
	assert.Contains(t, out, "Total packets: 0")
}

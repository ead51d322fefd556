package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTestbed = `
devices:
  DESKTOP:
    os: linux
    host: 10.0.0.5
    username: operator
    password: ${DESKTOP_TEST_PASSWORD}
    allow_redirection: true
    supported_commands:
      - ifconfig
      - "ifconfig {interface}"
      - "ps -ef | grep {grep}"
  PC1:
    os: linux
    host: 10.0.0.6
    port: 2222
    username: operator
    password: secret
`

func TestParse(t *testing.T) {
	t.Setenv("DESKTOP_TEST_PASSWORD", "hunter2")

	tb, err := Parse([]byte(sampleTestbed))
	require.NoError(t, err)

	desktop, err := tb.Get("DESKTOP")
	require.NoError(t, err)
	assert.Equal(t, "DESKTOP", desktop.Name)
	assert.Equal(t, 22, desktop.Port, "default port")
	assert.Equal(t, "hunter2", desktop.Password)
	assert.Len(t, desktop.SupportedCommands, 3)

	pc1, err := tb.Get("PC1")
	require.NoError(t, err)
	assert.Equal(t, 2222, pc1.Port)
	assert.False(t, pc1.AllowRedirection)

	assert.Equal(t, []string{"DESKTOP", "PC1"}, tb.Names())
}

func TestParse_UnknownDevice(t *testing.T) {
	tb, err := Parse([]byte(sampleTestbed))
	require.NoError(t, err)

	_, err = tb.Get("ROUTER9")
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("devices: {}"))
	assert.Error(t, err)
}

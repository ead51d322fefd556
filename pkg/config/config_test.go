package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
agents:
  DESKTOP:
    description: Ubuntu desktop host
    device: DESKTOP
    tools: [execute_structured_command, execute_raw_command]
  cmdb:
    description: CMDB operations
    service: cmdb
    tools: [cmdb_get, cmdb_create, cmdb_delete]
`

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "gpt-4o", cfg.Reasoner.Model)
	assert.Equal(t, cfg.Reasoner.Model, cfg.Reasoner.VisionModel)
	assert.Equal(t, 12, cfg.Install.Attempts)
	assert.Equal(t, 10*time.Second, cfg.Install.Interval)
	assert.Equal(t, 300*time.Second, cfg.Install.ExecuteTimeout)
	assert.Equal(t, DefaultMaxIterations, cfg.Agents["DESKTOP"].MaxIterations)
	assert.Equal(t, DefaultMaxIterations, cfg.Router.MaxIterations)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestParseConfig_EnvExpansion(t *testing.T) {
	t.Setenv("NETAGENT_TEST_TOKEN", "secret-token")

	cfg, err := ParseConfig([]byte(minimalConfig + `
cmdb:
  base_url: https://netbox.example.com
  token: ${NETAGENT_TEST_TOKEN}
ticketing:
  password: ${NETAGENT_MISSING_VAR:-fallback}
`))
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.CMDB.Token)
	assert.Equal(t, "fallback", cfg.Ticketing.Password)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no agents", `logging: {level: info}`},
		{
			"agent without target",
			"agents:\n  broken:\n    tools: [cmdb_get]\n",
		},
		{
			"agent with both targets",
			"agents:\n  broken:\n    device: A\n    service: cmdb\n    tools: [cmdb_get]\n",
		},
		{
			"agent with no tools",
			"agents:\n  broken:\n    device: A\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestExpandEnvVars_LeavesShellTextAlone(t *testing.T) {
	// $PATH style references in command examples must survive expansion.
	in := "echo $HOSTNAME > /tmp/out"
	assert.Equal(t, in, ExpandEnvVars(in))
}

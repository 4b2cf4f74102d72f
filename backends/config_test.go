package backends_test

import (
	"testing"

	"github.com/effective-security/mcpchat/backends"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadConfig(t *testing.T) {
	cfg, err := backends.LoadConfig("testdata/servers.yaml")
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 3)

	assert.Equal(t, []string{"echo", "files", "weather"}, cfg.ServerNames())

	files := cfg.Servers["files"]
	require.NotNil(t, files)
	assert.Equal(t, "servers/files.py", files.Script)

	weather := cfg.Servers["weather"]
	require.NotNil(t, weather)
	assert.Equal(t, "node", weather.Command)
	assert.Equal(t, []string{"servers/weather.js"}, weather.Args)
	assert.Equal(t, []string{"WEATHER_UNITS=metric"}, weather.Environ())

	cfg, err = backends.LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Servers)
}

func Test_ServerSpec_LaunchCommand(t *testing.T) {
	tcases := []struct {
		name    string
		spec    backends.ServerSpec
		command string
		args    []string
		err     string
	}{
		{
			name:    "python script",
			spec:    backends.ServerSpec{Script: "tools/files.py"},
			command: "python3",
			args:    []string{"tools/files.py"},
		},
		{
			name:    "node script",
			spec:    backends.ServerSpec{Script: "tools/weather.js"},
			command: "node",
			args:    []string{"tools/weather.js"},
		},
		{
			name:    "binary script",
			spec:    backends.ServerSpec{Script: "bin/server"},
			command: "bin/server",
		},
		{
			name:    "explicit command wins",
			spec:    backends.ServerSpec{Script: "x.py", Command: "uv", Args: []string{"run", "x.py"}},
			command: "uv",
			args:    []string{"run", "x.py"},
		},
		{
			name: "empty spec",
			spec: backends.ServerSpec{},
			err:  "server spec requires either script or command",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			command, args, err := tc.spec.LaunchCommand()
			if tc.err != "" {
				assert.EqualError(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.command, command)
			assert.Equal(t, tc.args, args)
		})
	}
}

func Test_ServerSpec_Environ(t *testing.T) {
	spec := backends.ServerSpec{
		Env: map[string]string{
			"B_VAR": "2",
			"A_VAR": "1",
		},
	}
	assert.Equal(t, []string{"A_VAR=1", "B_VAR=2"}, spec.Environ())

	empty := backends.ServerSpec{}
	assert.Nil(t, empty.Environ())
}

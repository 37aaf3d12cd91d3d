package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"populate", "session", "template", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "exa-sheets", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	for _, name := range []string{"offline", "quiet"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestSessionCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range sessionCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"start", "sample", "fill", "show", "export", "list", "reset", "delete"} {
		assert.True(t, names[name], "expected session subcommand %q not found", name)
	}
}

func TestPopulateCommand_Flags(t *testing.T) {
	input := populateCmd.Flags().Lookup("input")
	require.NotNil(t, input)

	output := populateCmd.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "output.xlsx", output.DefValue)

	concurrency := populateCmd.Flags().Lookup("concurrency")
	require.NotNil(t, concurrency)
	assert.Equal(t, "0", concurrency.DefValue)
}

func TestSessionCommands_Flags(t *testing.T) {
	tests := []struct {
		cmd  string
		flag string
		def  string
	}{
		{"sample", "rows", "0"},
		{"show", "format", "table"},
		{"show", "limit", "0"},
		{"export", "output", "output.xlsx"},
		{"list", "limit", "50"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.flag, func(t *testing.T) {
			c, _, err := sessionCmd.Find([]string{tt.cmd})
			require.NoError(t, err)
			f := c.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestTemplateCommand_Flags(t *testing.T) {
	flag := templateCmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "sample_input.xlsx", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docwatch/internal/version"
)

func TestVersionCommand_Human(t *testing.T) {
	stdout, _, err := executeCommand("version")
	require.NoError(t, err)

	assert.Contains(t, stdout, "docwatch")
	assert.Contains(t, stdout, "dev")
	assert.Contains(t, stdout, "formats: markdown, text\n")
}

func TestVersionCommand_Short(t *testing.T) {
	stdout, _, err := executeCommand("version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "docwatch dev\n", stdout)
}

func TestVersionCommand_ShortAndJSONConflict(t *testing.T) {
	_, _, err := executeCommand("version", "--short", "--json")
	requireExitCode(t, err, 2)
}

func TestVersionCommand_JSON(t *testing.T) {
	stdout, _, err := executeCommand("version", "--json")
	require.NoError(t, err)

	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))

	assert.Equal(t, "dev", info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)
	assert.Equal(t, []string{"markdown", "text"}, info.Formats)
}

func TestVersionCommand_NoArgs(t *testing.T) {
	_, _, err := executeCommand("version", "extra")
	require.Error(t, err)
}

func TestRootCommand_VersionFlag(t *testing.T) {
	stdout, _, err := executeCommand("--version")
	require.NoError(t, err)
	assert.Equal(t, "docwatch dev\n", stdout)
}

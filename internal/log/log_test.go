package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFileAndTextToConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "parse.log")
	var console bytes.Buffer

	l, closer, err := New(Config{Level: "info", File: path, Console: &console, NoColor: true})
	require.NoError(t, err)

	cl := WithComponent(l, "run")
	cl.Info().Str("run_id", "r1").Msg("hello")
	l.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "run", entry["component"])
	assert.Equal(t, "r1", entry["run_id"])
	assert.Equal(t, "info", entry["level"])

	assert.Contains(t, console.String(), "hello")
	assert.NotContains(t, console.String(), "hidden")
}

func TestNew_FileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parse.log")
	for i := 0; i < 2; i++ {
		l, closer, err := New(Config{File: path})
		require.NoError(t, err)
		l.Info().Msg("line")
		require.NoError(t, closer.Close())
	}
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(b), "\n"))
}

func TestNew_ConsoleLevelFiltersOnlyConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parse.log")
	var console bytes.Buffer

	l, closer, err := New(Config{File: path, Console: &console, ConsoleLevel: "warn", NoColor: true})
	require.NoError(t, err)
	l.Info().Msg("quiet")
	l.Warn().Msg("loud")
	require.NoError(t, closer.Close())

	assert.NotContains(t, console.String(), "quiet")
	assert.Contains(t, console.String(), "loud")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "quiet")
}

func TestNew_NoWritersIsNop(t *testing.T) {
	l, closer, err := New(Config{})
	require.NoError(t, err)
	l.Info().Msg("x")
	assert.NoError(t, closer.Close())
}

func TestParseLevel(t *testing.T) {
	_, err := ParseLevel("loud")
	assert.Error(t, err)

	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, "info", l.String())

	l, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, "debug", l.String())
}

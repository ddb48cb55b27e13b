package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itm/eventstore/pkg/config"
	"github.com/itm/eventstore/pkg/di"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, out)
	return out
}

func scanLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestAppendAndScan(t *testing.T) {
	SetContainer(di.NewContainer())
	for _, backend := range []string{"file", "pebble"} {
		t.Run(backend, func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "data", "events")
			flags := []string{"--base-path", base, "--backend", backend}

			for _, ev := range []struct{ ts, text string }{{"1", "A"}, {"5", "B"}, {"10", "C"}} {
				out := mustExecute(t, append([]string{"append", "--ts", ev.ts, ev.text}, flags...)...)
				assert.Contains(t, out, "Appended string event at "+ev.ts)
			}

			lines := scanLines(mustExecute(t, append([]string{"scan"}, flags...)...))
			require.Len(t, lines, 3)
			assert.True(t, strings.HasPrefix(lines[0], "1\t1970-01-01T00:00:00.001Z\tstring\tA"))

			lines = scanLines(mustExecute(t, append([]string{"scan", "--from", "2", "--to", "8"}, flags...)...))
			require.Len(t, lines, 1)
			assert.Contains(t, lines[0], "\tB")

			lines = scanLines(mustExecute(t, append([]string{"scan", "--from", "5"}, flags...)...))
			assert.Len(t, lines, 2)

			lines = scanLines(mustExecute(t, append([]string{"scan", "--limit", "1"}, flags...)...))
			assert.Len(t, lines, 1)
		})
	}
}

func TestAppendNote(t *testing.T) {
	base := filepath.Join(t.TempDir(), "events")

	mustExecute(t, "append", "--base-path", base, "--type", "note", "--ts", "42", "deploy", "finished")

	lines := scanLines(mustExecute(t, "scan", "--base-path", base))
	require.Len(t, lines, 1)
	fields := strings.Split(lines[0], "\t")
	require.Len(t, fields, 4)
	assert.Equal(t, "42", fields[0])
	assert.Equal(t, "note", fields[2])

	id, text, ok := strings.Cut(fields[3], " ")
	require.True(t, ok)
	_, err := ksuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, "deploy finished", text)

	out := mustExecute(t, "types", "--base-path", base)
	assert.Contains(t, out, "0\tevlog.note")
	assert.Contains(t, out, "1\tstring")
}

func TestAppendUnknownType(t *testing.T) {
	_, err := execute(t, "append", "--base-path", filepath.Join(t.TempDir(), "events"), "--type", "blob", "x")
	assert.Error(t, err)
}

func TestStatsAndClear(t *testing.T) {
	base := filepath.Join(t.TempDir(), "events")
	mustExecute(t, "append", "--base-path", base, "--ts", "1", "abc")
	mustExecute(t, "append", "--base-path", base, "--ts", "2", "de")

	out := mustExecute(t, "stats", "--base-path", base)
	assert.Contains(t, out, "Records:       2")
	assert.Contains(t, out, "Payload bytes: 5")
	assert.Contains(t, out, "Backend:       file")

	_, err := execute(t, "clear", "--base-path", base)
	assert.Error(t, err)

	out = mustExecute(t, "clear", "--base-path", base, "--force")
	assert.Contains(t, out, "Removed 2 events")

	out = mustExecute(t, "stats", "--base-path", base)
	assert.Contains(t, out, "Records:       0")
	assert.Contains(t, out, "Types:         2")
}

func TestReadOnlyFlag(t *testing.T) {
	base := filepath.Join(t.TempDir(), "events")
	mustExecute(t, "append", "--base-path", base, "--ts", "1", "A")

	_, err := execute(t, "append", "--base-path", base, "--read-only", "--ts", "2", "B")
	assert.Error(t, err)

	lines := scanLines(mustExecute(t, "scan", "--base-path", base, "--read-only"))
	assert.Len(t, lines, 1)
}

func TestInitConfigAndUseIt(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "evlog_cmd_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "evlog.yaml")
	base := filepath.Join(tmpDir, "data", "events")

	out := mustExecute(t, "init-config", "--config", configPath, "--base-path", base, "--backend", "pebble")
	assert.Contains(t, out, "Wrote config to "+configPath)

	loaded, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, base, loaded.BasePath)
	assert.Equal(t, "pebble", loaded.Backend)

	_, err = execute(t, "init-config", "--config", configPath)
	assert.Error(t, err)
	mustExecute(t, "init-config", "--config", configPath, "--base-path", base, "--backend", "pebble", "--force")

	mustExecute(t, "append", "--config", configPath, "--ts", "7", "from config")
	lines := scanLines(mustExecute(t, "scan", "--config", configPath))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "from config")
	assert.DirExists(t, base+".pebble")
}

func TestInvalidBackend(t *testing.T) {
	_, err := execute(t, "scan", "--base-path", filepath.Join(t.TempDir(), "events"), "--backend", "tape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend "tape"`)
}

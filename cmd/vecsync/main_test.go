package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/trainer"
)

const testConfig = `storage:
  backend: memory
  path: ./data/vectors.vsc
embedding:
  provider: hash
  dimensions: 8
chunking:
  max_size: 4
  overlap: 1
`

// writeFixture creates a config and a single text source in a temp dir.
func writeFixture(t *testing.T) (configPath, source string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))
	source = filepath.Join(dir, "letters.txt")
	require.NoError(t, os.WriteFile(source, []byte("ABCDEFGHIJ"), 0644))
	return configPath, source
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out, &out).RunContext(context.Background(), append([]string{"vecsync", "--env-file", ""}, args...))
	return out.String(), err
}

func TestTrainItemsDelete(t *testing.T) {
	cfg, src := writeFixture(t)

	out, err := run(t, "-c", cfg, "train", "-o", "compact", src)
	require.NoError(t, err)
	assert.Contains(t, out, "processed=3")

	out, err = run(t, "-c", cfg, "train", "-o", "compact", src)
	require.NoError(t, err)
	assert.Contains(t, out, "processed=0")
	assert.Contains(t, out, "skipped=3")

	out, err = run(t, "-c", cfg, "items", "-o", "compact")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	out, err = run(t, "-c", cfg, "items", "-o", "compact", "--key", "source", "--value", src)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	out, err = run(t, "-c", cfg, "delete", "--source", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 3 item(s)")

	out, err = run(t, "-c", cfg, "delete", "--source", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to delete")
}

func TestItemsFilterCSVColumns(t *testing.T) {
	cfg, _ := writeFixture(t)
	rows := filepath.Join(filepath.Dir(cfg), "rows.csv")
	require.NoError(t, os.WriteFile(rows, []byte("id,text,score\n1,abc,2.5\n2,xyz,7.5\n10,qrs,9\n"), 0644))

	out, err := run(t, "-c", cfg, "train", "-o", "compact", rows)
	require.NoError(t, err)
	assert.Contains(t, out, "processed=3")

	out, err = run(t, "-c", cfg, "items", "-o", "compact", "--key", "id", "--value", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "xyz")

	out, err = run(t, "-c", cfg, "items", "-o", "compact", "--key", "score", "--min", "5")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestTrainProcessOnlyWritesNothing(t *testing.T) {
	cfg, src := writeFixture(t)

	out, err := run(t, "-c", cfg, "train", "-s", string(trainer.ProcessOnly), "-o", "compact", src)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ABCD")

	out, err = run(t, "-c", cfg, "status", "-o", "json")
	require.NoError(t, err)
	var st models.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, int64(0), st.Items)
}

func TestSearchAndStatus(t *testing.T) {
	cfg, src := writeFixture(t)
	_, err := run(t, "-c", cfg, "train", src)
	require.NoError(t, err)

	out, err := run(t, "-c", cfg, "search", "-n", "1", "-o", "compact", "DEFG")
	require.NoError(t, err)
	assert.Contains(t, out, "DEFG")

	out, err = run(t, "-c", cfg, "status", "-o", "json")
	require.NoError(t, err)
	var st models.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, int64(3), st.Items)
	assert.Equal(t, "memory", st.Backend)
	assert.Equal(t, 8, st.Dimensions)
}

func TestCommandErrors(t *testing.T) {
	cfg, src := writeFixture(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"train without sources", []string{"-c", cfg, "train"}, 1},
		{"unknown strategy", []string{"-c", cfg, "train", "-s", "bogus", src}, 2},
		{"unknown output", []string{"-c", cfg, "items", "-o", "xml"}, 2},
		{"value without key", []string{"-c", cfg, "items", "--value", "x"}, 2},
		{"delete without ids", []string{"-c", cfg, "delete"}, 1},
		{"missing config", []string{"-c", filepath.Join(t.TempDir(), "nope.yaml"), "status"}, 1},
		{"no glob match", []string{"-c", cfg, "train", filepath.Join(t.TempDir(), "*.txt")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, exitCode(err))
		})
	}
}

func TestSearchViaServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		var q models.SearchQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, "hello world", q.Query)
		assert.Equal(t, 2, q.Limit)
		_ = json.NewEncoder(w).Encode(models.SearchResponse{
			Query:   q.Query,
			Total:   1,
			Results: []*models.SearchResult{{ID: "a1", Score: 0.9, Text: "hello there", Rank: 1}},
		})
	}))
	defer srv.Close()

	out, err := run(t, "search", "--server", srv.URL, "-n", "2", "-o", "compact", "hello", "world")
	require.NoError(t, err)
	assert.Contains(t, out, "a1")
	assert.Contains(t, out, "hello there")
}

func TestWatchCommandsViaServer(t *testing.T) {
	var added map[string]interface{}
	var removed string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string][]string{"directories": {"/a", "/b"}})
		case http.MethodPost:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&added))
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			removed = r.URL.Query().Get("path")
		}
	}))
	defer srv.Close()

	out, err := run(t, "watch", "list", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "/a\n/b\n", out)

	dir := t.TempDir()
	_, err = run(t, "watch", "add", "--server", srv.URL, "--sync=false", dir)
	require.NoError(t, err)
	assert.Equal(t, dir, added["path"])
	assert.Equal(t, false, added["sync"])

	_, err = run(t, "watch", "remove", "--server", srv.URL, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, removed)

	_, err = run(t, "watch", "add", "--server", srv.URL)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vecsync dev\n", out)
}

func TestWatchStrategy(t *testing.T) {
	assert.Equal(t, trainer.IncrementalUpdate, watchStrategy("positional"))
	assert.Equal(t, trainer.IncrementalAdd, watchStrategy("content"))
	assert.Equal(t, trainer.IncrementalAdd, watchStrategy("content_salted"))
}

func TestExpandSources(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "docs", "deep")
	require.NoError(t, os.MkdirAll(nested, 0755))
	for _, p := range []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.log"),
		filepath.Join(dir, "docs", "c.md"),
		filepath.Join(nested, "d.txt"),
	} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}

	t.Run("directory filtered by extension", func(t *testing.T) {
		got, err := expandSources([]string{dir}, []string{".txt", "md"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			filepath.Join(dir, "a.txt"),
			filepath.Join(dir, "docs", "c.md"),
			filepath.Join(nested, "d.txt"),
		}, got)
	})

	t.Run("doublestar glob", func(t *testing.T) {
		got, err := expandSources([]string{filepath.Join(dir, "**", "*.txt")}, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(nested, "d.txt")}, got)
	})

	t.Run("duplicates removed", func(t *testing.T) {
		a := filepath.Join(dir, "a.txt")
		got, err := expandSources([]string{a, a, filepath.Join(dir, "*.txt")}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{a}, got)
	})

	t.Run("missing file passed through", func(t *testing.T) {
		missing := filepath.Join(dir, "missing.txt")
		got, err := expandSources([]string{missing}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{missing}, got)
	})

	t.Run("glob without matches", func(t *testing.T) {
		_, err := expandSources([]string{filepath.Join(dir, "*.pdf")}, nil)
		assert.Error(t, err)
	})
}

func TestHasExtension(t *testing.T) {
	assert.True(t, hasExtension("a.TXT", []string{".txt"}))
	assert.True(t, hasExtension("a.md", []string{"md"}))
	assert.True(t, hasExtension("anything", nil))
	assert.False(t, hasExtension("a.log", []string{".txt"}))
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage:\n  collection: local\n"), 0644))
	chdir(t, dir)

	cfg, path, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Storage.Collection)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), path)
}

func TestLoadConfig_defaultsWhenNothingFound(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}
	chdir(t, t.TempDir())

	cfg, path, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "default", cfg.Storage.Collection)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	cfgPath, _ := writeFixture(t)

	cfg, path, err := loadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, path)
	assert.Equal(t, 8, cfg.Embedding.Dimensions)
	assert.Equal(t, filepath.Join(filepath.Dir(cfgPath), "data", "vectors.vsc"), cfg.Storage.Path)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(models.NewConfigurationError("x", "bad")))
	assert.Equal(t, 2, exitCode(models.ErrMixedSourceTypes))
	assert.Equal(t, 1, exitCode(assert.AnError))
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/vaultbot/internal/client"
	"github.com/raphaelgruber/vaultbot/internal/llm/llmtest"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/service"
)

// resetFlags restores every flag of cmd and its children to its default so
// package-level flag variables do not leak between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type cliEnv struct {
	vault  string
	config string
	fake   *llmtest.Fake
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	vault := t.TempDir()
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `ai:
  provider: ollama
vault:
  path: ` + vault + `
pipeline:
  fetch_articles: false
  ocr:
    enabled: false
audit:
  dir: ""
log:
  file: ""
  level: ERROR
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(yaml), 0o644))

	fake := &llmtest.Fake{
		ProviderName: "ollama",
		Result: models.Analysis{
			Title:   "CLI Note",
			Summary: "Captured from the terminal.",
			Tags:    []string{"cli"},
		},
	}
	extraAppOpts = []service.AppOption{service.WithProvider(fake)}
	t.Cleanup(func() {
		extraAppOpts = nil
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
	})
	return &cliEnv{vault: vault, config: cfgFile, fake: fake}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	resetFlags(rootCmd)
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (e *cliEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.vault, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	env := setupCLI(t)
	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "vaultbot "+Version), out)
}

func TestCaptureJSON(t *testing.T) {
	env := setupCLI(t)

	out, err := env.run(t, "capture", "--json", "--subfolder", "Ideas", "remember", "the", "milk")
	require.NoError(t, err)

	var saved models.SavedNote
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	assert.True(t, strings.HasPrefix(saved.Path, "Incoming/Ideas/"), saved.Path)
	assert.True(t, strings.HasSuffix(saved.Path, " - cli-note.md"), saved.Path)

	data, err := os.ReadFile(filepath.Join(env.vault, filepath.FromSlash(saved.Path)))
	require.NoError(t, err)
	assert.Contains(t, string(data), "remember the milk")
	assert.Contains(t, string(data), "source: cli")
}

func TestCapturePreview(t *testing.T) {
	env := setupCLI(t)

	out, err := env.run(t, "capture", "plain text")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved to vault")
	assert.Contains(t, out, "Title: CLI Note")
}

func TestCaptureAttachment(t *testing.T) {
	env := setupCLI(t)
	img := filepath.Join(t.TempDir(), "board.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG fake"), 0o644))

	out, err := env.run(t, "capture", "--json", "--file", img, "sprint planning")
	require.NoError(t, err)

	var saved models.SavedNote
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	require.Len(t, saved.Attachments, 1)
	assert.True(t, strings.HasPrefix(saved.Attachments[0], "_attachments/photo_"), saved.Attachments[0])

	_, err = env.run(t, "capture", "--file", img, "--kind", "video", "x")
	assert.ErrorContains(t, err, "invalid --kind")
}

func TestCaptureEmpty(t *testing.T) {
	env := setupCLI(t)
	_, err := env.run(t, "capture")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrEmptyMessage)
}

func TestIngest(t *testing.T) {
	env := setupCLI(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.md"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.txt"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "c.csv"), []byte("x,y"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".hidden.md"), []byte("skip"), 0o644))

	out, err := env.run(t, "ingest", "--dry-run", src)
	require.NoError(t, err)
	assert.Contains(t, out, "2 files would be captured")
	assert.NotContains(t, out, "c.csv")

	out, err = env.run(t, "ingest", "--subfolder", "Imported", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Files processed: 2")
	assert.Contains(t, out, "Notes created:   2")

	entries, err := os.ReadDir(filepath.Join(env.vault, "Incoming", "Imported"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestVaultQueries(t *testing.T) {
	env := setupCLI(t)

	out, err := env.run(t, "folders")
	require.NoError(t, err)
	assert.Equal(t, "No folders in vault\n", out)

	env.write(t, "Projects/Go/cache.md", "# Caching\n\n#caching with Redis")
	env.write(t, "Projects/notes.md", "# Notes\n\nnothing")

	out, err = env.run(t, "folders")
	require.NoError(t, err)
	assert.Contains(t, out, "Projects\n")
	assert.Contains(t, out, "  Go\n")

	out, err = env.run(t, "related", "--tag", "caching")
	require.NoError(t, err)
	assert.Contains(t, out, "Projects/Go/cache.md")
	assert.Contains(t, out, "[2.0]")

	_, err = env.run(t, "related")
	assert.ErrorContains(t, err, "--tag or --entity")

	out, err = env.run(t, "search", "redis")
	require.NoError(t, err)
	assert.Contains(t, out, "Projects/Go/cache.md")

	_, err = env.run(t, "search", "ab")
	assert.ErrorContains(t, err, "at least 3 characters")
}

func TestSuggest(t *testing.T) {
	env := setupCLI(t)
	env.fake.Tags = []string{"go", "cli"}
	env.fake.Connections = []string{"Concurrency"}

	out, err := env.run(t, "suggest", "tags", "some text")
	require.NoError(t, err)
	assert.Equal(t, "#go\n#cli\n", out)

	out, err = env.run(t, "suggest", "connections", "some text")
	require.NoError(t, err)
	assert.Contains(t, out, "[[Concurrency]]")
}

func TestJobsRequiresServer(t *testing.T) {
	env := setupCLI(t)
	_, err := env.run(t, "jobs")
	assert.ErrorContains(t, err, "--server")
}

func TestStatsJSON(t *testing.T) {
	env := setupCLI(t)
	out, err := env.run(t, "stats", "--json")
	require.NoError(t, err)

	var st service.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "ollama", st.Provider)
	assert.Equal(t, "fake-model", st.Model)
}

func TestReadText(t *testing.T) {
	text, err := readText([]string{"a", "b"}, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "a b", text)

	text, err = readText(nil, strings.NewReader("from pipe"))
	require.NoError(t, err)
	assert.Equal(t, "from pipe", text)
}

func TestAttachmentKind(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		kind    string
		want    models.ContentType
		wantErr bool
	}{
		{"no file", "", "", "", false},
		{"from extension", "photo.JPG", "", models.ContentPhoto, false},
		{"pdf", "paper.pdf", "", models.ContentDocument, false},
		{"audio", "memo.ogg", "", models.ContentVoice, false},
		{"explicit kind wins", "memo.bin", "Voice", models.ContentVoice, false},
		{"unknown extension", "memo.bin", "", "", true},
		{"invalid kind", "a.png", "video", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := attachmentKind(tt.path, tt.kind)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProgressModel(t *testing.T) {
	job := &client.Job{ID: "abc", Status: "running", Progress: 1, Total: 4}
	m := newProgressModel(nil, job, true)

	view := m.renderContent()
	assert.Contains(t, view, "1/4 files")
	assert.Contains(t, view, "continue in background")

	done := &client.Job{
		ID:     "abc",
		Status: string(service.JobStatusCompleted),
		Result: &client.IngestResult{FilesProcessed: 4, NotesCreated: 3, Errors: []string{"x.md: boom"}},
	}
	next, cmd := m.Update(jobUpdateMsg{job: done})
	require.NotNil(t, cmd)
	pm := next.(progressModel)
	assert.True(t, pm.done)
	assert.NoError(t, pm.err)
	assert.Contains(t, pm.renderContent(), "Notes created:   3")
	assert.Contains(t, pm.renderContent(), "x.md: boom")

	failed := &client.Job{ID: "abc", Status: string(service.JobStatusFailed), Error: "quota exceeded"}
	next, _ = m.Update(jobUpdateMsg{job: failed})
	assert.ErrorContains(t, next.(progressModel).err, "quota exceeded")
}

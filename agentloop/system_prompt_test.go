package agentloop

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSystemPromptSections(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.WorkingDirectory(), "AGENTS.md"), []byte("Use tabs."), 0o644))

	prompt := BuildSystemPrompt(env, "gpt-4o-mini", "Answer briefly.", "File: a.go\npackage a")

	assert.True(t, strings.HasPrefix(prompt, basePrompt))
	assert.Contains(t, prompt, "<environment>")
	assert.Contains(t, prompt, "Working directory: "+env.WorkingDirectory())
	assert.Contains(t, prompt, "Model: gpt-4o-mini")
	assert.Contains(t, prompt, "Use tabs.")
	assert.Contains(t, prompt, "# Relevant Code")
	assert.Contains(t, prompt, "File: a.go\npackage a")
	assert.True(t, strings.HasSuffix(prompt, "# User Instructions\n\nAnswer briefly."))
}

func TestBuildSystemPromptOmitsEmptySections(t *testing.T) {
	env := newTestEnv(t)
	prompt := BuildSystemPrompt(env, "", "  ", "")

	assert.NotContains(t, prompt, "# Relevant Code")
	assert.NotContains(t, prompt, "# User Instructions")
	assert.NotContains(t, prompt, "# Project Instructions")
	assert.NotContains(t, prompt, "Model:")
}

func TestDiscoverProjectDocsTruncates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte(strings.Repeat("x", maxProjectDocBytes+10)), 0o644))

	docs := DiscoverProjectDocs(dir)
	assert.True(t, strings.HasSuffix(docs, "\n[Project instructions truncated at 32KB]"))
	assert.Len(t, docs, maxProjectDocBytes+len("\n[Project instructions truncated at 32KB]"))
}

func TestDiscoverProjectDocsIgnoresParentDirectories(t *testing.T) {
	parent := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(parent, "AGENTS.md"), []byte("outer rules"), 0o644))
	child := filepath.Join(parent, "repo")
	require.NoError(t, os.Mkdir(child, 0o755))

	assert.Empty(t, DiscoverProjectDocs(child))
}

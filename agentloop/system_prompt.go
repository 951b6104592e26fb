package agentloop

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

const basePrompt = `You are a coding assistant working inside a single repository.
Answer questions about the codebase and make file edits when asked.

Use the tools to inspect the workspace before answering when the provided context is not enough:
- list_files shows the entries of a directory.
- read_file returns the contents of a file.
- write_file replaces the contents of a file, creating parent directories.

All paths are relative to the working directory and cannot leave it.
When you have the answer, reply in plain text without calling any tool.`

// BuildSystemPrompt assembles the system turn: base instructions, the
// environment block, project docs, retrieved context and user instructions.
// Empty sections are omitted.
func BuildSystemPrompt(env ExecutionEnvironment, model, instructions, retrieved string) string {
	sections := []string{basePrompt, BuildEnvironmentContext(env, model)}
	if docs := DiscoverProjectDocs(env.WorkingDirectory()); docs != "" {
		sections = append(sections, "# Project Instructions\n\n"+docs)
	}
	if retrieved != "" {
		sections = append(sections, "# Relevant Code\n\nThe following excerpts were retrieved from the index and may help:\n\n"+retrieved)
	}
	if strings.TrimSpace(instructions) != "" {
		sections = append(sections, "# User Instructions\n\n"+instructions)
	}
	return strings.Join(sections, "\n\n")
}

// BuildEnvironmentContext renders the <environment> block of the system
// prompt.
func BuildEnvironmentContext(env ExecutionEnvironment, model string) string {
	dir := env.WorkingDirectory()
	branch := gitBranch(dir)

	lines := []string{
		"Working directory: " + dir,
		fmt.Sprintf("Is git repository: %t", branch != ""),
	}
	if branch != "" {
		lines = append(lines, "Git branch: "+branch)
	}
	lines = append(lines,
		"Platform: "+env.Platform(),
		"OS version: "+env.OSVersion(),
		"Today's date: "+time.Now().Format(time.DateOnly),
	)
	if model != "" {
		lines = append(lines, "Model: "+model)
	}
	return "<environment>\n" + strings.Join(lines, "\n") + "\n</environment>"
}

// DiscoverProjectDocs returns the workspace's AGENTS.md, cut at 32KB. Files
// above the workspace root are never read.
func DiscoverProjectDocs(workingDir string) string {
	content, err := os.ReadFile(filepath.Join(workingDir, "AGENTS.md"))
	if err != nil || len(bytes.TrimSpace(content)) == 0 {
		return ""
	}
	if len(content) > maxProjectDocBytes {
		content = append(content[:maxProjectDocBytes:maxProjectDocBytes], "\n[Project instructions truncated at 32KB]"...)
	}
	return string(content)
}

func gitBranch(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

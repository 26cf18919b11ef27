// Package editor spawns an external text editor on a temporary file and
// returns what the user left behind, the same invocation shape used for
// commit messages and other free-form annotations.
package editor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Edit writes initial to a temporary file, opens editorCmd (falling back to
// $EDITOR, then "vi") on it, and returns the file's trimmed contents once
// the editor exits. The temp file is removed before Edit returns.
func Edit(editorCmd, initial string) (string, error) {
	if editorCmd == "" {
		editorCmd = os.Getenv("EDITOR")
	}
	if editorCmd == "" {
		editorCmd = "vi"
	}

	f, err := os.CreateTemp("", "gs-sync-note-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(initial); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := command(editorCmd, path).Run(); err != nil {
		return "", fmt.Errorf("run editor %q: %w", editorCmd, err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read edited file: %w", err)
	}
	return strings.TrimSpace(string(edited)), nil
}

// command constructs the editor invocation. edit may be a bare binary name
// (looked up on PATH) or a shell command with arguments (e.g. "code
// --wait"), in which case it's handed to sh so the shell resolves quoting.
func command(edit, path string) *exec.Cmd {
	var cmd *exec.Cmd
	if exe, err := exec.LookPath(edit); err == nil {
		cmd = exec.Command(exe, path)
	} else {
		// We'll run: sh -c 'EDITOR "$@"' -- path
		// The shell takes care of quoting issues in multi-word commands.
		cmd = exec.Command("sh", "-c", edit+` "$@"`, "--", path)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

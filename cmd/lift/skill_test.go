// ABOUTME: Tests for the install-skill command.
// ABOUTME: Validates skill installation, confirmation handling, and embedded content.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillFSReadEmbeddedContent(t *testing.T) {
	content, err := skillFS.ReadFile("skill/SKILL.md")
	require.NoError(t, err)
	require.NotEmpty(t, content)

	s := string(content)
	assert.True(t, strings.HasPrefix(s, "---"), "SKILL.md should start with YAML frontmatter")
	assert.Contains(t, s, "name: lift")
	assert.Contains(t, s, "description:")
	for _, command := range []string{"lift log show", "lift log complete", "lift routine activate", "lift sync now"} {
		assert.Contains(t, s, command)
	}
}

func TestSkillInstallWithYes(t *testing.T) {
	home := setupTestCLI(t)

	out := mustRun(t, "install-skill", "--yes")
	assert.Contains(t, out, "Installed lift skill successfully")

	skillPath := filepath.Join(home, ".claude", "skills", "lift", "SKILL.md")
	written, err := os.ReadFile(skillPath)
	require.NoError(t, err)
	embedded, err := skillFS.ReadFile("skill/SKILL.md")
	require.NoError(t, err)
	assert.Equal(t, embedded, written)

	info, err := os.Stat(skillPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSkillInstallOverwritesExistingFile(t *testing.T) {
	home := setupTestCLI(t)

	skillDir := filepath.Join(home, ".claude", "skills", "lift")
	require.NoError(t, os.MkdirAll(skillDir, 0750))
	skillPath := filepath.Join(skillDir, "SKILL.md")
	require.NoError(t, os.WriteFile(skillPath, []byte("# Old Skill\nstale content"), 0600))

	out := mustRun(t, "install-skill", "-y")
	assert.Contains(t, out, "already exists and will be overwritten")

	data, err := os.ReadFile(skillPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale content")
	assert.Contains(t, string(data), "name: lift")
}

func TestSkillInstallDeclined(t *testing.T) {
	home := setupTestCLI(t)
	skillSkipConfirm = false

	var out bytes.Buffer
	require.NoError(t, installSkill(strings.NewReader("n\n"), &out))
	assert.Contains(t, out.String(), "Installation canceled.")

	_, err := os.Stat(filepath.Join(home, ".claude", "skills", "lift"))
	assert.True(t, os.IsNotExist(err))
}

func TestSkillInstallConfirmed(t *testing.T) {
	home := setupTestCLI(t)
	skillSkipConfirm = false

	var out bytes.Buffer
	require.NoError(t, installSkill(strings.NewReader("yes\n"), &out))
	assert.FileExists(t, filepath.Join(home, ".claude", "skills", "lift", "SKILL.md"))
}

func TestSkillSkipConfirmFlag(t *testing.T) {
	flag := installSkillCmd.Flags().Lookup("yes")
	require.NotNil(t, flag)
	assert.Equal(t, "y", flag.Shorthand)
	assert.Equal(t, "false", flag.DefValue)
}

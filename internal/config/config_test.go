package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/repodash/repodash/pkg/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestLoadTargetsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	content := `
targets:
  - key: primary
    repo: acme/bot-config
    file_path: state/cookie.txt
    token: token-1
    name: Bot Cookie
  - key: secondary
    repo: acme/page-config
    file_path: state/session.txt
    token: token-2
    name: Page Cookie
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(TargetsFileEnvVar, path)

	targets, err := LoadTargets()
	require.NoError(t, err)
	require.Equal(t, 2, targets.Len())
	require.Equal(t, []string{"primary", "secondary"}, targets.Keys)

	d, ok := targets.Get("secondary")
	require.True(t, ok)
	require.Equal(t, "acme/page-config", d.Repo)
	require.Equal(t, "state/session.txt", d.FilePath)
	require.Equal(t, "Page Cookie", d.Name)
}

func TestLoadTargetsFromFileRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	content := `
targets:
  - {key: a, repo: r, file_path: f, token: t, name: n}
  - {key: a, repo: r2, file_path: f2, token: t2, name: n2}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(TargetsFileEnvVar, path)

	_, err := LoadTargets()
	testhelpers.AssertError(t, err)
}

func TestLoadTargetsFromFileRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing token", "targets:\n  - {key: a, repo: r, file_path: f, name: n}\n"},
		{"missing repo", "targets:\n  - {key: a, file_path: f, token: t, name: n}\n"},
		{"missing key", "targets:\n  - {repo: r, file_path: f, token: t, name: n}\n"},
		{"empty file", "targets: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "targets.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			t.Setenv(TargetsFileEnvVar, path)

			_, err := LoadTargets()
			testhelpers.AssertError(t, err)
		})
	}
}

func TestLoadTargetsLegacyEnv(t *testing.T) {
	t.Setenv(TargetsFileEnvVar, "")
	t.Setenv(TokenEnvVar, "tok1")
	t.Setenv(RepoEnvVar, "acme/bot-config")
	t.Setenv(FilePathEnvVar, "cookie.txt")
	t.Setenv(PrimaryNameEnvVar, "BOT COOKIE")
	t.Setenv(SecondaryTokenEnvVar, "tok2")
	t.Setenv(SecondaryRepoEnvVar, "acme/page-config")
	t.Setenv(SecondaryFilePathEnvVar, "session.txt")
	t.Setenv(SecondaryNameEnvVar, "")

	targets, err := LoadTargets()
	require.NoError(t, err)
	require.Equal(t, 2, targets.Len())

	d, ok := targets.Get("primary")
	require.True(t, ok)
	require.Equal(t, "BOT COOKIE", d.Name)

	d, ok = targets.Get("secondary")
	require.True(t, ok)
	require.Equal(t, "Secondary File", d.Name)
}

func TestLoadTargetsLegacyEnvSecondaryOptional(t *testing.T) {
	t.Setenv(TargetsFileEnvVar, "")
	t.Setenv(TokenEnvVar, "tok1")
	t.Setenv(RepoEnvVar, "acme/bot-config")
	t.Setenv(FilePathEnvVar, "cookie.txt")
	t.Setenv(PrimaryNameEnvVar, "")
	t.Setenv(SecondaryTokenEnvVar, "")
	t.Setenv(SecondaryRepoEnvVar, "")
	t.Setenv(SecondaryFilePathEnvVar, "")

	targets, err := LoadTargets()
	require.NoError(t, err)
	require.Equal(t, 1, targets.Len())
	require.Equal(t, []string{"primary"}, targets.Keys)
}

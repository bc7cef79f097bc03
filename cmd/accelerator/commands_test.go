package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBody(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "search.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("index_name: products\ntop: 5\nsemantic_ranker: true\n"), 0o600))
	body, err := readBody(yamlPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"index_name":"products","top":5,"semantic_ranker":true}`, string(body))

	jsonPath := filepath.Join(dir, "search.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"index_name":"products","top":5}`), 0o600))
	body, err = readBody(jsonPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"index_name":"products","top":5}`, string(body))

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"index_name":`), 0o600))
	_, err = readBody(badPath)
	assert.Error(t, err)

	_, err = readBody(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{
		{"serve"},
		{"config", "create"},
		{"config", "get"},
		{"config", "list"},
		{"config", "activate"},
		{"migrate"},
		{"token"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestServeRejectsUnknownRole(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"serve", "gateway"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.toml"))
	t.Setenv("JWT_SECRET", "")
	root := newRootCommand()
	root.SetArgs([]string{"token", "ops"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestTokenSigns(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.toml"))
	t.Setenv("JWT_SECRET", "s3cret")
	root := newRootCommand()
	var out bytes.Buffer
	root.SetArgs([]string{"token", "ops", "--ttl", "1m"})
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	require.NoError(t, root.Execute())
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n$`, out.String())
}

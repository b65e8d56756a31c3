package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestImportExportCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "members.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("STATE_BACKEND", "memory")

	out, _, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("name,gender\n,male\n"), 0o600))
	_, stderr, err := execute(t, "import", bad)
	require.Error(t, err)
	assert.Contains(t, stderr, "bad.csv:2: error: name")

	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("name,gender\nAnn,female\nTom,\n"), 0o600))

	out, _, err = execute(t, "import", "--dry-run", good)
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows valid")

	out, stderr, err = execute(t, "import", good)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 members")
	assert.Contains(t, stderr, "warning")

	out, _, err = execute(t, "export")
	require.NoError(t, err)
	assert.Equal(t, "name,birthday,phone,email,tag,gender,isTeenager,isBaptized,hasTakenCommunion\r\n"+
		"Ann,,,,,female,false,false,false\r\n"+
		"Tom,,,,,male,false,false,false\r\n", out)

	dest := filepath.Join(dir, "out.csv")
	_, _, err = execute(t, "export", "--out", dest)
	require.NoError(t, err)
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, out, string(b))
}

func TestImportNeedsFile(t *testing.T) {
	_, _, err := execute(t, "import")
	require.Error(t, err)
}

func TestWriteFileRemovesPartialOutput(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "members.csv")
	boom := errors.New("disk full")

	err := writeFile(dest, func(w io.Writer) error {
		_, _ = io.WriteString(w, "name\n")
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "partial export is removed")

	require.NoError(t, writeFile(dest, func(w io.Writer) error {
		_, err := io.WriteString(w, "name\n")
		return err
	}))
	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "name\n", string(b))
}

func TestExportToMissingDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "members.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("STATE_BACKEND", "memory")

	_, _, err := execute(t, "export", "--out", filepath.Join(dir, "missing", "out.csv"))
	require.Error(t, err)
}

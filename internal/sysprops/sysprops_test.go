package sysprops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewapps-dev/wfpack/internal/failure"
)

func writeProps(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))
	return dir
}

func TestReadBothPins(t *testing.T) {
	dir := writeProps(t, "java.runtime.version=11\nwildfly.version=16.0.0.Final\nmaven.version=3.6.0\n")

	d, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "11", d.RuntimeVersion)
	assert.Equal(t, "16.0.0.Final", d.ServerVersion)
}

func TestReadOnlyServerPin(t *testing.T) {
	dir := writeProps(t, "# pinned server\nwildfly.version = 17.0.0.Final\n")

	d, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "", d.RuntimeVersion)
	assert.Equal(t, "17.0.0.Final", d.ServerVersion)
}

func TestReadMissingFile(t *testing.T) {
	d, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Declared{}, d)
}

func TestReadMalformedFile(t *testing.T) {
	dir := writeProps(t, "wildfly.version=${wildfly.version}\n")

	_, err := Read(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrConfiguration))
}

package war

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewapps-dev/wfpack/internal/failure"
	"github.com/reviewapps-dev/wfpack/internal/fixture"
	"github.com/reviewapps-dev/wfpack/internal/install"
)

func testInstallation(t *testing.T) install.Installation {
	t.Helper()
	home := t.TempDir()
	deployments := filepath.Join(home, "standalone", "deployments")
	require.NoError(t, os.MkdirAll(deployments, 0o755))
	return install.Installation{HomeDir: home, DeploymentsDir: deployments, Version: "16.0.0.Final"}
}

func deploymentNames(t *testing.T, inst install.Installation) []string {
	t.Helper()
	entries, err := os.ReadDir(inst.DeploymentsDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPlaceRoundTrip(t *testing.T) {
	inst := testInstallation(t)
	src := filepath.Join(t.TempDir(), "target", "ROOT.war")
	data := fixture.War(t, src, map[string]string{"index.jsp": "Hello World!"})

	dest, err := Place(src, inst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(inst.DeploymentsDir, "ROOT.war"), dest)

	placed, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, data, placed)
	assert.Equal(t, []string{"ROOT.war"}, deploymentNames(t, inst))
}

func TestPlaceTwiceOverwrites(t *testing.T) {
	inst := testInstallation(t)
	src := filepath.Join(t.TempDir(), "ROOT.war")

	fixture.War(t, src, map[string]string{"index.jsp": "v1"})
	_, err := Place(src, inst)
	require.NoError(t, err)

	second := fixture.War(t, src, map[string]string{"index.jsp": "v2"})
	dest, err := Place(src, inst)
	require.NoError(t, err)

	assert.Equal(t, []string{"ROOT.war"}, deploymentNames(t, inst))
	placed, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, second, placed)
}

func TestPlaceRejectsBadArtifacts(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.war")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	notZip := filepath.Join(dir, "text.war")
	require.NoError(t, os.WriteFile(notZip, []byte("just text"), 0o644))
	asDir := filepath.Join(dir, "exploded.war")
	require.NoError(t, os.Mkdir(asDir, 0o755))

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.war")},
		{"empty", empty},
		{"not a zip", notZip},
		{"directory", asDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := testInstallation(t)
			_, err := Place(tt.path, inst)
			require.Error(t, err)
			assert.True(t, errors.Is(err, failure.ErrArtifactMissing))
			assert.Contains(t, err.Error(), tt.path)
			assert.Empty(t, deploymentNames(t, inst))
		})
	}
}

func TestDiscover(t *testing.T) {
	buildDir := t.TempDir()
	fixture.War(t, filepath.Join(buildDir, "target", "ROOT.war"), map[string]string{"a": "b"})
	fixture.War(t, filepath.Join(buildDir, "target", "api.war"), map[string]string{"a": "b"})
	require.NoError(t, os.WriteFile(filepath.Join(buildDir, "target", "app.jar"), []byte("jar"), 0o644))

	found, err := Discover(buildDir, []string{"target/*.war", "target/ROOT.war"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(buildDir, "target", "ROOT.war"),
		filepath.Join(buildDir, "target", "api.war"),
	}, found)
}

func TestDiscoverNothing(t *testing.T) {
	_, err := Discover(t.TempDir(), []string{"target/*.war"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrArtifactMissing))
	assert.Contains(t, err.Error(), "no WAR file found")
}

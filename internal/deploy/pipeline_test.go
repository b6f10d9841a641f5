package deploy

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewapps-dev/wfpack/internal/build"
	"github.com/reviewapps-dev/wfpack/internal/config"
	"github.com/reviewapps-dev/wfpack/internal/env"
	"github.com/reviewapps-dev/wfpack/internal/failure"
	"github.com/reviewapps-dev/wfpack/internal/fixture"
	"github.com/reviewapps-dev/wfpack/internal/install"
	"github.com/reviewapps-dev/wfpack/internal/logging"
	"github.com/reviewapps-dev/wfpack/internal/logstream"
	"github.com/reviewapps-dev/wfpack/internal/procfile"
)

const wildflyVersion = "16.0.0.Final"

type harness struct {
	mirror   *fixture.Mirror
	cfg      *config.Config
	cacheDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mirror := fixture.NewMirror(t)
	for _, v := range []string{wildflyVersion, "17.0.1.Final"} {
		archive := fixture.WildFly(t, v)
		mirror.Put(serverPath(v), archive)
		mirror.Put(serverPath(v)+".sha1", []byte(fixture.SHA1(archive)+"\n"))
	}
	for _, v := range []string{"1.8", "11"} {
		mirror.Put("/jdk/heroku-18/openjdk"+v+".tar.gz", fixture.JDK(t, v))
	}

	cfg := config.Default()
	cfg.Stack = "heroku-18"
	cfg.Sources.ServerURL = mirror.URL + "/wildfly/{version}/wildfly-{version}.tar.gz"
	cfg.Sources.RuntimeURL = mirror.URL + "/jdk/{stack}/openjdk{version}.tar.gz"

	return &harness{mirror: mirror, cfg: cfg, cacheDir: t.TempDir()}
}

func serverPath(v string) string {
	return "/wildfly/" + v + "/wildfly-" + v + ".tar.gz"
}

type app struct {
	dir string
}

func newApp(t *testing.T, props string) *app {
	t.Helper()
	dir := t.TempDir()
	if props != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "system.properties"), []byte(props), 0o644))
	}
	fixture.War(t, filepath.Join(dir, "target", "ROOT.war"), map[string]string{
		"index.jsp":       "Hello World!",
		"WEB-INF/web.xml": "<web-app/>",
	})
	return &app{dir: dir}
}

func (h *harness) compile(t *testing.T, a *app, envDir string) (*Result, error) {
	t.Helper()
	var out bytes.Buffer
	res, err := Compile(context.Background(), Options{
		BuildDir: a.dir,
		CacheDir: h.cacheDir,
		EnvDir:   envDir,
		Config:   h.cfg,
		Out:      &out,
		Clock:    clockwork.NewFakeClockAt(time.Date(2019, 4, 1, 12, 0, 0, 0, time.UTC)),
	})
	require.NotNil(t, res)
	assert.Equal(t, strings.TrimSuffix(out.String(), "\n"), res.Output)
	return res, err
}

func assertInOrder(t *testing.T, output string, want ...string) {
	t.Helper()
	pos := 0
	for _, w := range want {
		i := strings.Index(output[pos:], w)
		if !assert.GreaterOrEqual(t, i, 0, "expected %q after offset %d in:\n%s", w, pos, output) {
			return
		}
		pos += i + len(w)
	}
}

func TestCompileFirstBuildDownloads(t *testing.T) {
	h := newHarness(t)
	a := newApp(t, "wildfly.version="+wildflyVersion+"\n")

	res, err := h.compile(t, a, "")
	require.NoError(t, err)

	assertInOrder(t, res.Output,
		"Installing JDK 1.8",
		"Downloading WildFly "+wildflyVersion+" to cache",
		"Installing WildFly "+wildflyVersion,
		"Deploying WAR file(s)",
		"ROOT.war",
		"Creating process configuration",
		"Adding process type 'web'",
		"BUILD SUCCESS",
	)
	assert.NotContains(t, res.Output, "BUILD FAILURE")

	rec := res.Record
	assert.Equal(t, build.StateProcessReady, rec.State)
	assert.True(t, rec.Deployable())
	assert.Equal(t, "1.8", rec.RuntimeVersion)
	assert.Equal(t, wildflyVersion, rec.ServerVersion)
	assert.Equal(t, []string{"ROOT.war"}, rec.Deployments)
	assert.Equal(t, "$HOME/.jboss/wildfly/bin/standalone.sh -b 0.0.0.0 -Djboss.http.port=$PORT", rec.Processes[procfile.Web])
	assert.NotEmpty(t, rec.Log)

	// Output filesystem layout.
	inst, err := install.LoadServer(filepath.Join(a.dir, ".jboss", "wildfly"))
	require.NoError(t, err)
	assert.FileExists(t, inst.CLIPath)
	wars, err := filepath.Glob(filepath.Join(inst.DeploymentsDir, "*.war"))
	require.NoError(t, err)
	assert.Len(t, wars, 1)

	// Environment as seen by the launched process.
	vars, err := env.ReadFile(EnvPath(h.cfg, a.dir))
	require.NoError(t, err)
	version, _ := vars.Get(env.WildFlyVersion)
	assert.Equal(t, wildflyVersion, version)
	home, _ := vars.Get(env.JBossHome)
	assert.Equal(t, inst.HomeDir, home)
	javaHome, _ := vars.Get(env.JavaHome)
	assert.Equal(t, filepath.Join(a.dir, ".jdk"), javaHome)

	profile, err := os.ReadFile(filepath.Join(a.dir, ".profile.d", ProfileScript))
	require.NoError(t, err)
	assert.Contains(t, string(profile), `export JBOSS_HOME="$HOME/.jboss/wildfly"`)

	written, err := procfile.Parse(filepath.Join(a.dir, procfile.FileName))
	require.NoError(t, err)
	assert.Contains(t, written, procfile.Web)

	saved, err := build.Load(RecordPath(h.cfg, a.dir))
	require.NoError(t, err)
	assert.Equal(t, build.StateProcessReady, saved.State)
	assert.Equal(t, rec.Log, saved.Log)

	assert.Equal(t, 1, h.mirror.Hits(serverPath(wildflyVersion)))
}

func TestCompileSecondBuildUsesCache(t *testing.T) {
	h := newHarness(t)

	_, err := h.compile(t, newApp(t, "wildfly.version="+wildflyVersion+"\n"), "")
	require.NoError(t, err)

	res, err := h.compile(t, newApp(t, "wildfly.version="+wildflyVersion+"\n"), "")
	require.NoError(t, err)

	assertInOrder(t, res.Output,
		"Installing JDK 1.8",
		"Using cached WildFly "+wildflyVersion,
		"Installing WildFly "+wildflyVersion,
		"Deploying WAR file(s)",
		"BUILD SUCCESS",
	)
	assert.NotContains(t, res.Output, "Downloading WildFly")
	assert.Equal(t, 1, h.mirror.Hits(serverPath(wildflyVersion)))
}

func TestCompileRebuildSameDirIsIdempotent(t *testing.T) {
	h := newHarness(t)
	a := newApp(t, "wildfly.version="+wildflyVersion+"\n")

	_, err := h.compile(t, a, "")
	require.NoError(t, err)
	res, err := h.compile(t, a, "")
	require.NoError(t, err)

	assert.Equal(t, build.StateProcessReady, res.Record.State)
	// The Procfile written by the first build now declares web.
	assert.Contains(t, res.Output, "Using existing process type 'web' in Procfile")

	entries, err := os.ReadDir(filepath.Join(a.dir, ".jboss", "wildfly", "standalone", "deployments"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ROOT.war", entries[0].Name())
}

func TestCompileKeepsDeclaredWeb(t *testing.T) {
	h := newHarness(t)
	a := newApp(t, "")
	declared := "web: java -jar target/dependency/webapp-runner.jar --port $PORT target/*.war\n"
	require.NoError(t, os.WriteFile(filepath.Join(a.dir, procfile.FileName), []byte(declared), 0o644))

	res, err := h.compile(t, a, "")
	require.NoError(t, err)

	assert.Contains(t, res.Output, "Using existing process type 'web' in Procfile")
	assert.Equal(t, "java -jar target/dependency/webapp-runner.jar --port $PORT target/*.war", res.Record.Processes[procfile.Web])

	data, err := os.ReadFile(filepath.Join(a.dir, procfile.FileName))
	require.NoError(t, err)
	assert.Equal(t, declared, string(data))
}

func TestCompileDefaultsAndEnvOverrides(t *testing.T) {
	h := newHarness(t)
	a := newApp(t, "java.runtime.version=11\n")

	envDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "JAVA_OPTS"), []byte("-Xmx300m"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "WILDFLY_VERSION"), []byte("8.0.0.Final"), 0o644))

	res, err := h.compile(t, a, envDir)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Installing JDK 11")
	assert.Contains(t, res.Output, "Downloading WildFly "+h.cfg.Defaults.ServerVersion+" to cache")

	vars, err := env.ReadFile(EnvPath(h.cfg, a.dir))
	require.NoError(t, err)
	version, _ := vars.Get(env.WildFlyVersion)
	assert.Equal(t, h.cfg.Defaults.ServerVersion, version)
	opts, _ := vars.Get("JAVA_OPTS")
	assert.Equal(t, "-Xmx300m", opts)
}

func TestCompileMissingWarFails(t *testing.T) {
	h := newHarness(t)
	a := newApp(t, "wildfly.version="+wildflyVersion+"\n")
	require.NoError(t, os.RemoveAll(filepath.Join(a.dir, "target")))

	res, err := h.compile(t, a, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrArtifactMissing))

	var fe *failure.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "place-deployments", fe.Stage)

	assert.Equal(t, build.StateFailed, res.Record.State)
	assert.Equal(t, "ArtifactMissing", res.Record.Reason)
	assertInOrder(t, res.Output, "Deploying WAR file(s)", "BUILD FAILURE")
	assert.NotContains(t, res.Output, "BUILD SUCCESS")
	assert.NotContains(t, res.Output, "Creating process configuration")

	entries, err := os.ReadDir(filepath.Join(a.dir, ".jboss", "wildfly", "standalone", "deployments"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompileInvalidVersionFails(t *testing.T) {
	h := newHarness(t)
	a := newApp(t, "wildfly.version=latest\n")

	res, err := h.compile(t, a, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrInvalidVersion))
	assert.Equal(t, build.StateFailed, res.Record.State)
	assert.Equal(t, "resolve-versions", res.Record.Stage)
	assert.NotContains(t, res.Output, "Installing")
}

func TestCompileUnknownServerVersionFails(t *testing.T) {
	h := newHarness(t)
	a := newApp(t, "wildfly.version=99.0.0.Final\n")

	res, err := h.compile(t, a, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrArtifactUnavailable))
	assert.Equal(t, "fetch-server", res.Record.Stage)
	assertInOrder(t, res.Output, "Downloading WildFly 99.0.0.Final to cache", "BUILD FAILURE")

	// Nothing was cached for the unknown version, so a later build retries.
	_, err = os.Stat(filepath.Join(h.cacheDir, "server", "99.0.0.Final", "wildfly-99.0.0.Final.tar.gz"))
	assert.True(t, os.IsNotExist(err))
}

func TestCompilePublishesToHub(t *testing.T) {
	h := newHarness(t)
	a := newApp(t, "wildfly.version="+wildflyVersion+"\n")
	hub := logstream.NewHub()
	sub := hub.Subscribe("build-42")
	defer sub.Cancel()

	_, err := Compile(context.Background(), Options{
		BuildDir: a.dir,
		CacheDir: h.cacheDir,
		Config:   h.cfg,
		Out:      &bytes.Buffer{},
		Hub:      hub,
		BuildID:  "build-42",
	})
	require.NoError(t, err)

	// Compile ends the build's stream, so this loop terminates.
	var lines []string
	for line := range sub.Lines() {
		lines = append(lines, line)
	}
	require.NotEmpty(t, lines)
	assert.Equal(t, "-----> Installing JDK 1.8", lines[0])
	assert.Equal(t, "-----> BUILD SUCCESS", lines[len(lines)-1])
	assert.True(t, hub.Closed("build-42"))
}

func TestCompileRequiresDirs(t *testing.T) {
	_, err := Compile(context.Background(), Options{BuildDir: filepath.Join(t.TempDir(), "missing"), CacheDir: t.TempDir()})
	assert.True(t, errors.Is(err, failure.ErrConfiguration))

	_, err = Compile(context.Background(), Options{BuildDir: t.TempDir()})
	assert.True(t, errors.Is(err, failure.ErrConfiguration))
}

func TestPipelineCancelled(t *testing.T) {
	tracker, err := build.NewTracker("")
	require.NoError(t, err)
	var out bytes.Buffer
	sc := &StepContext{
		Config:  config.Default(),
		Tracker: tracker,
	}
	sc.Logger = logging.NewBuildLogger(tracker.ID(), &out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewPipeline(DefaultSteps()...).Run(ctx, sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build cancelled")
	assert.Equal(t, build.StateFailed, tracker.Snapshot().State)
	assert.Contains(t, out.String(), "BUILD FAILURE")
}

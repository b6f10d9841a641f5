package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLoggerPrefixes(t *testing.T) {
	var buf bytes.Buffer
	l := NewBuildLogger("b1", &buf, nil)

	l.Topic("Installing WildFly %s", "16.0.0.Final")
	l.Info("ROOT.war")
	l.Error("something broke")
	l.Plain("BUILD SUCCESS")

	want := "-----> Installing WildFly 16.0.0.Final\n" +
		"       ROOT.war\n" +
		" !     something broke\n" +
		"BUILD SUCCESS\n"
	assert.Equal(t, want, buf.String())
	assert.Len(t, l.Lines(), 4)
}

func TestBuildLoggerSplitsMultilineMessages(t *testing.T) {
	l := NewBuildLogger("b1", nil, nil)
	l.Info("first\nsecond")

	assert.Equal(t, []string{"       first", "       second"}, l.Lines())
}

func TestBuildLoggerOnLine(t *testing.T) {
	var got []string
	l := NewBuildLogger("b42", nil, func(buildID, line string) {
		assert.Equal(t, "b42", buildID)
		got = append(got, line)
	})

	l.Topic("Deploying WAR file(s)")
	l.Info("ROOT.war")

	assert.Equal(t, []string{"-----> Deploying WAR file(s)", "       ROOT.war"}, got)
	assert.Equal(t, "-----> Deploying WAR file(s)\n       ROOT.war", l.Output())
}

func TestLinesReturnsCopy(t *testing.T) {
	l := NewBuildLogger("b1", nil, nil)
	l.Info("one")
	lines := l.Lines()
	lines[0] = "mutated"
	assert.Equal(t, "       one", l.Lines()[0])
}

func TestInit(t *testing.T) {
	defer func() {
		Logger.SetLevel(logrus.InfoLevel)
		Logger.Formatter = &logrus.TextFormatter{}
	}()

	require.NoError(t, Init("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Logger.Formatter)

	require.NoError(t, Init("warn", "text"))
	assert.IsType(t, &logrus.TextFormatter{}, Logger.Formatter)

	assert.Error(t, Init("loud", "text"))
	assert.Error(t, Init("info", "xml"))
}

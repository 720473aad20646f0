package logging

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{
		component:       "test",
		consoleLogger:   log.New(&buf, "", 0),
		minConsoleLevel: WARN,
	}

	l.Info("скрыто %d", 1)
	l.Warn("видно %d", 2)
	l.Error("ошибка")

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [test] видно 2")
	assert.Contains(t, out, "[ERROR] [test] ошибка")
}

func TestLoggerManager_Components(t *testing.T) {
	lm := newLoggerManager()

	a, err := lm.GetLogger("guard")
	require.NoError(t, err)
	b, err := lm.GetLogger("guard")
	require.NoError(t, err)
	assert.Same(t, a, b, "логгер компонента создаётся один раз")

	_, err = lm.GetLogger("api")
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "guard"}, lm.ListComponents())

	require.NoError(t, lm.SetLogLevel("guard", ERROR, ERROR))
	assert.Error(t, lm.SetLogLevel("missing", INFO, INFO))

	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}

func TestLoggerManager_ComponentLevels(t *testing.T) {
	lm := newLoggerManager()

	existing, err := lm.GetLogger(ComponentGuard)
	require.NoError(t, err)

	levels, err := ParseComponentLevels(map[string]string{ComponentGuard: "debug", ComponentSponge: "warn"})
	require.NoError(t, err)
	lm.SetComponentLevels(levels)

	assert.Equal(t, DEBUG, existing.minConsoleLevel)

	created, err := lm.GetLogger(ComponentSponge)
	require.NoError(t, err)
	assert.Equal(t, WARN, created.minConsoleLevel)

	_, err = ParseComponentLevels(map[string]string{ComponentAPI: "loud"})
	assert.Error(t, err)
}

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uerrors "github.com/YuminosukeSato/uboost/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	logger := NewTestLogger(LevelDebug)

	logger.Debug("stage fitted", IterationKey, 3, LossKey, 0.25)
	logger.Info("Training started", OperationKey, "fit")
	logger.Warn("staged probabilities unavailable", EstimatorIDKey, "knn")
	logger.Error("Fit failed", fmt.Errorf("boom"), OperationKey, "fit")

	assert.True(t, logger.ContainsMessage("stage fitted"))
	assert.True(t, logger.ContainsField(IterationKey, 3.0))
	assert.True(t, logger.ContainsField(OperationKey, "fit"))
	assert.True(t, logger.ContainsField(ErrAttrKey, "boom"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.Equal(t, "WARN", entries[2]["level"])
}

func TestTestLoggerWithAndLevel(t *testing.T) {
	logger := NewTestLogger(LevelInfo)
	child := logger.With(ModelNameKey, "GradientBoostingClassifier")

	child.Debug("hidden")
	child.Info("visible")

	assert.False(t, logger.ContainsMessage("hidden"))
	assert.True(t, logger.ContainsField(ModelNameKey, "GradientBoostingClassifier"))
	assert.False(t, child.Enabled(context.Background(), LevelDebug))
	assert.True(t, child.Enabled(context.Background(), LevelError))

	logger.Clear()
	assert.Empty(t, logger.String())
}

func TestTestLoggerConcurrent(t *testing.T) {
	logger := NewTestLogger(LevelDebug)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			named := logger.With(WorkerIDKey, w)
			for i := 0; i < 50; i++ {
				named.Info("tick", IterationKey, i)
			}
		}(w)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 400)
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.Debug("not emitted")
	logger.With(ModelNameKey, "AdaBoostClassifier").Info("Training completed", AccuracyKey, 0.9, "dangling")
	logger.Error("Fit failed", errors.New("bad input"), OperationKey, "fit")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "Training completed", first["message"])
	assert.Equal(t, "AdaBoostClassifier", first[ModelNameKey])
	assert.Equal(t, 0.9, first[AccuracyKey])
	assert.NotContains(t, first, "dangling")

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "bad input", second["error"])
	assert.Equal(t, "error", second["level"])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
}

func TestProviderSwap(t *testing.T) {
	p := NewTestLoggerProvider(LevelDebug)
	SetProvider(p)
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo))

	GetLoggerWithName("report").Info("fitted", DurationMsKey, 12)
	assert.True(t, p.Logger().ContainsField(ComponentKey, "report"))

	SetLevel(LevelError)
	GetLogger().Info("dropped")
	assert.False(t, p.Logger().ContainsMessage("dropped"))
}

func TestWarningsRouteToProvider(t *testing.T) {
	p := NewTestLoggerProvider(LevelDebug)
	SetProvider(p)
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo))

	uerrors.Warn(uerrors.NewUndefinedMetricWarning("roc_auc", "only one class present", 0.5))
	assert.True(t, p.Logger().ContainsField("warning.type", "UndefinedMetricWarning"))
}

func TestZerologProviderNamedLoggersAreCached(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelDebug)
	a := p.GetLoggerWithName("ensemble")
	b := p.GetLoggerWithName("ensemble")
	assert.Same(t, a, b)

	a.Debug("stage", IterationKey, 1)
	assert.Contains(t, buf.String(), `"ml.component":"ensemble"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestErrFmtHandlerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Error("Fit failed", ErrAttr(uerrors.NewValueError("Fit", "bad")))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, StacktraceAttrKey)
}

func TestToLogLevelPanicsOnUnknown(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ToLogLevel("debug"))
	assert.Panics(t, func() { ToLogLevel("loud") })
}

func TestSlogLoggerError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil)))).
		With(ComponentKey, "report")

	logger.Error("Training failed", uerrors.NewValueError("Fit", "bad"), EstimatorIDKey, "ada")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "report", entry[ComponentKey])
	assert.Equal(t, "ada", entry[EstimatorIDKey])
	assert.Contains(t, entry, ErrAttrKey)
	assert.Contains(t, entry, StacktraceAttrKey)
	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
}

package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/agentstation/inkwell/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	original := *logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	buf := &bytes.Buffer{}
	logging.SetDefault(zerolog.New(buf).Level(zerolog.DebugLevel))

	logging.Info().Msg("info message")
	logging.Warn().Msg("warning message")

	output := buf.String()
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warning message")
}

func TestOrDefault(t *testing.T) {
	assert.Same(t, logging.Default(), logging.OrDefault(nil))

	nop := logging.NewNopLogger()
	assert.Same(t, nop, logging.OrDefault(nop))
}

func TestComponentAddsName(t *testing.T) {
	tl := logging.NewTestLogger(t)
	logging.Component(tl.Logger, "reconciler").Info().Msg("hello")
	tl.AssertContains(t, `"component":"reconciler"`)
}

func TestContextLogger(t *testing.T) {
	tl := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithDraft(ctx, "local-123")
	ctx = logging.WithOperation(ctx, "commit")

	logging.FromContext(ctx).Info().Msg("test message")

	tl.AssertContains(t, `"draft_id":"local-123"`)
	tl.AssertContains(t, `"operation":"commit"`)
	tl.AssertContains(t, "test message")
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	//nolint:staticcheck // nil context is handled explicitly
	assert.Same(t, logging.Default(), logging.FromContext(nil))
	assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
}

func TestConfiguration(t *testing.T) {
	configs := []struct {
		name   string
		config *logging.Config
		check  func(t *testing.T, output string)
	}{
		{
			name:   "debug level",
			config: &logging.Config{Level: "debug", Format: "json", Output: "discard"},
			check: func(t *testing.T, output string) {
				assert.Contains(t, output, `"level":"debug"`)
			},
		},
		{
			name:   "error level only",
			config: &logging.Config{Level: "error", Format: "json", Output: "discard"},
			check: func(t *testing.T, output string) {
				assert.False(t, strings.Contains(output, `"level":"info"`))
			},
		},
		{
			name:   "default fields",
			config: &logging.Config{Level: "info", Format: "json", Output: "discard", Fields: map[string]any{"user_id": "42"}},
			check: func(t *testing.T, output string) {
				assert.Contains(t, output, `"user_id":"42"`)
			},
		},
	}

	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(originalLevel) })

	for _, tc := range configs {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.NewLoggerFromConfig(tc.config).Output(buf)

			logger.Debug().Msg("debug")
			logger.Info().Msg("info")
			logger.Error().Msg("error")

			tc.check(t, buf.String())
		})
	}
}

package guard_test

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/previewsim/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanOptions struct {
	Interval int
}

func TestValidate(t *testing.T) {
	listener := func(any) {}
	onSchema := guard.OnSchema("network.on", "typeChange", "netAvailable")
	optsSchema := guard.OnWithOptionsSchema("bluetooth.on", "BLEDeviceFind")
	offSchema := guard.OffSchema("network.off", "typeChange")

	tests := []struct {
		name       string
		schema     guard.Schema
		args       []any
		wantReason guard.Reason
		wantPos    int
	}{
		{name: "valid on", schema: onSchema, args: []any{"typeChange", listener}},
		{name: "valid on with options map", schema: optsSchema, args: []any{"BLEDeviceFind", map[string]any{"interval": 0}, listener}},
		{name: "valid on with a typed listener", schema: onSchema, args: []any{"typeChange", func(int) {}}},
		{name: "valid on with an error-first listener", schema: onSchema, args: []any{"typeChange", func(error, map[string]any) {}}},
		{name: "valid off without listener", schema: offSchema, args: []any{"typeChange"}},
		{name: "valid off with listener", schema: offSchema, args: []any{"typeChange", listener}},
		{
			name:       "four arguments where three are expected",
			schema:     optsSchema,
			args:       []any{"BLEDeviceFind", map[string]any{}, listener, "extra"},
			wantReason: guard.ReasonArity,
			wantPos:    -1,
		},
		{name: "no arguments", schema: onSchema, args: nil, wantReason: guard.ReasonArity, wantPos: -1},
		{name: "unknown event", schema: onSchema, args: []any{"nope", listener}, wantReason: guard.ReasonUnknownEvent, wantPos: 0},
		{name: "event name not a string", schema: onSchema, args: []any{42, listener}, wantReason: guard.ReasonType, wantPos: 0},
		{name: "listener not a function", schema: onSchema, args: []any{"typeChange", "cb"}, wantReason: guard.ReasonType, wantPos: 1},
		{name: "nil listener", schema: onSchema, args: []any{"typeChange", nil}, wantReason: guard.ReasonType, wantPos: 1},
		{name: "options not an object", schema: optsSchema, args: []any{"BLEDeviceFind", "opts", listener}, wantReason: guard.ReasonType, wantPos: 1},
		{name: "options struct", schema: optsSchema, args: []any{"BLEDeviceFind", &scanOptions{Interval: 5}, listener}, wantReason: guard.ReasonType, wantPos: 1},
		{name: "options map with int keys", schema: optsSchema, args: []any{"BLEDeviceFind", map[int]any{1: 5}, listener}, wantReason: guard.ReasonType, wantPos: 1},
		{name: "nil typed listener", schema: onSchema, args: []any{"typeChange", (func(any))(nil)}, wantReason: guard.ReasonType, wantPos: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := guard.Validate(tt.args, tt.schema)
			if tt.wantReason == "" {
				assert.True(t, outcome.OK(), "validation MUST pass: %v", outcome.Err())
				assert.NoError(t, outcome.Err())
				return
			}
			require.False(t, outcome.OK(), "validation MUST fail")
			assert.Equal(t, tt.wantReason, outcome.Violation.Reason)
			assert.Equal(t, tt.wantPos, outcome.Violation.Position)
		})
	}
}

func TestValidate_IsDeterministic(t *testing.T) {
	schema := guard.OnWithOptionsSchema("bluetooth.on", "BLEDeviceFind")
	args := []any{"key", map[string]any{}, func(any) {}, "extra"}

	first := guard.Validate(args, schema)
	second := guard.Validate(args, schema)
	assert.Equal(t, first, second, "same input MUST yield the same outcome")
	assert.ErrorIs(t, first.Err(), guard.ErrArity)
}

func TestViolation_Error(t *testing.T) {
	v := &guard.Violation{Schema: "network.on", Reason: guard.ReasonType, Position: 1, Detail: "listener must be function, got string"}
	assert.Equal(t, "network.on: wrong type at position 2: listener must be function, got string", v.Error())

	v = &guard.Violation{Reason: guard.ReasonUnknownEvent}
	assert.Equal(t, "unknown event name", v.Error())
	assert.ErrorIs(t, v, guard.ErrUnknownEvent)
	assert.NotErrorIs(t, v, guard.ErrArity)
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	ok := guard.Report(logger, guard.Validate([]any{"typeChange"}, guard.OnSchema("network.on", "typeChange")))
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "wrong argument count")

	assert.True(t, guard.Report(logger, guard.Outcome{}))
	assert.NotPanics(t, func() {
		guard.Report(nil, guard.Outcome{Violation: &guard.Violation{Reason: guard.ReasonArity}})
	})
}

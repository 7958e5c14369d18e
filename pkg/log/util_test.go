package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestToFields(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		input    []any
		wantKeys []string
	}{
		{"empty input", nil, nil},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}, []string{"a", "b", "c"}},
		{"duration", []any{"timeout", time.Second}, []string{"timeout"}},
		{"error only", []any{boom}, []string{"error"}},
		{"field passthrough", []any{zap.String("x", "y"), "num", 42}, []string{"x", "num"}},
		{"odd number of args", []any{"key1", "val1", "key2"}, []string{"key1", "arg#2"}},
		{"non-string key", []any{123, "value"}, []string{"invalid_key_1"}},
		{"nil value", []any{"a", nil}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)
			require.Len(t, fields, len(tt.wantKeys))
			for i, f := range fields {
				assert.Equal(t, tt.wantKeys[i], f.Key)
			}
		})
	}
}

func TestSetLevelRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, SetLevel("loud"))
	assert.NoError(t, SetLevel("debug"))
}

package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{" notice ", NoticeLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStdLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(false, NoticeLevel).WithOutput(log.New(&buf, "", 0))

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Notice("notice %d", 3)
	l.Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[NOTICE] notice 3")
	assert.Contains(t, out, "[ERROR]  error 4")
}

func TestStdLogger_NamedAndChain(t *testing.T) {
	var buf bytes.Buffer
	base := NewStdLogger(false, DebugLevel).WithOutput(log.New(&buf, "", 0))

	l := base.Named("payer").Named("approve")
	l.InfoWithChain(84532, "approved %s", "0xabc")
	l.DebugWithChain(999999, "unknown chain")

	out := buf.String()
	assert.Contains(t, out, "[INFO]   [BSEP]  [payer.approve] approved 0xabc")
	assert.Contains(t, out, "[DEBUG]  [payer.approve] unknown chain")
}

func TestEmptyLogger(t *testing.T) {
	var l Logger = &EmptyLogger{}
	assert.Equal(t, l, l.Named("anything"))
	assert.NotPanics(t, func() {
		l.Info("x")
		l.ErrorWithChain(1, "y %d", 2)
	})
}

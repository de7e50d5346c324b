package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
		level      string
		wantErr    bool
	}{
		{name: "json output", jsonOutput: true, level: "info"},
		{name: "console output", jsonOutput: false, level: "debug"},
		{name: "default level", jsonOutput: false, level: ""},
		{name: "invalid level", jsonOutput: false, level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := Logger
			t.Cleanup(func() {
				Logger = previous
				JSONOutput = false
			})

			err := Initialize(tt.jsonOutput, tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)
		})
	}
}

func TestOrDefault(t *testing.T) {
	injected := zaptest.NewLogger(t).Sugar()
	assert.Same(t, injected, OrDefault(injected, "store"))
	assert.NotNil(t, OrDefault(nil, "store"))
}

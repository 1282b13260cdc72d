package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSetRejectsUnknownKey(t *testing.T) {
	err := runConfigSet("flanks.promotor_up", "1500")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestConfigValueCoercion(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{"flanks.promoter_up", "1500", int64(1500), false},
		{"flanks.promoter_down", "2000", int64(2000), false},
		{"flanks.promoter_up", "-5", nil, true},
		{"flanks.promoter_up", "lots", nil, true},
		{"assembly", "GRCm39", "GRCm39", false},
		{"assembly", "GRCh38", nil, true}, // not registered
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			coerce, ok := configKeys[tt.key]
			require.True(t, ok)
			got, err := coerce(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

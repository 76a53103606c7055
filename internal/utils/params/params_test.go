package params_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/fxtask/internal/utils/params"
)

func TestParseSpecs(t *testing.T) {
	tests := map[string]struct {
		specs     []string
		expParams map[string]any
		expErr    bool
	}{
		"No specs should return an empty map.": {
			specs:     nil,
			expParams: map[string]any{},
		},

		"Scalar values should be decoded with their type.": {
			specs: []string{"strength=0.8", "steps=30", "hd=true", "style=anime"},
			expParams: map[string]any{
				"strength": 0.8,
				"steps":    30,
				"hd":       true,
				"style":    "anime",
			},
		},

		"Values with equals should keep everything after the first one.": {
			specs:     []string{"prompt=a=b"},
			expParams: map[string]any{"prompt": "a=b"},
		},

		"Empty and null values should be kept as strings.": {
			specs:     []string{"negative=", "seed=null"},
			expParams: map[string]any{"negative": "", "seed": "null"},
		},

		"Non scalar values should be kept as the raw string.": {
			specs:     []string{"colors=[red, blue]"},
			expParams: map[string]any{"colors": "[red, blue]"},
		},

		"Repeated keys should keep the last one.": {
			specs:     []string{"style=anime", "style=pixar"},
			expParams: map[string]any{"style": "pixar"},
		},

		"A spec without value should fail.": {
			specs:  []string{"style"},
			expErr: true,
		},

		"An empty spec should fail.": {
			specs:  []string{""},
			expErr: true,
		},

		"An invalid key should fail.": {
			specs:  []string{"1style=anime"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			got, err := params.ParseSpecs(test.specs)
			if test.expErr {
				assert.Error(err)
				return
			}

			require.NoError(t, err)
			assert.Equal(test.expParams, got)
		})
	}
}

func TestMergeMaps(t *testing.T) {
	tests := map[string]struct {
		base     map[string]any
		override map[string]any
		exp      map[string]any
	}{
		"Both empty should return an empty map.": {
			exp: map[string]any{},
		},

		"Override values should win.": {
			base:     map[string]any{"style": "anime", "strength": 0.5},
			override: map[string]any{"strength": 0.9},
			exp:      map[string]any{"style": "anime", "strength": 0.9},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, params.MergeMaps(test.base, test.override))
		})
	}
}

package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentSchemesFrom(t *testing.T) {
	t.Parallel()

	for name, tt := range map[string]struct {
		env     map[string]string
		want    []string
		wantSet bool
	}{
		"unset": {
			env: map[string]string{},
		},
		"empty_clears": {
			env:     map[string]string{CurrentSchemes: ""},
			wantSet: true,
		},
		"single": {
			env:     map[string]string{CurrentSchemes: "stage"},
			want:    []string{"stage"},
			wantSet: true,
		},
		"ordered_list": {
			env:     map[string]string{CurrentSchemes: "shorter_timeouts,stage-dev,firefox"},
			want:    []string{"shorter_timeouts", "stage-dev", "firefox"},
			wantSet: true,
		},
		"ending_comma_and_spaces": {
			env:     map[string]string{CurrentSchemes: " a , b,"},
			want:    []string{"a", "b"},
			wantSet: true,
		},
	} {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, set := CurrentSchemesFrom(MapLookup(tt.env))
			assert.Equal(t, tt.wantSet, set)
			assert.Equal(t, tt.want, got)
		})
	}
}

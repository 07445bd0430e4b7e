package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		wantKind   Kind
		wantErr    bool
	}{
		{
			name:       "recognized kind",
			identifier: "Patient",
			wantKind:   KindPatient,
		},
		{
			name:       "another recognized kind",
			identifier: "Observation",
			wantKind:   KindObservation,
		},
		{
			name:       "unknown identifier",
			identifier: "Spaceship",
			wantErr:    true,
		},
		{
			name:       "case sensitive",
			identifier: "patient",
			wantErr:    true,
		},
		{
			name:       "empty identifier",
			identifier: "",
			wantErr:    true,
		},
	}

	reg := Default()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := reg.Resolve(tt.identifier)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidType)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestRegistry_ClosedSet(t *testing.T) {
	// Реестр распознает ровно то, что в него положили
	reg := New(KindPatient)

	_, err := reg.Resolve("Patient")
	require.NoError(t, err)

	_, err = reg.Resolve("Observation")
	assert.ErrorIs(t, err, ErrInvalidType)

	assert.Len(t, reg.Kinds(), 1)
}

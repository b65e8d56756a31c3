package member

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestFieldsValidate(t *testing.T) {
	tests := []struct {
		name  string
		in    Fields
		field string
	}{
		{name: "ok", in: Fields{Name: "Ann", Gender: Female, Birthday: ptr("1990-01-02")}},
		{name: "blank name", in: Fields{Name: "  ", Gender: Male}, field: "name"},
		{name: "unknown gender", in: Fields{Name: "Ann", Gender: "other"}, field: "gender"},
		{name: "empty gender", in: Fields{Name: "Ann"}, field: "gender"},
		{name: "bad birthday", in: Fields{Name: "Ann", Gender: Female, Birthday: ptr("02/01/1990")}, field: "birthday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestFieldsNormalize(t *testing.T) {
	f := Fields{Name: "Ann", Birthday: ptr(""), Phone: ptr("555"), Email: ptr(""), Tag: nil}.Normalize()
	assert.Nil(t, f.Birthday)
	assert.Nil(t, f.Email)
	assert.Nil(t, f.Tag)
	require.NotNil(t, f.Phone)
	assert.Equal(t, "555", *f.Phone)
	assert.Equal(t, "", Text(f.Tag))
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator_CustomRules(t *testing.T) {
	require.NotPanics(t, func() { newValidator() })

	type tagged struct {
		Slug string `json:"slug" validate:"slug"`
		Role string `json:"role" validate:"role"`
	}
	assert.NoError(t, validateStruct(tagged{Slug: "sci-fi_2", Role: "moderator"}))
	assert.NoError(t, validateStruct(tagged{Slug: "x"}), "empty role means unchanged")

	cases := []struct {
		in    tagged
		field string
	}{
		{tagged{Slug: "no spaces", Role: "user"}, "slug"},
		{tagged{Slug: "ok", Role: "root"}, "role"},
	}
	for _, tc := range cases {
		err := validateStruct(tc.in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tc.field, verr.Field)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

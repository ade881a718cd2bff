package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/courses-api/internal/apperr"
	"github.com/aanand-mishra/courses-api/internal/types"
)

func TestStructMissingFields(t *testing.T) {
	err := Struct(types.NewCourse{Duration: "4 weeks"})
	require.Error(t, err)

	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	assert.Equal(t, "field title is required, field shortDescription is required", err.Error())
}

func TestStructOnlyOneMissing(t *testing.T) {
	err := Struct(types.NewCourse{Title: "Algebra"})
	require.Error(t, err)

	assert.Equal(t, "field shortDescription is required", err.Error())
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(types.NewCourse{Title: "Algebra", ShortDescription: "intro"}))
}

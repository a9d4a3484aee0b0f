package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	cfgErr := NewConfigurationError("cron %q does not parse", "* broken")
	assert.True(t, IsConfigurationError(cfgErr))
	assert.False(t, IsExecutionError(cfgErr))
	assert.Contains(t, cfgErr.Error(), "does not parse")

	nf := NewNotFoundError("task", 42)
	assert.True(t, IsNotFoundError(nf))
	assert.Equal(t, "task not found: 42", nf.Error())

	te := NewTerminationError("cancelled by operator")
	assert.True(t, IsTerminationError(te))
	assert.False(t, IsExecutionError(te))
}

func TestExecutionErrorWrapping(t *testing.T) {
	cause := errors.New("exit status 1")
	ee := WrapExecutionError(cause, "script failed")
	assert.True(t, IsExecutionError(ee))
	assert.ErrorIs(t, ee, cause)
	assert.Contains(t, ee.Error(), "script failed")

	bare := WrapExecutionError(cause, "")
	assert.Equal(t, cause.Error(), bare.Error())
}

func TestTaxonomySurvivesWrapping(t *testing.T) {
	inner := NewConfigurationError("interval must be positive")
	wrapped := fmt.Errorf("creating task: %w", inner)
	assert.True(t, IsConfigurationError(wrapped))
	assert.False(t, IsNotFoundError(wrapped))
}

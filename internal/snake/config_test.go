package snake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfigBuilder_Build_MintsSessionID(t *testing.T) {
	cfg, err := NewAppConfigBuilder().Build()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.SessionID)

	other, err := NewAppConfigBuilder().Build()
	require.NoError(t, err)
	assert.NotEqual(t, cfg.SessionID, other.SessionID)
}

func TestAppConfigBuilder_WithSessionID_Overrides(t *testing.T) {
	cfg, err := NewAppConfigBuilder().WithSessionID("fixed-session").Build()
	require.NoError(t, err)
	assert.Equal(t, "fixed-session", cfg.SessionID)
}

func TestAppConfigBuilder_Build_InvalidConfigStillReturnsErrorBeforeValidationNotAfter(t *testing.T) {
	_, err := NewAppConfigBuilder().WithRows(0).Build()
	assert.Error(t, err)
}

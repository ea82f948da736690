package sim

import (
	"testing"

	"cuequiz-service/internal/app"
	"cuequiz-service/internal/catalog"
	"cuequiz-service/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoScriptScores(t *testing.T) {
	res, err := Run(catalog.Default(), Demo(), app.Options{}, zerolog.Nop())
	require.NoError(t, err)

	require.Equal(t, domain.PhaseComplete, res.Final.Phase)
	require.NotNil(t, res.Final.Summary)
	sum := res.Final.Summary
	assert.Equal(t, 3, sum.Correct)
	assert.Equal(t, 2, sum.Incorrect)
	assert.Equal(t, 0, sum.Skipped)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 60, sum.Percentage)
}

func TestIdleScriptSkipsEverything(t *testing.T) {
	script, err := ParseScript([]byte("duration: 40\ntick: 0.5\n"))
	require.NoError(t, err)

	res, err := Run(catalog.Default(), script, app.Options{}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, res.Final.Summary)
	assert.Equal(t, 5, res.Final.Summary.Skipped)
	assert.Equal(t, 0, res.Final.Summary.Percentage)
}

func TestPermissionDeniedStops(t *testing.T) {
	script, err := ParseScript([]byte("duration: 40\npermission: false\n"))
	require.NoError(t, err)

	res, err := Run(catalog.Default(), script, app.Options{}, zerolog.Nop())
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.True(t, res.Final.Denied)
	assert.Equal(t, domain.PhaseInstructions, res.Final.Phase)
}

func TestRejectedStepsAreTraced(t *testing.T) {
	script, err := ParseScript([]byte(`
duration: 10
steps:
  - {at: 3, action: submit, question: 1}
  - {at: 4, action: dance}
`))
	require.NoError(t, err)

	res, err := Run(catalog.Default(), script, app.Options{}, zerolog.Nop())
	require.NoError(t, err)

	var rejected int
	for _, ev := range res.Trace {
		if ev.Kind == "step" && ev.Detail != "submit" && ev.Detail != "dance" {
			rejected++
		}
	}
	assert.Equal(t, 2, rejected)
}

func TestParseScriptRequiresDuration(t *testing.T) {
	_, err := ParseScript([]byte("tick: 1\n"))
	assert.Error(t, err)
}

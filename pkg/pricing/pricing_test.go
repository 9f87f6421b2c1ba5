package pricing

import (
	"errors"
	"testing"

	"github.com/pario-ai/pariopipe/pkg/config"
	"github.com/pario-ai/pariopipe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCost(t *testing.T) {
	tbl, err := New([]models.PricingEntry{{Model: "m1", InputRate: 0.000003, OutputRate: 0.000015}})
	require.NoError(t, err)

	cost, err := tbl.Cost("m1", 100, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0.00105, cost, 1e-12)

	cost, err = tbl.Cost("m1", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, cost)
}

func TestLookupPrefix(t *testing.T) {
	tbl, err := New([]models.PricingEntry{
		{Model: "claude", InputRate: 1, OutputRate: 1},
		{Model: "claude-3-5-haiku", InputRate: 0.5, OutputRate: 2},
	})
	require.NoError(t, err)

	e, err := tbl.Lookup("claude-3-5-haiku-20241022")
	require.NoError(t, err)
	assert.Equal(t, 0.5, e.InputRate)
	assert.Equal(t, "claude-3-5-haiku-20241022", e.Model)

	e, err = tbl.Lookup("claude-opus-4")
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.InputRate)
}

func TestLookupUnknown(t *testing.T) {
	tbl, err := New(nil)
	require.NoError(t, err)

	_, err = tbl.Cost("gpt-4o", 10, 10)
	var unk *UnknownModelPricingError
	require.ErrorAs(t, err, &unk)
	assert.Equal(t, "gpt-4o", unk.Model)
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestNewRejectsBadEntries(t *testing.T) {
	_, err := New([]models.PricingEntry{{Model: "", InputRate: 1}})
	assert.Error(t, err)

	_, err = New([]models.PricingEntry{{Model: "m", InputRate: -0.1}})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	tbl, err := FromConfig(config.Default())
	require.NoError(t, err)
	assert.Contains(t, tbl.Models(), "claude-3-5-sonnet-20241022")
	assert.Equal(t, len(config.Default().Pricing), tbl.Len())

	cost, err := tbl.Cost("claude-3-5-sonnet-20241022", 100, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0.00105, cost, 1e-12)
}

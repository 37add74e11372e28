package plant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfarm-sim/printfarm-sim/sim"
)

func TestDefectRule_EveryFifthItem(t *testing.T) {
	// GIVEN the reference rule and a job of twelve items
	rule, err := NewDefectRule("Item.Position % 5 == 0")
	require.NoError(t, err)
	items := make([]*Item, 12)
	for i := range items {
		items[i] = &Item{ID: 100 + i}
	}
	NewJob(1, 0, items, BuildTimeSum)

	// WHEN each item is evaluated
	var rejected []int
	for _, it := range items {
		bad, err := rule.Defective(it, 0, 0)
		require.NoError(t, err)
		if bad {
			rejected = append(rejected, it.Position)
		}
	}

	// THEN positions 5 and 10 are rejected
	assert.Equal(t, []int{5, 10}, rejected)
}

func TestDefectRule_Empty_NeverRejects(t *testing.T) {
	rule, err := NewDefectRule("")
	require.NoError(t, err)
	bad, err := rule.Defective(&Item{Position: 5}, 0, 0)
	require.NoError(t, err)
	assert.False(t, bad)
}

func TestDefectRule_JobAndVolumeFacts(t *testing.T) {
	rule, err := NewDefectRule("Job.Rework && Item.Volume > 999")
	require.NoError(t, err)
	it := &Item{Height: 10, Width: 10, Depth: 10}
	j := NewJob(4, 0, []*Item{it}, BuildTimeSum)

	bad, _ := rule.Defective(it, 0, 0)
	assert.False(t, bad)
	j.Rework = true
	bad, _ = rule.Defective(it, 0, 0)
	assert.True(t, bad)
}

func TestNewDefectRule_InvalidExpression_ConfigurationError(t *testing.T) {
	for _, src := range []string{"Item.Position +", "Item.Colour == 1", "Item.Position + 1"} {
		_, err := NewDefectRule(src)
		var cfgErr *sim.ConfigurationError
		assert.True(t, errors.As(err, &cfgErr), "source %q: %v", src, err)
	}
}

func TestDefectRule_Draw(t *testing.T) {
	rule, err := NewDefectRule("Draw < 0.05")
	require.NoError(t, err)

	bad, err := rule.Defective(&Item{}, 0, 0.01)
	require.NoError(t, err)
	assert.True(t, bad)
	bad, _ = rule.Defective(&Item{}, 0, 0.5)
	assert.False(t, bad)
}

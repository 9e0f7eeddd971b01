package policy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

func TestApplyFiltersBelowFloor(t *testing.T) {
	p := Policy{MinConfidence: 70.0, MaxLabels: 10}

	got := p.Apply([]results.Label{
		{Name: "Cat", Confidence: 99.1},
		{Name: "Animal", Confidence: 85.0},
		{Name: "Pet", Confidence: 40.0},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Cat", got[0].Name)
	assert.Equal(t, "Animal", got[1].Name)
	for _, l := range got {
		assert.GreaterOrEqual(t, l.Confidence, p.MinConfidence)
	}
}

func TestApplyKeepsFloorBoundary(t *testing.T) {
	p := Policy{MinConfidence: 70.0, MaxLabels: 10}

	got := p.Apply([]results.Label{{Name: "Edge", Confidence: 70.0}})
	require.Len(t, got, 1)
	assert.Equal(t, "Edge", got[0].Name)
}

func TestApplyOrdersDeterministically(t *testing.T) {
	p := Policy{MinConfidence: 0, MaxLabels: 10}

	got := p.Apply([]results.Label{
		{Name: "Banana", Confidence: 90},
		{Name: "Apple", Confidence: 90},
		{Name: "Cherry", Confidence: 95},
	})

	require.Len(t, got, 3)
	assert.Equal(t, "Cherry", got[0].Name)
	assert.Equal(t, "Apple", got[1].Name)
	assert.Equal(t, "Banana", got[2].Name)
}

func TestApplyTruncatesToMax(t *testing.T) {
	p := Policy{MinConfidence: 50, MaxLabels: 3}

	var in []results.Label
	for i := 0; i < 8; i++ {
		in = append(in, results.Label{Name: fmt.Sprintf("L%d", i), Confidence: 60 + float64(i)})
	}

	got := p.Apply(in)
	require.Len(t, got, 3)
	assert.Equal(t, "L7", got[0].Name)
	assert.Equal(t, "L6", got[1].Name)
	assert.Equal(t, "L5", got[2].Name)
}

func TestApplyEmptyAndAllFiltered(t *testing.T) {
	p := Default()

	got := p.Apply(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = p.Apply([]results.Label{{Name: "Weak", Confidence: 10}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := []results.Label{
		{Name: "Zebra", Confidence: 71},
		{Name: "Ant", Confidence: 99},
		{Name: "Moth", Confidence: 12},
	}

	Default().Apply(in)

	assert.Equal(t, "Zebra", in[0].Name)
	assert.Equal(t, "Ant", in[1].Name)
	assert.Equal(t, "Moth", in[2].Name)
}

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, 70.0, p.MinConfidence)
	assert.Equal(t, 10, p.MaxLabels)
}

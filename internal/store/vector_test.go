package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToVectorLiteral(t *testing.T) {
	got := toVectorLiteral([]float32{1, 2.5, -3})
	assert.Equal(t, "[1,2.5,-3]", got)
}

func TestToVectorLiteral_Empty(t *testing.T) {
	assert.Equal(t, "[]", toVectorLiteral(nil))
}

func TestParseVectorLiteral(t *testing.T) {
	got := parseVectorLiteral("[1,2.5,-3]")
	assert.Equal(t, []float32{1, 2.5, -3}, got)
}

func TestParseVectorLiteral_RoundTrip(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3, -0.5}
	got := parseVectorLiteral(toVectorLiteral(in))
	assert.InDeltaSlice(t, in, got, 1e-6)
}

func TestParseVectorLiteral_Empty(t *testing.T) {
	assert.Nil(t, parseVectorLiteral("[]"))
}

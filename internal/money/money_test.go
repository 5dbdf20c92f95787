package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	assert.Equal(t, 12.35, Round(12.345))
	assert.Equal(t, 0.3, Round(0.1+0.2))
	assert.Equal(t, 40.0, Round(40))
}

func TestLineTotalAndSum(t *testing.T) {
	assert.Equal(t, 59.97, LineTotal(19.99, 3))
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
	assert.Equal(t, 0.0, Sum())
}

func TestTotal(t *testing.T) {
	assert.Equal(t, 150.5, Total(100.5, 50, 0, 0))
	assert.Equal(t, 145.5, Total(100.5, 50, 10, 5))
}

package datastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloatComparators(t *testing.T) {
	testCases := []struct {
		name   string
		a, b   float64
		le, gt bool
	}{
		{name: "equal", a: 300, b: 300, le: true},
		{name: "rounding noise above", a: 300 + EPS/2, b: 300, le: true},
		{name: "strictly less", a: 299.5, b: 300, le: true},
		{name: "strictly greater", a: 300.001, b: 300, gt: true},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.le, Le(tt.a, tt.b))
			assert.Equal(t, tt.gt, Gt(tt.a, tt.b))
		})
	}
}

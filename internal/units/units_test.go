package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMMToPx(t *testing.T) {
	assert.InDelta(t, 3.7795, MMToPx(1), 1e-4)
	assert.InDelta(t, 96.0, MMToPx(25.4), 1e-9)
	assert.Equal(t, 0.0, MMToPx(0))
}

func TestRoundTrip(t *testing.T) {
	for _, mm := range []float64{0, 1, 53.98, 85.6, 210, 297, -4.5} {
		got := PxToMM(MMToPx(mm))
		if math.Abs(got-mm) > 1e-9 {
			t.Fatalf("round trip %v => %v", mm, got)
		}
	}
}

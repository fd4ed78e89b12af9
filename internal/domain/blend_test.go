package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombinedProbability(t *testing.T) {
	w := DefaultBlendWeights()

	t.Run("quiet conditions score near zero", func(t *testing.T) {
		p := CombinedProbability(BlendInputs{
			Dst: 5, Bz: 3, Kp: 1, SolarWindSpeed: 350, CloudCover: 0,
		}, w)
		assert.Less(t, p, 10.0)
	})

	t.Run("storm conditions score high", func(t *testing.T) {
		p := CombinedProbability(BlendInputs{
			Dst: -150, Bz: -18, Kp: 8, SolarWindSpeed: 700, CloudCover: 0,
		}, w)
		assert.Greater(t, p, 80.0)
	})

	t.Run("cloud cover attenuates", func(t *testing.T) {
		in := BlendInputs{Dst: -100, Bz: -10, Kp: 6, SolarWindSpeed: 500}

		clear := CombinedProbability(in, w)
		in.CloudCover = 90
		overcast := CombinedProbability(in, w)

		assert.Less(t, overcast, clear)
		// Full attenuation at 100% cover with cloud_attenuation=1.
		wFull := w
		wFull.CloudAttenuation = 1
		in.CloudCover = 100
		assert.Equal(t, 0.0, CombinedProbability(in, wFull))
	})

	t.Run("fast wind amplifies up to the cap", func(t *testing.T) {
		in := BlendInputs{Dst: -50, Bz: -8, Kp: 5, SolarWindSpeed: 400}
		baseline := CombinedProbability(in, w)

		in.SolarWindSpeed = 600
		faster := CombinedProbability(in, w)
		assert.Greater(t, faster, baseline)

		in.SolarWindSpeed = 2000
		capped := CombinedProbability(in, w)
		assert.InDelta(t, baseline*w.SpeedBoostCap, capped, 1e-9)
	})

	t.Run("result clamped to 0..100", func(t *testing.T) {
		p := CombinedProbability(BlendInputs{
			Dst: -1000, Bz: -100, Kp: 9, SolarWindSpeed: 3000,
		}, w)
		assert.Equal(t, 100.0, p)
	})

	t.Run("zero weights yield zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CombinedProbability(BlendInputs{Kp: 9}, BlendWeights{}))
	})

	t.Run("northward Bz contributes nothing", func(t *testing.T) {
		south := CombinedProbability(BlendInputs{Bz: -15, SolarWindSpeed: 400}, w)
		north := CombinedProbability(BlendInputs{Bz: 15, SolarWindSpeed: 400}, w)
		assert.Greater(t, south, north)
		assert.Equal(t, 0.0, north)
	})
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		probability float64
		wantTier    int
		wantOK      bool
	}{
		{0, 0, false},
		{19, 0, false},
		{20, 20, true},
		{39, 20, true},
		{40, 40, true},
		{59, 40, true},
		{60, 60, true},
		{100, 60, true},
		{10000, 60, true},
	}

	for _, tt := range tests {
		tier, ok := TierFor(tt.probability)
		assert.Equal(t, tt.wantOK, ok, "probability %v", tt.probability)
		assert.Equal(t, tt.wantTier, tier, "probability %v", tt.probability)
	}
}

package domain

// BlendInputs are the real-time indices combined into a single per-position
// probability, independent of the OVATION grid path.
type BlendInputs struct {
	Dst            float64 // disturbance storm time index, nT (negative = storm)
	Bz             float64 // IMF north-south component, nT (negative = southward)
	Kp             float64 // planetary Kp, 0-9
	SolarWindSpeed float64 // km/s
	CloudCover     float64 // percent, 0-100
}

// BlendWeights calibrate the combined probability. They are configuration,
// not code: deployments tune them without a rebuild.
type BlendWeights struct {
	Kp  float64 `mapstructure:"kp"`
	Bz  float64 `mapstructure:"bz"`
	Dst float64 `mapstructure:"dst"`

	// BzSaturation and DstSaturation are the magnitudes (nT) at which the
	// southward Bz and negative Dst scores reach 100.
	BzSaturation  float64 `mapstructure:"bz_saturation"`
	DstSaturation float64 `mapstructure:"dst_saturation"`

	// SpeedBaseline is the solar wind speed (km/s) at which the speed factor
	// is neutral; SpeedBoostCap bounds how much fast wind can amplify.
	SpeedBaseline float64 `mapstructure:"speed_baseline"`
	SpeedBoostCap float64 `mapstructure:"speed_boost_cap"`

	// CloudAttenuation scales how strongly cloud cover suppresses the score:
	// 1.0 means full overcast zeroes it, 0 disables the term.
	CloudAttenuation float64 `mapstructure:"cloud_attenuation"`
}

// DefaultBlendWeights are the shipped calibration.
func DefaultBlendWeights() BlendWeights {
	return BlendWeights{
		Kp:               0.5,
		Bz:               0.3,
		Dst:              0.2,
		BzSaturation:     20,
		DstSaturation:    200,
		SpeedBaseline:    400,
		SpeedBoostCap:    1.5,
		CloudAttenuation: 0.8,
	}
}

// CombinedProbability blends geomagnetic indices into a calibrated 0-100
// visibility probability. Each index is scored to 0-100, the scores are
// weight-averaged, and solar wind speed and cloud cover modulate the result:
// fast wind amplifies up to the boost cap, heavy cloud cover attenuates.
func CombinedProbability(in BlendInputs, w BlendWeights) float64 {
	kpScore := clamp(in.Kp/9*100, 0, 100)
	bzScore := clamp(-in.Bz/w.BzSaturation*100, 0, 100)
	dstScore := clamp(-in.Dst/w.DstSaturation*100, 0, 100)

	total := w.Kp + w.Bz + w.Dst
	if total == 0 {
		return 0
	}
	base := (w.Kp*kpScore + w.Bz*bzScore + w.Dst*dstScore) / total

	if w.SpeedBaseline > 0 && in.SolarWindSpeed > 0 {
		factor := clamp(in.SolarWindSpeed/w.SpeedBaseline, 0.5, w.SpeedBoostCap)
		base *= factor
	}

	cloud := clamp(in.CloudCover, 0, 100)
	base *= 1 - cloud/100*w.CloudAttenuation

	return clamp(base, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

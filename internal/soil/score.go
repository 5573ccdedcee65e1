package soil

import (
	"errors"
	"fmt"
	"math"
)

// NeutralScore is returned when the score cannot be computed consistently.
const NeutralScore = 50.0

// ErrDegradedScore accompanies NeutralScore so callers can log and count it.
var ErrDegradedScore = errors.New("health score degraded to neutral value")

const (
	phCap       = 25.0
	phSlope     = 3.5
	ecCap       = 25.0
	moistureCap = 20.0
	nutrientCap = 10.0

	// Points lost per percentage point of moisture away from the band midpoint.
	moistureSlope = 0.5
)

// Components breaks a health score down by contribution. Each component is
// already clamped to its own cap.
type Components struct {
	PH       float64 `json:"ph"`
	EC       float64 `json:"ec"`
	Moisture float64 `json:"moisture"`
	NPK      float64 `json:"npk"`
}

// Total is the clamped, rounded sum of the components.
func (c Components) Total() float64 {
	return round2(clamp(c.PH+c.EC+c.Moisture+c.NPK, 0, 100))
}

// Score computes the 0-100 health score using the default profile.
func Score(r Reading) (float64, error) {
	return DefaultProfile.Score(r)
}

// Score computes the health score of r. It never fails: when the profile is
// missing a reference band or a component turns non-finite it returns
// NeutralScore together with an error wrapping ErrDegradedScore.
func (p *Profile) Score(r Reading) (float64, error) {
	c, err := p.Components(r)
	if err != nil {
		return NeutralScore, fmt.Errorf("%w: %v", ErrDegradedScore, err)
	}
	total := c.Total()
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return NeutralScore, fmt.Errorf("%w: non-finite total", ErrDegradedScore)
	}
	return total, nil
}

type references struct {
	phOptimum      float64
	ecSaturation   float64
	moistureLow    float64
	moistureHigh   float64
	nitrogenFull   float64
	phosphorusFull float64
	potassiumFull  float64
}

// references derives every scoring constant from the interpretation bands.
func (p *Profile) references() (references, error) {
	var refs references

	ph, err := p.optimalBand(PH)
	if err != nil {
		return refs, err
	}
	refs.phOptimum = (ph.Low + ph.High) / 2

	ec, ok := p.params[EC]
	if !ok || len(ec.Bands) == 0 {
		return refs, fmt.Errorf("no bands for %s", EC)
	}
	refs.ecSaturation = ec.Bands[len(ec.Bands)-1].Low
	if refs.ecSaturation <= 0 {
		return refs, fmt.Errorf("invalid %s saturation %g", EC, refs.ecSaturation)
	}

	moist, err := p.optimalBand(Moisture)
	if err != nil {
		return refs, err
	}
	refs.moistureLow, refs.moistureHigh = moist.Low, moist.High

	for _, n := range []struct {
		field Field
		dst   *float64
	}{
		{Nitrogen, &refs.nitrogenFull},
		{Phosphorus, &refs.phosphorusFull},
		{Potassium, &refs.potassiumFull},
	} {
		b, err := p.optimalBand(n.field)
		if err != nil {
			return refs, err
		}
		if b.High <= 0 {
			return refs, fmt.Errorf("invalid %s optimum %g", n.field, b.High)
		}
		*n.dst = b.High
	}
	return refs, nil
}

func (p *Profile) optimalBand(f Field) (Band, error) {
	param, ok := p.params[f]
	if !ok {
		return Band{}, fmt.Errorf("no parameter %s", f)
	}
	b, ok := param.Band(StatusOptimal)
	if !ok {
		return Band{}, fmt.Errorf("no optimal band for %s", f)
	}
	return b, nil
}

// Components returns the per-component breakdown of the score for r.
func (p *Profile) Components(r Reading) (Components, error) {
	refs, err := p.references()
	if err != nil {
		return Components{}, err
	}

	var c Components
	c.PH = clamp(phCap-math.Abs(r.PH-refs.phOptimum)*phSlope, 0, phCap)

	ecSlope := ecCap / refs.ecSaturation
	c.EC = clamp(ecCap-math.Min(r.EC, refs.ecSaturation)*ecSlope, 0, ecCap)

	if r.Moisture >= refs.moistureLow && r.Moisture <= refs.moistureHigh {
		c.Moisture = moistureCap
	} else {
		mid := (refs.moistureLow + refs.moistureHigh) / 2
		c.Moisture = clamp(moistureCap-math.Abs(r.Moisture-mid)*moistureSlope, 0, moistureCap)
	}

	c.NPK = nutrientScore(r.Nitrogen, refs.nitrogenFull) +
		nutrientScore(r.Phosphorus, refs.phosphorusFull) +
		nutrientScore(r.Potassium, refs.potassiumFull)

	for _, v := range []float64{c.PH, c.EC, c.Moisture, c.NPK} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Components{}, fmt.Errorf("non-finite component for %+v", r)
		}
	}
	return c, nil
}

func nutrientScore(v, full float64) float64 {
	return math.Min(v/full*nutrientCap, nutrientCap)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

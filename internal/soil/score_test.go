package soil

import (
	"errors"
	"math"
	"testing"
)

func optimalReading() Reading {
	return Reading{PH: 7.0, EC: 0.0, Moisture: 30, Nitrogen: 80, Phosphorus: 50, Potassium: 250, Microbial: 5, Temperature: 20}
}

func TestScore_AllComponentsMaxed(t *testing.T) {
	got, err := Score(optimalReading())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 100.00 {
		t.Errorf("Score = %v, want 100.00", got)
	}
}

func TestComponents(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Reading)
		check  func(c Components) float64
		want   float64
	}{
		{"ph optimum", func(r *Reading) { r.PH = 7.0 }, func(c Components) float64 { return c.PH }, 25},
		{"ph 6.0", func(r *Reading) { r.PH = 6.0 }, func(c Components) float64 { return c.PH }, 21.5},
		{"ph at domain edge 14", func(r *Reading) { r.PH = 14.0 }, func(c Components) float64 { return c.PH }, 0.5},
		{"ph at domain edge 0", func(r *Reading) { r.PH = 0 }, func(c Components) float64 { return c.PH }, 0.5},
		{"ph beyond zero crossing", func(r *Reading) { r.PH = 7.0 + 25.0/3.5 }, func(c Components) float64 { return c.PH }, 0},
		{"ph far beyond zero crossing", func(r *Reading) { r.PH = 20 }, func(c Components) float64 { return c.PH }, 0},
		{"ec zero", func(r *Reading) { r.EC = 0 }, func(c Components) float64 { return c.EC }, 25},
		{"ec 2", func(r *Reading) { r.EC = 2 }, func(c Components) float64 { return c.EC }, 12.5},
		{"ec saturation", func(r *Reading) { r.EC = 4 }, func(c Components) float64 { return c.EC }, 0},
		{"ec above saturation", func(r *Reading) { r.EC = 12 }, func(c Components) float64 { return c.EC }, 0},
		{"moisture band low edge", func(r *Reading) { r.Moisture = 25 }, func(c Components) float64 { return c.Moisture }, 20},
		{"moisture band high edge", func(r *Reading) { r.Moisture = 40 }, func(c Components) float64 { return c.Moisture }, 20},
		{"moisture just below band", func(r *Reading) { r.Moisture = 24 }, func(c Components) float64 { return c.Moisture }, 15.75},
		{"moisture just above band", func(r *Reading) { r.Moisture = 41 }, func(c Components) float64 { return c.Moisture }, 15.75},
		{"moisture dry", func(r *Reading) { r.Moisture = 0 }, func(c Components) float64 { return c.Moisture }, 3.75},
		{"moisture saturated", func(r *Reading) { r.Moisture = 100 }, func(c Components) float64 { return c.Moisture }, 0},
		{"npk half", func(r *Reading) { r.Nitrogen, r.Phosphorus, r.Potassium = 40, 25, 125 }, func(c Components) float64 { return c.NPK }, 15},
		{"npk capped", func(r *Reading) { r.Nitrogen, r.Phosphorus, r.Potassium = 500, 500, 500 }, func(c Components) float64 { return c.NPK }, 30},
		{"npk zero", func(r *Reading) { r.Nitrogen, r.Phosphorus, r.Potassium = 0, 0, 0 }, func(c Components) float64 { return c.NPK }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := optimalReading()
			tt.mutate(&r)
			c, err := DefaultProfile.Components(r)
			if err != nil {
				t.Fatalf("Components: %v", err)
			}
			if got := tt.check(c); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("component = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_Rounding(t *testing.T) {
	r := Reading{PH: 6.3, EC: 1.6, Moisture: 30, Nitrogen: 61.1, Phosphorus: 35, Potassium: 183, Microbial: 5.5, Temperature: 25}
	got, err := Score(r)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	// 22.55 + 15 + 20 + (7.6375 + 7 + 7.32) = 79.5075
	if got != 79.51 {
		t.Errorf("Score = %v, want 79.51", got)
	}
}

func TestScore_RangeOverDomain(t *testing.T) {
	values := map[Field][]float64{
		PH:          {0, 3.3, 5.5, 7, 8.5, 14},
		EC:          {0, 0.8, 3.9, 4, 50},
		Moisture:    {0, 15, 25, 40, 60, 100},
		Nitrogen:    {0, 40, 80, 1000},
		Phosphorus:  {0, 50, 900},
		Potassium:   {0, 250, 5000},
		Microbial:   {0, 10},
		Temperature: {-10, 60},
	}
	for _, ph := range values[PH] {
		for _, ec := range values[EC] {
			for _, m := range values[Moisture] {
				for _, n := range values[Nitrogen] {
					for _, p := range values[Phosphorus] {
						for _, k := range values[Potassium] {
							r := Reading{PH: ph, EC: ec, Moisture: m, Nitrogen: n, Phosphorus: p, Potassium: k, Microbial: 5, Temperature: 20}
							got, err := Score(r)
							if err != nil {
								t.Fatalf("Score(%+v): %v", r, err)
							}
							if got < 0 || got > 100 {
								t.Fatalf("Score(%+v) = %v, out of [0,100]", r, got)
							}
						}
					}
				}
			}
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	a, err := NewReading(map[Field]float64{PH: 6.2, EC: 1.1, Moisture: 18, Nitrogen: 33, Phosphorus: 12, Potassium: 300, Microbial: 2, Temperature: 14})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewReading(map[Field]float64{Temperature: 14, Microbial: 2, Potassium: 300, Phosphorus: 12, Nitrogen: 33, Moisture: 18, EC: 1.1, PH: 6.2})
	if err != nil {
		t.Fatal(err)
	}
	sa, _ := Score(a)
	sb, _ := Score(b)
	if sa != sb {
		t.Errorf("Score differs by construction order: %v vs %v", sa, sb)
	}
}

func TestScore_DegradesToNeutral(t *testing.T) {
	t.Run("non-finite input", func(t *testing.T) {
		r := optimalReading()
		r.PH = math.NaN()
		got, err := Score(r)
		if got != NeutralScore {
			t.Errorf("Score = %v, want %v", got, NeutralScore)
		}
		if !errors.Is(err, ErrDegradedScore) {
			t.Errorf("err = %v, want ErrDegradedScore", err)
		}
	})

	t.Run("profile without optimal band", func(t *testing.T) {
		p := NewProfile(Parameter{Field: PH, Domain: Domain{0, 14}, Bands: []Band{{0, 15, "Any", SeverityGood}}})
		got, err := p.Score(optimalReading())
		if got != NeutralScore {
			t.Errorf("Score = %v, want %v", got, NeutralScore)
		}
		if !errors.Is(err, ErrDegradedScore) {
			t.Errorf("err = %v, want ErrDegradedScore", err)
		}
	})
}

package soil

// Reading is one laboratory soil test. Construct it through NewReading or
// check it with Validate before scoring; the zero value is a valid but
// meaningless sample.
type Reading struct {
	PH          float64 `json:"pH"`
	EC          float64 `json:"EC"`
	Moisture    float64 `json:"Moisture"`
	Nitrogen    float64 `json:"Nitrogen"`
	Phosphorus  float64 `json:"Phosphorus"`
	Potassium   float64 `json:"Potassium"`
	Microbial   float64 `json:"Microbial"`
	Temperature float64 `json:"Temperature"`
}

// Value returns the measurement for f. Unknown fields report false.
func (r Reading) Value(f Field) (float64, bool) {
	switch f {
	case PH:
		return r.PH, true
	case EC:
		return r.EC, true
	case Moisture:
		return r.Moisture, true
	case Nitrogen:
		return r.Nitrogen, true
	case Phosphorus:
		return r.Phosphorus, true
	case Potassium:
		return r.Potassium, true
	case Microbial:
		return r.Microbial, true
	case Temperature:
		return r.Temperature, true
	}
	return 0, false
}

func (r *Reading) set(f Field, v float64) bool {
	switch f {
	case PH:
		r.PH = v
	case EC:
		r.EC = v
	case Moisture:
		r.Moisture = v
	case Nitrogen:
		r.Nitrogen = v
	case Phosphorus:
		r.Phosphorus = v
	case Potassium:
		r.Potassium = v
	case Microbial:
		r.Microbial = v
	case Temperature:
		r.Temperature = v
	default:
		return false
	}
	return true
}

// Values returns the reading as a field-keyed map.
func (r Reading) Values() map[Field]float64 {
	m := make(map[Field]float64, len(Fields))
	for _, f := range Fields {
		v, _ := r.Value(f)
		m[f] = v
	}
	return m
}

// NewReading builds a validated reading from field-keyed values using the
// default profile. Keys outside Fields are ignored.
func NewReading(values map[Field]float64) (Reading, error) {
	return DefaultProfile.NewReading(values)
}

// NewReading builds a reading from values and validates it. Every missing or
// out-of-domain field is reported.
func (p *Profile) NewReading(values map[Field]float64) (Reading, error) {
	var r Reading
	var missing []Field
	for _, f := range Fields {
		v, ok := values[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		r.set(f, v)
	}
	if err := p.validate(r, missing); err != nil {
		return Reading{}, err
	}
	return r, nil
}

package soil

import "time"

// Interpretation is the classification of a single parameter value.
type Interpretation struct {
	Value    float64  `json:"value"`
	Status   string   `json:"status"`
	Severity Severity `json:"severity"`
	Emoji    string   `json:"emoji"`
	Unit     string   `json:"unit"`
}

// Interpret classifies value for field using the default profile.
func Interpret(field Field, value float64) (string, Severity) {
	return DefaultProfile.Interpret(field, value)
}

// Interpret returns the status and severity of the first band containing
// value. Values outside every band, and unknown fields, are reported as
// StatusUnknown with SeverityUnknown.
func (p *Profile) Interpret(field Field, value float64) (string, Severity) {
	param, ok := p.params[field]
	if !ok {
		return StatusUnknown, SeverityUnknown
	}
	for _, b := range param.Bands {
		if b.contains(value) {
			return b.Status, b.Severity
		}
	}
	return StatusUnknown, SeverityUnknown
}

// Describe returns the full interpretation of value for field.
func (p *Profile) Describe(field Field, value float64) Interpretation {
	status, sev := p.Interpret(field, value)
	return Interpretation{
		Value:    value,
		Status:   status,
		Severity: sev,
		Emoji:    sev.Emoji(),
		Unit:     p.Unit(field),
	}
}

// Analysis is the outcome of scoring and interpreting one reading.
type Analysis struct {
	HealthScore float64                  `json:"health_score"`
	Parameters  map[Field]Interpretation `json:"parameters"`
	Timestamp   time.Time                `json:"timestamp"`
	Location    *string                  `json:"location"`

	// Degraded is set when the score fell back to NeutralScore.
	Degraded error `json:"-"`
}

// Analyze scores and interprets r with the default profile.
func Analyze(r Reading, location *string, now time.Time) Analysis {
	return DefaultProfile.Analyze(r, location, now)
}

// Analyze scores r and interprets every field. r is expected to be valid;
// the result holds copies of its values.
func (p *Profile) Analyze(r Reading, location *string, now time.Time) Analysis {
	score, degraded := p.Score(r)
	params := make(map[Field]Interpretation, len(Fields))
	for _, f := range Fields {
		v, _ := r.Value(f)
		params[f] = p.Describe(f, v)
	}
	var loc *string
	if location != nil {
		l := *location
		loc = &l
	}
	return Analysis{
		HealthScore: score,
		Parameters:  params,
		Timestamp:   now,
		Location:    loc,
		Degraded:    degraded,
	}
}

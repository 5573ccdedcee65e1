// Package soil holds the deterministic soil-analysis engine: validation,
// health scoring, per-parameter interpretation and content fingerprints.
// Everything here is pure and safe for concurrent use.
package soil

import "math"

// Field names a soil parameter. The string value is the wire name used in
// JSON payloads, CSV headers and fingerprints.
type Field string

const (
	PH          Field = "pH"
	EC          Field = "EC"
	Moisture    Field = "Moisture"
	Nitrogen    Field = "Nitrogen"
	Phosphorus  Field = "Phosphorus"
	Potassium   Field = "Potassium"
	Microbial   Field = "Microbial"
	Temperature Field = "Temperature"
)

// Fields lists every parameter in display order.
var Fields = []Field{PH, EC, Moisture, Nitrogen, Phosphorus, Potassium, Microbial, Temperature}

// Severity is the qualitative tag attached to an interpretation. Display
// layers colour-code on it.
type Severity string

const (
	SeverityGood      Severity = "Good"
	SeverityCaution   Severity = "Caution"
	SeverityWarning   Severity = "Warning"
	SeverityCritical  Severity = "Critical"
	SeverityExcellent Severity = "Excellent"
	SeverityUnknown   Severity = "Unknown"
)

var severityEmoji = map[Severity]string{
	SeverityGood:      "🟢",
	SeverityCaution:   "🟡",
	SeverityWarning:   "🟠",
	SeverityCritical:  "🔴",
	SeverityExcellent: "💚",
	SeverityUnknown:   "⚪",
}

// Emoji returns the display glyph for the severity.
func (s Severity) Emoji() string {
	if e, ok := severityEmoji[s]; ok {
		return e
	}
	return severityEmoji[SeverityUnknown]
}

// StatusUnknown is reported when a value falls outside every band.
const StatusUnknown = "Unknown"

// StatusOptimal labels the band the scorer treats as the agronomic target.
const StatusOptimal = "Optimal"

// Band is a half-open interval [Low, High) with its interpretation.
type Band struct {
	Low      float64
	High     float64
	Status   string
	Severity Severity
}

func (b Band) contains(v float64) bool {
	return v >= b.Low && v < b.High
}

// Domain is the closed validity range accepted by the validator.
type Domain struct {
	Min float64
	Max float64
}

func (d Domain) contains(v float64) bool {
	return v >= d.Min && v <= d.Max
}

// Parameter describes one soil field: its unit, accepted domain and ordered
// interpretation bands.
type Parameter struct {
	Field  Field
	Unit   string
	Domain Domain
	Bands  []Band
}

// Band returns the first band with the given status.
func (p Parameter) Band(status string) (Band, bool) {
	for _, b := range p.Bands {
		if b.Status == status {
			return b, true
		}
	}
	return Band{}, false
}

// Profile is the canonical parameter configuration. The interpreter reads the
// bands directly and the scorer derives its reference points from them, so
// the two cannot drift apart.
type Profile struct {
	params map[Field]Parameter
}

// NewProfile builds a profile from parameter definitions.
func NewProfile(params ...Parameter) *Profile {
	p := &Profile{params: make(map[Field]Parameter, len(params))}
	for _, param := range params {
		p.params[param.Field] = param
	}
	return p
}

// Parameter looks up a field definition.
func (p *Profile) Parameter(f Field) (Parameter, bool) {
	param, ok := p.params[f]
	return param, ok
}

// Unit returns the measurement unit for a field, or "" if unknown.
func (p *Profile) Unit(f Field) string {
	return p.params[f].Unit
}

var inf = math.Inf(1)

// DefaultProfile holds the agronomic ranges used by the API.
var DefaultProfile = NewProfile(
	Parameter{
		Field:  PH,
		Unit:   "pH",
		Domain: Domain{0, 14},
		Bands: []Band{
			{0, 5.5, "Acidic", SeverityCritical},
			{5.5, 6.5, "Low", SeverityCaution},
			{6.5, 7.5, StatusOptimal, SeverityGood},
			{7.5, 8.5, "High", SeverityCaution},
			{8.5, 15, "Alkaline", SeverityCritical},
		},
	},
	Parameter{
		Field:  EC,
		Unit:   "dS/m",
		Domain: Domain{0, inf},
		Bands: []Band{
			{0, 0.8, "Low", SeverityGood},
			{0.8, 2, "Moderate", SeverityCaution},
			{2, 4, "High", SeverityWarning},
			{4, 25, "Very High", SeverityCritical},
		},
	},
	Parameter{
		Field:  Moisture,
		Unit:   "%",
		Domain: Domain{0, 100},
		Bands: []Band{
			{0, 15, "Dry", SeverityCritical},
			{15, 25, "Low", SeverityCaution},
			{25, 40, StatusOptimal, SeverityGood},
			{40, 60, "High", SeverityCaution},
			{60, 101, "Wet", SeverityCritical},
		},
	},
	Parameter{
		Field:  Nitrogen,
		Unit:   "mg/kg",
		Domain: Domain{0, inf},
		Bands: []Band{
			{0, 40, "Low", SeverityCritical},
			{40, 80, StatusOptimal, SeverityGood},
			{80, 501, "High", SeverityCaution},
		},
	},
	Parameter{
		Field:  Phosphorus,
		Unit:   "mg/kg",
		Domain: Domain{0, inf},
		Bands: []Band{
			{0, 20, "Low", SeverityCritical},
			{20, 50, StatusOptimal, SeverityGood},
			{50, 201, "High", SeverityCaution},
		},
	},
	Parameter{
		Field:  Potassium,
		Unit:   "mg/kg",
		Domain: Domain{0, inf},
		Bands: []Band{
			{0, 100, "Low", SeverityCritical},
			{100, 250, StatusOptimal, SeverityGood},
			{250, 501, "High", SeverityCaution},
		},
	},
	Parameter{
		Field:  Microbial,
		Unit:   "Index",
		Domain: Domain{0, 10},
		Bands: []Band{
			{0, 3, "Poor", SeverityCritical},
			{3, 7, "Good", SeverityGood},
			{7, 11, "Excellent", SeverityExcellent},
		},
	},
	Parameter{
		Field:  Temperature,
		Unit:   "°C",
		Domain: Domain{-10, 60},
		Bands: []Band{
			{0, 10, "Cold", SeverityCaution},
			{10, 30, StatusOptimal, SeverityGood},
			{30, 51, "Hot", SeverityCritical},
		},
	},
)

package soil

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
)

// ValidationError reports a single field outside its accepted domain.
type ValidationError struct {
	Field   Field
	Value   float64
	Domain  Domain
	Missing bool
}

func (e *ValidationError) Error() string {
	switch {
	case e.Missing:
		return fmt.Sprintf("%s is required", e.Field)
	case math.IsNaN(e.Value) || math.IsInf(e.Value, 0):
		return fmt.Sprintf("%s must be a finite number", e.Field)
	case math.IsInf(e.Domain.Max, 1):
		return fmt.Sprintf("%s must be at least %g, got %g", e.Field, e.Domain.Min, e.Value)
	default:
		return fmt.Sprintf("%s must be between %g and %g, got %g", e.Field, e.Domain.Min, e.Domain.Max, e.Value)
	}
}

// Validate checks r against the default profile.
func Validate(r Reading) error {
	return DefaultProfile.Validate(r)
}

// Validate checks every field of r against its domain. The returned error,
// if any, wraps one *ValidationError per offending field; errors.As yields
// the first and ValidationErrors lists them all.
func (p *Profile) Validate(r Reading) error {
	return p.validate(r, nil)
}

func (p *Profile) validate(r Reading, missing []Field) error {
	var result *multierror.Error
	isMissing := make(map[Field]bool, len(missing))
	for _, f := range missing {
		isMissing[f] = true
	}

	for _, f := range Fields {
		if isMissing[f] {
			result = multierror.Append(result, &ValidationError{Field: f, Missing: true})
			continue
		}
		param, ok := p.params[f]
		if !ok {
			continue
		}
		v, _ := r.Value(f)
		if math.IsNaN(v) || math.IsInf(v, 0) || !param.Domain.contains(v) {
			result = multierror.Append(result, &ValidationError{Field: f, Value: v, Domain: param.Domain})
		}
	}
	return result.ErrorOrNil()
}

// ValidationErrors extracts every field violation carried by err.
func ValidationErrors(err error) []*ValidationError {
	var out []*ValidationError
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			var ve *ValidationError
			if errors.As(e, &ve) {
				out = append(out, ve)
			}
		}
		return out
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		out = append(out, ve)
	}
	return out
}

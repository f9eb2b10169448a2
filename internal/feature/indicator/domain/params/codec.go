// Package params canonicalizes indicator configurations into the identity
// string that is used both as cache key component and as the persisted
// "parameters" discriminator of an indicator record.
package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"

	"indicator_backend/internal/feature/indicator/domain"
)

// MaxPeriod bounds the per-point window cost.
const MaxPeriod = 500

// Params is the configuration of a windowed indicator.
type Params struct {
	Period int `json:"period"`
}

// Validate checks p against the default ceiling.
func Validate(p Params) error {
	return ValidateWithin(p, MaxPeriod)
}

// ValidateWithin checks p against the given ceiling.
func ValidateWithin(p Params, ceiling int) error {
	_, err := validatePeriod(float64(p.Period), ceiling)
	return err
}

// ValidatePeriod validates a raw numeric period (e.g. from a query string)
// and returns it as an int.
func ValidatePeriod(v float64) (int, error) {
	return validatePeriod(v, MaxPeriod)
}

// ValidatePeriodWithin is ValidatePeriod with a caller supplied ceiling.
func ValidatePeriodWithin(v float64, ceiling int) (int, error) {
	return validatePeriod(v, ceiling)
}

func validatePeriod(v float64, ceiling int) (int, error) {
	switch {
	case math.IsNaN(v):
		return 0, domain.NewInvalidParameter(domain.ReasonMalformed, "period is not a number")
	case v <= 0:
		return 0, domain.NewInvalidParameter(domain.ReasonNotPositive, "period must be positive, got %v", v)
	case v != math.Trunc(v):
		return 0, domain.NewInvalidParameter(domain.ReasonNotInteger, "period must be an integer, got %v", v)
	case v > float64(ceiling):
		return 0, domain.NewInvalidParameter(domain.ReasonTooLarge, "period %v exceeds maximum %d", v, ceiling)
	}
	return int(v), nil
}

// Canonicalize validates p and returns its identity string, e.g. {"period":20}.
func Canonicalize(p Params) (string, error) {
	if err := Validate(p); err != nil {
		return "", err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", domain.NewInvalidParameter(domain.ReasonMalformed, "%v", err)
	}
	return string(b), nil
}

// Parse decodes an identity string back into Params. Key order and
// whitespace do not matter; unknown keys, quoted numbers and trailing data do.
func Parse(s string) (Params, error) {
	var raw struct {
		Period json.RawMessage `json:"period"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Params{}, domain.NewInvalidParameter(domain.ReasonMalformed, "%v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Params{}, domain.NewInvalidParameter(domain.ReasonMalformed, "trailing data after parameters")
	}
	if len(raw.Period) == 0 {
		return Params{}, domain.NewInvalidParameter(domain.ReasonMalformed, "missing period")
	}

	v, err := strconv.ParseFloat(string(raw.Period), 64)
	if err != nil {
		var numErr *strconv.NumError
		// 1e400 is still a number, just an absurd one
		if !errors.As(err, &numErr) || numErr.Err != strconv.ErrRange {
			return Params{}, domain.NewInvalidParameter(domain.ReasonMalformed, "period %s is not a number", raw.Period)
		}
	}
	period, err := ValidatePeriod(v)
	if err != nil {
		return Params{}, err
	}
	return Params{Period: period}, nil
}

// Normalize rewrites any accepted form of an identity string into its canonical form.
func Normalize(s string) (string, error) {
	p, err := Parse(s)
	if err != nil {
		return "", err
	}
	return Canonicalize(p)
}

package dataframe

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

var (
	// ErrNoDataframes indicates that the rating API returned no records at all
	ErrNoDataframes = errors.New("no dataframes were collected")

	// ErrNoMatchingRecord indicates that no record describes the provisioned resource
	ErrNoMatchingRecord = errors.New("no dataframe matches the provisioned resource")

	// ErrInvalidRecord indicates that the matched record breaks an expectation
	ErrInvalidRecord = errors.New("dataframe does not match expectations")
)

// ValidationError reports one field of the matched record that differs from the expectation
type ValidationError struct {
	Field string
	Want  string
	Got   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dataframe field %s: expected %s, got %q", e.Field, e.Want, e.Got)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// Expectation describes the record the pipeline should have produced for the provisioned volume
type Expectation struct {
	ResourceID string
	Service    string

	// Owner of the resource; an empty value skips that check
	ProjectID string
	UserID    string

	// ExpectedRating enables an exact rating check (within Tolerance). Nil only requires rating > 0.
	ExpectedRating *float64
	Tolerance      float64
}

// Validate normalizes the response, locates the record of the expected resource
// and checks its service, owner and rating. All violations on the matched record
// are reported together.
func Validate(resp Response, exp Expectation) (*Record, error) {
	records := Normalize(resp)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w (response kind %s): %s", ErrNoDataframes, resp.Kind, truncate(string(resp.Raw), 256))
	}

	record, ok := Find(records, exp.ResourceID)
	if !ok {
		return nil, fmt.Errorf("%w: resource %s not among %d records of kind %s", ErrNoMatchingRecord, exp.ResourceID, len(records), resp.Kind)
	}

	var errs []error
	if record.Service != exp.Service {
		errs = append(errs, &ValidationError{Field: "service", Want: fmt.Sprintf("%q", exp.Service), Got: record.Service})
	}
	if exp.ProjectID != "" && record.Desc.ProjectID != exp.ProjectID {
		errs = append(errs, &ValidationError{Field: "desc.project_id", Want: fmt.Sprintf("%q", exp.ProjectID), Got: record.Desc.ProjectID})
	}
	if exp.UserID != "" && record.Desc.UserID != exp.UserID {
		errs = append(errs, &ValidationError{Field: "desc.user_id", Want: fmt.Sprintf("%q", exp.UserID), Got: record.Desc.UserID})
	}

	rating, err := record.Rating.Float()
	switch {
	case err != nil:
		errs = append(errs, &ValidationError{Field: "rating", Want: "a decimal number", Got: string(record.Rating)})
	case math.IsNaN(rating) || rating <= 0:
		errs = append(errs, &ValidationError{Field: "rating", Want: "> 0", Got: string(record.Rating)})
	case exp.ExpectedRating != nil && math.Abs(rating-*exp.ExpectedRating) > exp.Tolerance:
		errs = append(errs, &ValidationError{Field: "rating", Want: fmt.Sprintf("%g ± %g", *exp.ExpectedRating, exp.Tolerance), Got: string(record.Rating)})
	}

	if len(errs) > 0 {
		return &record, errors.Join(errs...)
	}
	return &record, nil
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

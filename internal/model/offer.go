package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

const (
	offerNameMin = 3
	offerNameMax = 100
)

// Offer is the seller's target-customer profile used as the scoring reference.
type Offer struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	ValueProps    []string  `json:"value_props" yaml:"value_props"`
	IdealUseCases []string  `json:"ideal_use_cases" yaml:"ideal_use_cases"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"-"`
}

// Normalize trims the name and drops blank list entries in place.
func (o *Offer) Normalize() {
	o.Name = strings.TrimSpace(o.Name)
	o.ValueProps = compactStrings(o.ValueProps)
	o.IdealUseCases = compactStrings(o.IdealUseCases)
}

// Validate checks the offer invariants. Call Normalize first.
func (o *Offer) Validate() error {
	var errs []string

	n := utf8.RuneCountInString(o.Name)
	if n < offerNameMin || n > offerNameMax {
		errs = append(errs, "name must be between 3 and 100 characters")
	}
	if len(o.ValueProps) == 0 {
		errs = append(errs, "value_props must contain at least one entry")
	}
	if len(o.IdealUseCases) == 0 {
		errs = append(errs, "ideal_use_cases must contain at least one entry")
	}

	if len(errs) > 0 {
		return eris.Wrap(ErrValidation, "offer: "+strings.Join(errs, "; "))
	}
	return nil
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

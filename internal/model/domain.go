package model

import "fmt"

// Domain is a fixed subject area that questions, exams and sessions belong to.
type Domain string

const (
	DomainWebDev      Domain = "web_dev"
	DomainML          Domain = "ml"
	DomainDataScience Domain = "data_science"
)

// AllDomains lists every known domain in display order.
var AllDomains = []Domain{DomainWebDev, DomainML, DomainDataScience}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainWebDev, DomainML, DomainDataScience:
		return true
	}
	return false
}

// Label returns a human-readable name for the domain.
func (d Domain) Label() string {
	switch d {
	case DomainWebDev:
		return "Web Development"
	case DomainML:
		return "Machine Learning"
	case DomainDataScience:
		return "Data Science"
	default:
		return string(d)
	}
}

// ParseDomain converts a raw string into a Domain.
func ParseDomain(raw string) (Domain, error) {
	d := Domain(raw)
	if !d.Valid() {
		return "", fmt.Errorf("unknown domain %q", raw)
	}
	return d, nil
}

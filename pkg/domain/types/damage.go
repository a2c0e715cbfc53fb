package types

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// DamageCategory is one of the ten impact indicators
type DamageCategory int

const (
	DamageHa DamageCategory = iota // fatalities
	DamageHb                       // injured and sick
	DamageHc                       // people in need of assistance
	DamageSa                       // supply shortfall
	DamageSb                       // diminished integrity of territory
	DamageSc                       // damage to reputation
	DamageSd                       // loss of trust in institutions
	DamageEa                       // damaged ecosystems
	DamageFa                       // financial asset damages
	DamageFb                       // reduction of economic performance
)

// DamageCategoryCount is the number of impact indicators
const DamageCategoryCount = 10

// Domain groups damage categories
type Domain string

const (
	DomainHuman         Domain = "HUMAN"
	DomainSocietal      Domain = "SOCIETAL"
	DomainEnvironmental Domain = "ENVIRONMENTAL"
	DomainFinancial     Domain = "FINANCIAL"
)

var damageCategoryCodes = [DamageCategoryCount]string{
	"Ha", "Hb", "Hc", "Sa", "Sb", "Sc", "Sd", "Ea", "Fa", "Fb",
}

// AllDamageCategories returns the ten indicators in canonical order
func AllDamageCategories() []DamageCategory {
	cats := make([]DamageCategory, DamageCategoryCount)
	for i := range cats {
		cats[i] = DamageCategory(i)
	}
	return cats
}

// AllDomains returns the four damage domains
func AllDomains() []Domain {
	return []Domain{
		DomainHuman,
		DomainSocietal,
		DomainEnvironmental,
		DomainFinancial,
	}
}

// IsValid checks if the category is one of the ten indicators
func (c DamageCategory) IsValid() bool {
	return c >= DamageHa && c <= DamageFb
}

// String returns the indicator code, e.g. "Ha"
func (c DamageCategory) String() string {
	if !c.IsValid() {
		return "unknown"
	}
	return damageCategoryCodes[c]
}

// Domain returns the domain the indicator belongs to
func (c DamageCategory) Domain() Domain {
	switch {
	case c >= DamageHa && c <= DamageHc:
		return DomainHuman
	case c >= DamageSa && c <= DamageSd:
		return DomainSocietal
	case c == DamageEa:
		return DomainEnvironmental
	default:
		return DomainFinancial
	}
}

// ParseDamageCategory parses an indicator code case-insensitively
func ParseDamageCategory(s string) (DamageCategory, error) {
	for i, code := range damageCategoryCodes {
		if strings.EqualFold(code, strings.TrimSpace(s)) {
			return DamageCategory(i), nil
		}
	}
	return 0, goerr.New("invalid damage category", goerr.V("category", s))
}

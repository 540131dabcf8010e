package sms

import (
	"fmt"

	"eventsms/internal/config"
)

// Allowlist holds the admins allowed to issue commands by SMS, keyed by
// E.164 number.
type Allowlist struct {
	region string
	admins map[string]string
}

// NewAllowlist normalizes every admin number. An unparseable entry is a
// configuration error.
func NewAllowlist(admins []config.Admin, region string) (*Allowlist, error) {
	a := &Allowlist{region: region, admins: make(map[string]string, len(admins))}
	for _, admin := range admins {
		phone, err := Normalize(admin.Phone, region)
		if err != nil {
			return nil, fmt.Errorf("admin allow-list: %w", err)
		}
		a.admins[phone] = admin.Name
	}
	return a, nil
}

// Lookup normalizes from and reports whether it belongs to an admin
func (a *Allowlist) Lookup(from string) (phone string, name string, ok bool) {
	phone, err := Normalize(from, a.region)
	if err != nil {
		return "", "", false
	}
	name, ok = a.admins[phone]
	return phone, name, ok
}

// Len returns the number of admins
func (a *Allowlist) Len() int {
	return len(a.admins)
}

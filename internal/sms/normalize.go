package sms

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Normalize returns num in E.164 form. Numbers without a leading + are
// read in defaultRegion.
func Normalize(num, defaultRegion string) (string, error) {
	num = strings.TrimSpace(num)
	if num == "" {
		return "", fmt.Errorf("missing number")
	}

	parsed, err := phonenumbers.Parse(num, strings.ToUpper(defaultRegion))
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number %q", num)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// supportedRegions are tried in order for numbers without a country prefix.
var supportedRegions = []string{
	"IN",
	"US",
}

// NormalizePhone returns phone in E.164 form, or "" when it is not a
// plausible number in any supported region.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	for _, region := range supportedRegions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err != nil || !phonenumbers.IsPossibleNumber(parsed) {
			continue
		}
		return phonenumbers.Format(parsed, phonenumbers.E164)
	}
	return ""
}

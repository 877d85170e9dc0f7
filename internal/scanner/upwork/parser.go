package upwork

import (
	"strconv"
	"time"

	"upscan/internal/model"
)

// parseProfile normalizes the raw profile response into the fixed output
// schema. It is total: any input, including nil or a non-object value,
// yields a Profile. Missing nested keys degrade to empty strings and
// date-like fields that fail the ISO-8601 check are blanked, never left
// as garbage.
func parseProfile(raw any) *model.Profile {
	root := asMap(raw)

	profile := asMap(root["profile"])
	identity := asMap(profile["identity"])
	profileData := asMap(profile["profile"])
	location := asMap(profileData["location"])
	portrait := asMap(profileData["portrait"])
	stats := asMap(profile["stats"])
	hourlyRate := asMap(stats["hourlyRate"])
	person := asMap(root["person"])

	return &model.Profile{
		ID:      stringValue(identity["ciphertext"]),
		Account: stringValue(identity["uid"]),
		Address: model.Address{
			City:    stringValue(location["city"]),
			State:   stringValue(location["state"]),
			Country: stringValue(location["country"]),
		},
		FirstName:  stringValue(person["first_name"]),
		LastName:   stringValue(person["last_name"]),
		FullName:   stringValue(profileData["name"]),
		BirthDate:  isoDate(stringValue(person["dateOfBirth"])),
		PictureURL: stringValue(portrait["portrait"]),
		JobTitle:   stringValue(profileData["title"]),
		BasePay: model.BasePay{
			Amount:   stringValue(hourlyRate["amount"]),
			Currency: stringValue(hourlyRate["currencyCode"]),
		},
		CreatedAt: isoDate(stringValue(profileData["memberSince"])),
		UpdatedAt: isoDate(stringValue(person["updatedOn"])),
		Metadata:  map[string]any{},
	}
}

// asMap returns v as an object, or an empty object when v is anything
// else. Every nested lookup in the parser goes through this so a partial
// response can never fail the scan.
func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// stringValue renders a JSON leaf as a string. Numbers are formatted
// without an exponent; anything non-scalar becomes the empty string.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Layouts accepted for date-like fields, matching common ISO-8601 forms.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// isoDate returns s when it parses as an ISO-8601 timestamp or date, and
// the empty string otherwise.
func isoDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range isoLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return s
		}
	}
	return ""
}

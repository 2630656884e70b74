package metadata

import (
	"fmt"
	"strings"
	"unicode"
)

// TagName is the struct tag key read by the registry
const TagName = "ogm"

type fieldTag struct {
	skip         bool
	id           bool
	unique       bool
	name         string
	relationship string
	direction    Direction
	converter    string
}

// parseTag splits an ogm tag into its options
func parseTag(raw string) (fieldTag, error) {
	var tag fieldTag
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return tag, nil
	}
	if raw == "-" {
		tag.skip = true
		return tag, nil
	}

	for _, opt := range strings.Split(raw, ";") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, value, hasValue := strings.Cut(opt, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "id":
			tag.id = true
		case "unique":
			tag.unique = true
		case "name":
			tag.name = value
		case "relationship":
			tag.relationship = value
		case "direction":
			d := Direction(strings.ToLower(value))
			if d != Outgoing && d != Incoming {
				return tag, fmt.Errorf("unknown direction %q", value)
			}
			tag.direction = d
		case "converter":
			tag.converter = value
		default:
			return tag, fmt.Errorf("unknown option %q", key)
		}
		if hasValue && value == "" {
			return tag, fmt.Errorf("option %q has an empty value", key)
		}
	}
	return tag, nil
}

// propertyName lower-cases the first rune of a field name
func propertyName(field string) string {
	if field == "" {
		return field
	}
	runes := []rune(field)
	// An all-caps field such as ID becomes "id" rather than "iD"
	if strings.ToUpper(field) == field {
		return strings.ToLower(field)
	}
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// relationshipType converts a field name to UPPER_SNAKE_CASE
func relationshipType(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

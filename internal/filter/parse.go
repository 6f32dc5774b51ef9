package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RangeSeparator splits the bounds of a range value in its text form, e.g.
// "10..20", "..20" or "2024-01-01..".
const RangeSeparator = ".."

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"15:04",
}

// ParseValue reads the text form of a value for def, as carried in query
// strings. An empty string yields the inactive value of the filter type.
func ParseValue(def Definition, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)

	switch def.Type {
	case TypeBoolean, TypeExistence:
		if raw == "" {
			return BoolValue{}, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("filter %s expects a boolean: %w", def.Name, err)
		}
		return BoolValue{Value: &b}, nil

	case TypeMultiSelect:
		var ids []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ids = append(ids, part)
			}
		}
		return IDsValue{IDs: ids}, nil

	case TypeNumberRange:
		fromRaw, toRaw := splitRange(raw)
		var nr NumberRange
		if fromRaw != "" {
			v, err := strconv.ParseFloat(fromRaw, 64)
			if err != nil {
				return nil, fmt.Errorf("filter %s has an invalid lower bound: %w", def.Name, err)
			}
			nr.From = &v
		}
		if toRaw != "" {
			v, err := strconv.ParseFloat(toRaw, 64)
			if err != nil {
				return nil, fmt.Errorf("filter %s has an invalid upper bound: %w", def.Name, err)
			}
			nr.To = &v
		}
		return nr, nil

	case TypeDateRange:
		fromRaw, toRaw := splitRange(raw)
		var dr DateRange
		if fromRaw != "" {
			v, err := parseDate(fromRaw)
			if err != nil {
				return nil, fmt.Errorf("filter %s has an invalid start date: %w", def.Name, err)
			}
			dr.From = &v
		}
		if toRaw != "" {
			v, err := parseDate(toRaw)
			if err != nil {
				return nil, fmt.Errorf("filter %s has an invalid end date: %w", def.Name, err)
			}
			dr.To = &v
		}
		return dr, nil
	}

	return nil, fmt.Errorf("filter %s has unsupported type %q", def.Name, def.Type)
}

func splitRange(raw string) (string, string) {
	from, to, found := strings.Cut(raw, RangeSeparator)
	if !found {
		return strings.TrimSpace(raw), ""
	}
	return strings.TrimSpace(from), strings.TrimSpace(to)
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

package config

import "strings"

func coachKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CoachSheets returns the coach sheet names in scan order.
func (c *Config) CoachSheets() []string {
	sheets := make([]string, len(c.Coaches))
	for i, coach := range c.Coaches {
		sheets[i] = coach.Sheet
	}
	return sheets
}

// HasCoachPrefix reports whether tag carries the configured coach prefix,
// ignoring case and surrounding whitespace.
func (c *Config) HasCoachPrefix(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	prefix := strings.ToLower(strings.TrimLeft(c.CoachTagPrefix, " \t"))
	return strings.HasPrefix(tag, prefix)
}

// CoachForTag returns the configured coach sheet a queue tag refers to.
func (c *Config) CoachForTag(tag string) (string, bool) {
	key := coachKey(tag)
	for _, coach := range c.Coaches {
		if coachKey(coach.Sheet) == key {
			return coach.Sheet, true
		}
	}
	return "", false
}

// PayFor returns the configured pay string for a coach sheet.
func (c *Config) PayFor(coach string) (string, bool) {
	key := coachKey(coach)
	for _, cc := range c.Coaches {
		if coachKey(cc.Sheet) == key && strings.TrimSpace(cc.Pay) != "" {
			return strings.TrimSpace(cc.Pay), true
		}
	}
	return "", false
}

// IsCoachSheet reports whether sheet is one of the configured coach sheets.
func (c *Config) IsCoachSheet(sheet string) bool {
	_, ok := c.CoachForTag(sheet)
	return ok
}

// Package compose renders personalized outbound message bodies from a
// template. Substitution is deliberately simple: the literal, exact-case
// placeholders {name} and {points} are replaced globally; anything else in
// the template is left verbatim. Pure, no I/O.
package compose

import (
	"strconv"
	"strings"
)

// Placeholders recognized in message templates.
const (
	placeholderName   = "{name}"
	placeholderPoints = "{points}"
)

// Values carries the per-customer substitution data.
type Values struct {
	Name   string
	Points int
}

// Render substitutes every occurrence of {name} and {points} in template
// with the customer's name and decimal point balance.
func Render(template string, v Values) string {
	out := strings.ReplaceAll(template, placeholderName, v.Name)
	return strings.ReplaceAll(out, placeholderPoints, strconv.Itoa(v.Points))
}

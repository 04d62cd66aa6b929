package numbering

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTemplate is returned for templates that do not contain exactly one integer verb
var ErrInvalidTemplate = fmt.Errorf("numbering template must contain exactly one integer verb such as %%05d")

var integerVerb = regexp.MustCompile(`%0?[0-9]*d`)

// ValidateTemplate checks that template renders exactly one integer.
// Literal percent signs must be written as %%.
func ValidateTemplate(template string) error {
	stripped := strings.ReplaceAll(template, "%%", "")
	if len(integerVerb.FindAllString(stripped, -1)) != 1 {
		return ErrInvalidTemplate
	}
	if strings.Contains(integerVerb.ReplaceAllString(stripped, ""), "%") {
		return ErrInvalidTemplate
	}
	return nil
}

// Render formats n through template. Date tokens {YYYY}, {YY} and {MM} are
// replaced with the issue date before formatting.
func Render(template string, n int64, at time.Time) (string, error) {
	if err := ValidateTemplate(template); err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		"{YYYY}", fmt.Sprintf("%04d", at.Year()),
		"{YY}", fmt.Sprintf("%02d", at.Year()%100),
		"{MM}", fmt.Sprintf("%02d", int(at.Month())),
	)
	return fmt.Sprintf(r.Replace(template), n), nil
}

// ParseNumber extracts the integer a number was rendered from. ok is false
// when number does not match template, e.g. a manually entered number.
func ParseNumber(template, number string) (n int64, ok bool) {
	if ValidateTemplate(template) != nil {
		return 0, false
	}
	var b strings.Builder
	b.WriteString("^")
	rest := template
	for rest != "" {
		switch {
		case strings.HasPrefix(rest, "%%"):
			b.WriteString("%")
			rest = rest[2:]
		case strings.HasPrefix(rest, "{YYYY}"):
			b.WriteString(`\d{4}`)
			rest = rest[6:]
		case strings.HasPrefix(rest, "{YY}"), strings.HasPrefix(rest, "{MM}"):
			b.WriteString(`\d{2}`)
			rest = rest[4:]
		default:
			if loc := integerVerb.FindStringIndex(rest); loc != nil && loc[0] == 0 {
				b.WriteString(`(\d+)`)
				rest = rest[loc[1]:]
				continue
			}
			b.WriteString(regexp.QuoteMeta(rest[:1]))
			rest = rest[1:]
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return 0, false
	}
	m := re.FindStringSubmatch(number)
	if m == nil {
		return 0, false
	}
	n, err = strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

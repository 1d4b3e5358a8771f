package chat

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/araddon/dateparse"
	"golang.org/x/text/language"
)

// DefaultLocale is used when no display locale is configured.
const DefaultLocale = "es-GT"

// localeLayouts are 24-hour layouts per supported locale. The first entry is
// the matcher's fallback.
var localeLayouts = []struct {
	tag    language.Tag
	layout string
}{
	{language.Und, "2006-01-02 15:04:05"},
	{language.Spanish, "2/1/2006, 15:04:05"},
	{language.AmericanEnglish, "1/2/2006, 15:04:05"},
	{language.BritishEnglish, "02/01/2006, 15:04:05"},
	{language.German, "2.1.2006, 15:04:05"},
	{language.French, "02/01/2006 15:04:05"},
	{language.BrazilianPortuguese, "02/01/2006, 15:04:05"},
	{language.Japanese, "2006/1/2 15:04:05"},
}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(localeLayouts))
	for i, l := range localeLayouts {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// Formatter renders timestamps for display.
type Formatter struct {
	layout string
	loc    *time.Location
}

// NewFormatter returns a formatter for a BCP 47 locale and an IANA zone name.
// Unknown locales fall back to an ISO-like layout; an unknown zone falls back
// to UTC.
func NewFormatter(locale, zone string) *Formatter {
	if strings.TrimSpace(locale) == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	_, idx, _ := localeMatcher.Match(tag)

	loc := time.UTC
	if zone != "" {
		if l, err := time.LoadLocation(zone); err == nil {
			loc = l
		}
	}
	return &Formatter{layout: localeLayouts[idx].layout, loc: loc}
}

// ParseTime interprets a row value as an instant.
func (f *Formatter) ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	}

	s := strings.TrimSpace(Stringify(v))
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, true
	}
	ts, err := dateparse.ParseIn(s, f.loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Format renders v in the formatter's locale and zone. A value that is not a
// valid instant is returned in its raw string form.
func (f *Formatter) Format(v any) string {
	ts, ok := f.ParseTime(v)
	if !ok {
		return Stringify(v)
	}
	return ts.In(f.loc).Format(f.layout)
}

// Stringify renders any row value as display text. Nil becomes "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case json.Number:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// numeric interprets a row value as a finite number; anything else is zero.
func numeric(v any) float64 {
	var n float64
	switch t := v.(type) {
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case float64:
		n = t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		n = f
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(Stringify(v)), 64)
		if err != nil {
			return 0
		}
		n = f
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

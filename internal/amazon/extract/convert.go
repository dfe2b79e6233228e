package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"amazon-orders/internal/htmlutil"
)

var (
	intRegex  = regexp.MustCompile(`-?\d+`)
	dateRegex = regexp.MustCompile(
		`[A-Za-z]+\.? \d{1,2}, \d{4}` +
			`|\d{1,2}\.? [A-Za-z]+\.? \d{4}` +
			`|[A-Za-z]+ \d{4}`,
	)
	wordRegex = regexp.MustCompile(`[\p{L}]+`)
)

// ToCurrency parses a money amount like "$1,234.99", "-€5,00" or "(12.00)". It returns nil
// when the text holds no number.
func ToCurrency(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	negative := strings.HasPrefix(s, "-") ||
		strings.HasPrefix(s, "−") ||
		(strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))
	if !negative {
		// the sign may sit after the currency symbol, "$-5.00"
		trimmed := strings.TrimLeftFunc(s, func(r rune) bool {
			return r != '-' && r != '−' && (r < '0' || r > '9')
		})
		negative = strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "−")
	}

	var digits strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()
	if strings.Trim(number, ".,") == "" {
		return nil
	}

	lastComma := strings.LastIndex(number, ",")
	lastDot := strings.LastIndex(number, ".")
	if lastComma > lastDot && len(number)-lastComma-1 == 2 {
		number = strings.ReplaceAll(number, ".", "")
		number = strings.Replace(number, ",", ".", 1)
	} else {
		number = strings.ReplaceAll(number, ",", "")
	}

	amount, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return nil
	}
	amount = math.Round(amount*100) / 100
	if negative {
		amount = math.Copysign(amount, -1)
	}
	return &amount
}

// ToInt returns the first integer in s.
func ToInt(s string) (int, error) {
	match := intRegex.FindString(s)
	if match == "" {
		return 0, fmt.Errorf("no integer in %q", s)
	}
	return strconv.Atoi(match)
}

func translateMonths(s string, months map[string]string) string {
	if len(months) == 0 {
		return s
	}
	return wordRegex.ReplaceAllStringFunc(s, func(word string) string {
		english, ok := months[word]
		if ok {
			return english
		}
		return word
	})
}

// ToDate finds the first date in s and parses it with the first layout that fits. Month names
// are translated with `months` before parsing.
func ToDate(s string, layouts []string, months map[string]string) (time.Time, error) {
	s = translateMonths(htmlutil.Clean(s), months)

	candidates := dateRegex.FindAllString(s, -1)
	candidates = append(candidates, s)
	for _, candidate := range candidates {
		for _, variant := range []string{candidate, strings.Replace(candidate, ".", "", 1)} {
			for _, layout := range layouts {
				t, err := time.Parse(layout, variant)
				if err == nil {
					return t, nil
				}
			}
		}
	}
	return time.Time{}, fmt.Errorf("no date in %q", s)
}

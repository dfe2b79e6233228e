// Package extract selects fields out of parsed html fragments. Every extractor returns a Result
// which is either a value, an absent value, or an error, the Safe wrappers turn the benign
// failures into warnings.
package extract

import (
	"strings"
	"time"

	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Result is the outcome of extracting a single field.
type Result[T any] struct {
	Value   T
	Present bool
	Err     error
}

func value[T any](v T) Result[T] {
	return Result[T]{Value: v, Present: true}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Field describes where a field lives inside a fragment.
type Field struct {
	Query selectors.Query
	// Attr reads an attribute instead of the text, "href" and "src" are resolved against Base.
	Attr string
	Base string
	// Contains requires the matched text to contain this substring for the match to count.
	Contains string
	Required bool

	Entity string
	Name   string
}

func (f Field) missing() error {
	return errs.ParseError{Entity: f.Entity, Field: f.Name}
}

func (f Field) wrap(err error) error {
	return errs.ParseError{Entity: f.Entity, Field: f.Name, Err: err}
}

// First returns the matches of the first candidate in the query that matches anything under
// sel, the returned selection is empty when nothing matched.
func First(sel *goquery.Selection, q selectors.Query) *goquery.Selection {
	for _, candidate := range q {
		found := sel.Find(candidate)
		if found.Length() > 0 {
			return found
		}
	}
	return sel.Slice(0, 0)
}

// Matches reports whether any candidate of the query matches under sel.
func Matches(sel *goquery.Selection, q selectors.Query) bool {
	return First(sel, q).Length() > 0
}

// All returns the matches of the first candidate in the query that matches anything, this
// is the list form of First.
func All(sel *goquery.Selection, q selectors.Query) []*goquery.Selection {
	var out []*goquery.Selection
	First(sel, q).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

// Node finds the element a field is read from.
func Node(sel *goquery.Selection, f Field) (*goquery.Selection, bool) {
	for _, candidate := range f.Query {
		var match *goquery.Selection
		sel.Find(candidate).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if f.Contains != "" && !strings.Contains(htmlutil.Text(s), f.Contains) {
				return true
			}
			match = s
			return false
		})
		if match != nil {
			return match, true
		}
	}
	return nil, false
}

// Text reads the text (or the attribute) of a field.
func Text(sel *goquery.Selection, f Field) Result[string] {
	node, ok := Node(sel, f)
	if !ok {
		if f.Required {
			return failed[string](f.missing())
		}
		return Result[string]{}
	}

	if f.Attr == "" {
		text := htmlutil.Text(node)
		if text == "" {
			if f.Required {
				return failed[string](f.missing())
			}
			return Result[string]{}
		}
		return value(text)
	}

	attr, ok := node.Attr(f.Attr)
	attr = strings.TrimSpace(attr)
	if !ok || attr == "" {
		if f.Required {
			return failed[string](f.missing())
		}
		return Result[string]{}
	}
	if f.Attr == "href" || f.Attr == "src" {
		attr = htmlutil.Resolve(f.Base, attr)
	}
	return value(attr)
}

// Int reads the first integer in the text of a field.
func Int(sel *goquery.Selection, f Field) Result[int] {
	text := Text(sel, f)
	if text.Err != nil || !text.Present {
		return Result[int]{Err: text.Err}
	}
	n, err := ToInt(text.Value)
	if err != nil {
		return failed[int](f.wrap(err))
	}
	return value(n)
}

// Currency reads a money amount, text that holds no number counts as absent.
func Currency(sel *goquery.Selection, f Field) Result[float64] {
	text := Text(sel, f)
	if text.Err != nil || !text.Present {
		return Result[float64]{Err: text.Err}
	}
	amount := ToCurrency(text.Value)
	if amount == nil {
		if f.Required {
			return failed[float64](f.missing())
		}
		return Result[float64]{}
	}
	return value(*amount)
}

// Date reads the first date found in the text of a field.
func Date(sel *goquery.Selection, f Field, c selectors.Constants) Result[time.Time] {
	text := Text(sel, f)
	if text.Err != nil || !text.Present {
		return Result[time.Time]{Err: text.Err}
	}
	d, err := ToDate(text.Value, c.DateLayouts, c.MonthNames)
	if err != nil {
		return failed[time.Time](f.wrap(err))
	}
	return value(d)
}

package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("amazon-orders/htmlutil")

// ParseDocument parses an html body, the returned document has its url set to `location`
// so relative links can be resolved against it.
func ParseDocument(body []byte, location *url.URL) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	doc.Url = location
	return doc, nil
}

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		if node.Data == "script" || node.Data == "style" {
			return
		}
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// Clean collapses whitespace runs into a single space and strips non-printable characters.
func Clean(s string) string {
	s = removeNonPrintable(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Text is the cleaned text of every node in the selection.
func Text(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
		buffer.WriteByte(' ')
	}
	return Clean(buffer.String())
}

// Resolve makes `href` absolute against `base`, it returns `href` unchanged if either fails
// to parse.
func Resolve(base, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseUrl, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseUrl.ResolveReference(ref).String()
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchors returns the anchors in the selection with their hrefs resolved against `base`.
func GetAnchors(ctx context.Context, sel *goquery.Selection, base string) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		_, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}

		name := Clean(GetText(n))
		link := Resolve(base, href)
		anchors = append(anchors, Anchor{
			Name: name,
			Href: link,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", link),
		))
	}

	return anchors
}

// Inputs collects the name/value pairs of every named input inside the selection, the way a
// browser would serialize a form with no user interaction. Unchecked checkboxes and radios
// are skipped.
func Inputs(sel *goquery.Selection) map[string]string {
	out := map[string]string{}
	sel.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		kind := strings.ToLower(input.AttrOr("type", "text"))
		if kind == "checkbox" || kind == "radio" {
			if _, checked := input.Attr("checked"); !checked {
				return
			}
		}
		if kind == "submit" || kind == "image" {
			return
		}
		out[name] = input.AttrOr("value", "")
	})
	return out
}

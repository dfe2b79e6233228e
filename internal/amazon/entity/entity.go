// Package entity builds orders, shipments, items and transactions out of html fragments.
// Parsing holds no state besides the Context, the same fragment always yields the same entity.
package entity

import (
	"strings"

	"amazon-orders/internal/amazon/extract"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/components/telemetry"
	"amazon-orders/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Context is everything a parser needs besides the fragment itself.
type Context struct {
	Selectors selectors.Selectors
	Constants selectors.Constants
	Policy    extract.Policy
}

// NewContext creates a Context, tel is scoped to "entity".
func NewContext(sel selectors.Selectors, constants selectors.Constants, tel telemetry.API, warnOnMissingRequired bool) Context {
	return Context{
		Selectors: sel,
		Constants: constants,
		Policy: extract.Policy{
			Tel:                   telemetry.NewScopedAPI("entity", tel),
			WarnOnMissingRequired: warnOnMissingRequired,
		},
	}
}

func (c Context) field(entity, name string, q selectors.Query) extract.Field {
	return extract.Field{
		Query:  q,
		Base:   c.Constants.BaseURL,
		Entity: entity,
		Name:   name,
	}
}

func (c Context) text(sel *goquery.Selection, f extract.Field) (string, error) {
	return extract.Safe(c.Policy, f, extract.Text(sel, f))
}

// Seller is who sold an item.
type Seller struct {
	Name string `json:"name"`
	Link string `json:"link,omitempty"`
}

// Recipient is who an order ships to.
type Recipient struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

func stripLabel(s, label string) string {
	idx := strings.Index(s, label)
	if idx < 0 {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[idx+len(label):])
}

func parseSeller(c Context, sel *goquery.Selection) (*Seller, error) {
	node, ok := extract.Node(sel, c.field("Seller", "name", c.Selectors.ItemSeller))
	if !ok {
		return nil, nil
	}

	nameField := c.field("Seller", "name", selectors.Query{"a"})
	name, err := c.text(node, nameField)
	if err != nil {
		return nil, err
	}
	if name == "" {
		// no link, the seller name is plain text after the label
		name = stripLabel(htmlutil.Text(node), "Sold by:")
	}
	if name == "" {
		return nil, nil
	}

	linkField := c.field("Seller", "link", selectors.Query{"a"})
	linkField.Attr = "href"
	link, err := c.text(node, linkField)
	if err != nil {
		return nil, err
	}
	return &Seller{Name: name, Link: link}, nil
}

func parseRecipient(c Context, sel *goquery.Selection) (*Recipient, error) {
	node, ok := extract.Node(sel, c.field("Recipient", "recipient", c.Selectors.Recipient))
	if !ok {
		return nil, nil
	}

	name, err := c.text(node, c.field("Recipient", "name", c.Selectors.RecipientName))
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	var lines []string
	extract.First(node, c.Selectors.RecipientAddress).Each(func(_ int, s *goquery.Selection) {
		line := htmlutil.Text(s)
		if line != "" {
			lines = append(lines, line)
		}
	})
	return &Recipient{Name: name, Address: strings.Join(lines, ", ")}, nil
}

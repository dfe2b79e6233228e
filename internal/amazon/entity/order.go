package entity

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/extract"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// OrderKind names the order layouts that carry no items or totals.
type OrderKind string

const (
	KindStandard   OrderKind = ""
	KindGiftCard   OrderKind = "gift_card"
	KindWholeFoods OrderKind = "whole_foods"
	KindFresh      OrderKind = "fresh"
	KindDigital    OrderKind = "digital"
)

// Supported reports whether items, shipments and totals can be parsed off of orders of this kind.
func (k OrderKind) Supported() bool {
	return k == KindStandard
}

type Order struct {
	OrderNumber      string     `json:"order_number"`
	OrderDetailsLink string     `json:"order_details_link"`
	OrderPlacedDate  time.Time  `json:"order_placed_date"`
	GrandTotal       *float64   `json:"grand_total"`
	Recipient        *Recipient `json:"recipient,omitempty"`
	Shipments        []Shipment `json:"shipments"`
	Items            []Item     `json:"items"`
	Kind             OrderKind  `json:"kind,omitempty"`

	// Index is the position of the order in the history listing, nil when the order was
	// fetched by its id.
	Index *int `json:"index,omitempty"`

	// only set when the details page was fetched
	FullDetails           bool       `json:"full_details"`
	PaymentMethod         string     `json:"payment_method,omitempty"`
	PaymentMethodLastFour string     `json:"payment_method_last_4,omitempty"`
	Subtotal              *float64   `json:"subtotal,omitempty"`
	ShippingTotal         *float64   `json:"shipping_total,omitempty"`
	TotalBeforeTax        *float64   `json:"total_before_tax,omitempty"`
	EstimatedTax          *float64   `json:"estimated_tax,omitempty"`
	RefundTotal           *float64   `json:"refund_total,omitempty"`
	Discounts             *float64   `json:"discounts,omitempty"`
	ShippedDate           *time.Time `json:"shipped_date,omitempty"`
	RefundCompletedDate   *time.Time `json:"refund_completed_date,omitempty"`
}

var lastFourRegex = regexp.MustCompile(`(\d{4})\s*$`)

func orderKind(c Context, sel *goquery.Selection) OrderKind {
	switch {
	case extract.Matches(sel, c.Selectors.GiftCardOrder):
		return KindGiftCard
	case extract.Matches(sel, c.Selectors.WholeFoodsOrder):
		return KindWholeFoods
	case extract.Matches(sel, c.Selectors.FreshOrder):
		return KindFresh
	case extract.Matches(sel, c.Selectors.DigitalOrder):
		return KindDigital
	}
	return KindStandard
}

func orderNumberFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Query().Get(selectors.ParamOrderID)
}

func parseOrderNumber(c Context, sel *goquery.Selection, link string) (string, error) {
	number := orderNumberFromLink(link)
	if number != "" {
		return number, nil
	}

	node, ok := extract.Node(sel, c.field("Order", "order_number", c.Selectors.OrderNumber))
	if ok {
		number = selectors.OrderNumberRegex.FindString(htmlutil.Text(node))
	}
	if number == "" {
		// last resort, anything shaped like an order number in the fragment
		number = selectors.OrderNumberRegex.FindString(htmlutil.Text(sel))
	}
	if number == "" {
		return "", errs.ParseError{Entity: "Order", Field: "order_number"}
	}
	return number, nil
}

// ParseOrder builds an Order out of an order card from the history listing, or out of the
// details page when fullDetails is set.
func ParseOrder(c Context, sel *goquery.Selection, fullDetails bool) (Order, error) {
	order := Order{
		FullDetails: fullDetails,
		Kind:        orderKind(c, sel),
		Shipments:   []Shipment{},
		Items:       []Item{},
	}

	linkField := c.field("Order", "order_details_link", c.Selectors.OrderDetailsLink)
	linkField.Attr = "href"
	link, err := c.text(sel, linkField)
	if err != nil {
		return Order{}, err
	}

	order.OrderNumber, err = parseOrderNumber(c, sel, link)
	if err != nil {
		return Order{}, err
	}
	order.OrderDetailsLink = link
	if order.OrderDetailsLink == "" {
		order.OrderDetailsLink = c.Constants.OrderDetailsURL(order.OrderNumber)
	}

	placedField := c.field("Order", "order_placed_date", c.Selectors.OrderPlacedDate)
	placedField.Required = true
	order.OrderPlacedDate, err = extract.Safe(c.Policy, placedField, extract.Date(sel, placedField, c.Constants))
	if err != nil {
		return Order{}, err
	}

	order.Recipient, err = parseRecipient(c, sel)
	if err != nil {
		return Order{}, err
	}

	if order.Kind.Supported() {
		totalField := c.field("Order", "grand_total", c.Selectors.OrderGrandTotal)
		totalField.Required = true
		order.GrandTotal, err = extract.SafePtr(c.Policy, totalField, extract.Currency(sel, totalField))
		if err != nil {
			return Order{}, err
		}

		for _, fragment := range extract.All(sel, c.Selectors.Shipments) {
			shipment, err := ParseShipment(c, fragment, order.OrderNumber)
			if err != nil {
				return Order{}, err
			}
			order.Shipments = append(order.Shipments, shipment)
		}

		order.Items, err = ParseItems(c, sel)
		if err != nil {
			return Order{}, err
		}
	}

	if fullDetails {
		err = parseDetails(c, sel, &order)
		if err != nil {
			return Order{}, err
		}
	}

	return order, nil
}

func parseDetails(c Context, sel *goquery.Selection, order *Order) error {
	payment, err := c.text(sel, c.field("Order", "payment_method", c.Selectors.PaymentMethod))
	if err != nil {
		return err
	}
	order.PaymentMethod = payment
	if match := lastFourRegex.FindStringSubmatch(payment); match != nil {
		order.PaymentMethodLastFour = match[1]
	}

	for _, row := range extract.All(sel, c.Selectors.SubtotalRows) {
		label, amount := splitSubtotalRow(htmlutil.Text(row))
		if amount == nil {
			continue
		}
		applySubtotal(order, label, amount)
	}

	shippedField := c.field("Order", "shipped_date", c.Selectors.ShippedDate)
	order.ShippedDate, err = extract.SafePtr(c.Policy, shippedField, extract.Date(sel, shippedField, c.Constants))
	if err != nil {
		return err
	}

	refundField := c.field("Order", "refund_completed_date", c.Selectors.RefundCompletedOn)
	order.RefundCompletedDate, err = extract.SafePtr(c.Policy, refundField, extract.Date(sel, refundField, c.Constants))
	if err != nil {
		return err
	}
	return nil
}

func splitSubtotalRow(text string) (string, *float64) {
	idx := strings.LastIndex(text, ":")
	if idx < 0 {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(text[:idx])), extract.ToCurrency(text[idx+1:])
}

func addTo(total **float64, amount float64) {
	if *total == nil {
		*total = &amount
		return
	}
	sum := **total + amount
	*total = &sum
}

func applySubtotal(order *Order, label string, amount *float64) {
	switch {
	case strings.Contains(label, "grand total"):
		if order.GrandTotal == nil {
			order.GrandTotal = amount
		}
	case strings.Contains(label, "refund"):
		order.RefundTotal = amount
	case strings.Contains(label, "before tax"):
		order.TotalBeforeTax = amount
	case strings.Contains(label, "promotion"),
		strings.Contains(label, "discount"),
		strings.Contains(label, "coupon"),
		strings.Contains(label, "savings"),
		strings.Contains(label, "free shipping"):
		addTo(&order.Discounts, *amount)
	case strings.Contains(label, "shipping"):
		order.ShippingTotal = amount
	case strings.Contains(label, "subtotal"):
		order.Subtotal = amount
	case strings.Contains(label, "tax"):
		order.EstimatedTax = amount
	}
}

package entity

import (
	"time"

	"amazon-orders/internal/amazon/extract"

	"github.com/PuerkitoBio/goquery"
)

type Item struct {
	Title              string     `json:"title"`
	Link               string     `json:"link,omitempty"`
	Price              *float64   `json:"price,omitempty"`
	Seller             *Seller    `json:"seller,omitempty"`
	Condition          string     `json:"condition,omitempty"`
	ReturnEligibleDate *time.Time `json:"return_eligible_date,omitempty"`
	ImageLink          string     `json:"image_link,omitempty"`
	Quantity           *int       `json:"quantity,omitempty"`
}

// Shipment groups the items that were delivered together. OrderNumber points back at the order
// the shipment belongs to.
type Shipment struct {
	Items          []Item `json:"items"`
	DeliveryStatus string `json:"delivery_status,omitempty"`
	TrackingLink   string `json:"tracking_link,omitempty"`
	OrderNumber    string `json:"order_number"`
}

// ParseItem builds an Item out of an item fragment.
func ParseItem(c Context, sel *goquery.Selection) (Item, error) {
	var item Item
	var err error

	titleField := c.field("Item", "title", c.Selectors.ItemTitle)
	titleField.Required = true
	item.Title, err = c.text(sel, titleField)
	if err != nil {
		return Item{}, err
	}

	linkField := c.field("Item", "link", c.Selectors.ItemLink)
	linkField.Attr = "href"
	item.Link, err = c.text(sel, linkField)
	if err != nil {
		return Item{}, err
	}

	priceField := c.field("Item", "price", c.Selectors.ItemPrice)
	item.Price, err = extract.SafePtr(c.Policy, priceField, extract.Currency(sel, priceField))
	if err != nil {
		return Item{}, err
	}

	item.Seller, err = parseSeller(c, sel)
	if err != nil {
		return Item{}, err
	}

	condition, err := c.text(sel, c.field("Item", "condition", c.Selectors.ItemCondition))
	if err != nil {
		return Item{}, err
	}
	item.Condition = stripLabel(condition, "Condition:")

	returnField := c.field("Item", "return_eligible_date", c.Selectors.ItemReturnEligibleDate)
	item.ReturnEligibleDate, err = extract.SafePtr(c.Policy, returnField, extract.Date(sel, returnField, c.Constants))
	if err != nil {
		return Item{}, err
	}

	imageField := c.field("Item", "image_link", c.Selectors.ItemImage)
	imageField.Attr = "src"
	item.ImageLink, err = c.text(sel, imageField)
	if err != nil {
		return Item{}, err
	}

	quantityField := c.field("Item", "quantity", c.Selectors.ItemQuantity)
	item.Quantity, err = extract.SafePtr(c.Policy, quantityField, extract.Int(sel, quantityField))
	if err != nil {
		return Item{}, err
	}

	return item, nil
}

// ParseItems parses every item fragment under sel.
func ParseItems(c Context, sel *goquery.Selection) ([]Item, error) {
	items := []Item{}
	for _, fragment := range extract.All(sel, c.Selectors.Items) {
		item, err := ParseItem(c, fragment)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ParseShipment builds a Shipment out of a shipment fragment.
func ParseShipment(c Context, sel *goquery.Selection, orderNumber string) (Shipment, error) {
	items, err := ParseItems(c, sel)
	if err != nil {
		return Shipment{}, err
	}

	status, err := c.text(sel, c.field("Shipment", "delivery_status", c.Selectors.ShipmentDeliveryStatus))
	if err != nil {
		return Shipment{}, err
	}

	trackingField := c.field("Shipment", "tracking_link", c.Selectors.ShipmentTrackingLink)
	trackingField.Attr = "href"
	tracking, err := c.text(sel, trackingField)
	if err != nil {
		return Shipment{}, err
	}

	return Shipment{
		Items:          items,
		DeliveryStatus: status,
		TrackingLink:   tracking,
		OrderNumber:    orderNumber,
	}, nil
}

package entity

import (
	"time"

	"amazon-orders/internal/amazon/extract"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Transaction is a line of the payments ledger. A positive GrandTotal is a refund, a negative
// one is a charge.
type Transaction struct {
	CompletedDate    time.Time `json:"completed_date"`
	PaymentMethod    string    `json:"payment_method"`
	GrandTotal       float64   `json:"grand_total"`
	IsRefund         bool      `json:"is_refund"`
	OrderNumber      string    `json:"order_number,omitempty"`
	OrderDetailsLink string    `json:"order_details_link,omitempty"`
	// Seller is empty when the ledger line does not name one.
	Seller string `json:"seller,omitempty"`
}

// ParseTransaction builds a Transaction out of a line item fragment, completed is the date of
// the group the fragment was listed under.
func ParseTransaction(c Context, sel *goquery.Selection, completed time.Time) (Transaction, error) {
	tx := Transaction{CompletedDate: completed}
	var err error

	tx.PaymentMethod, err = c.text(sel, c.field("Transaction", "payment_method", c.Selectors.TransactionPaymentMethod))
	if err != nil {
		return Transaction{}, err
	}

	totalField := c.field("Transaction", "grand_total", c.Selectors.TransactionGrandTotal)
	totalField.Required = true
	tx.GrandTotal, err = extract.Safe(c.Policy, totalField, extract.Currency(sel, totalField))
	if err != nil {
		return Transaction{}, err
	}
	tx.IsRefund = tx.GrandTotal > 0

	node, ok := extract.Node(sel, c.field("Transaction", "order_number", c.Selectors.TransactionOrderLink))
	if ok {
		href, _ := node.Attr("href")
		tx.OrderNumber = orderNumberFromLink(htmlutil.Resolve(c.Constants.BaseURL, href))
		if tx.OrderNumber == "" {
			tx.OrderNumber = selectors.OrderNumberRegex.FindString(htmlutil.Text(node))
		}
	}
	if tx.OrderNumber != "" {
		tx.OrderDetailsLink = c.Constants.OrderDetailsURL(tx.OrderNumber)
	}

	tx.Seller, err = c.text(sel, c.field("Transaction", "seller", c.Selectors.TransactionSeller))
	if err != nil {
		return Transaction{}, err
	}

	return tx, nil
}

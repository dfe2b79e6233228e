package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"amazon-orders/internal/amazon/entity"
	"amazon-orders/internal/amazon/errs"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func money(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func writeJson(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func renderOrders(w io.Writer, list []entity.Order, asJson bool) error {
	if asJson {
		return writeJson(w, list)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Order", "Placed", "Total", "Items", "Kind"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	for _, o := range list {
		index := ""
		if o.Index != nil {
			index = strconv.Itoa(*o.Index)
		}
		titles := make([]string, 0, len(o.Items))
		for _, item := range o.Items {
			titles = append(titles, text.Trim(item.Title, 48))
		}
		kind := string(o.Kind)
		if kind == "" {
			kind = "standard"
		}
		t.AppendRow(table.Row{
			index,
			o.OrderNumber,
			o.OrderPlacedDate.Format(time.DateOnly),
			money(o.GrandTotal),
			strings.Join(titles, "\n"),
			kind,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d orders", len(list))})
	t.Render()
	return nil
}

func renderOrder(w io.Writer, o entity.Order, asJson bool) error {
	if asJson {
		return writeJson(w, o)
	}

	summary := newTable(w)
	summary.AppendRows([]table.Row{
		{"Order", o.OrderNumber},
		{"Placed", o.OrderPlacedDate.Format(time.DateOnly)},
		{"Total", money(o.GrandTotal)},
		{"Subtotal", money(o.Subtotal)},
		{"Shipping", money(o.ShippingTotal)},
		{"Tax", money(o.EstimatedTax)},
		{"Refunded", money(o.RefundTotal)},
		{"Payment", o.PaymentMethod},
		{"Details", o.OrderDetailsLink},
	})
	if o.Recipient != nil {
		summary.AppendRow(table.Row{"Recipient", o.Recipient.Name})
	}
	summary.Render()

	items := newTable(w)
	items.AppendHeader(table.Row{"Item", "Price", "Qty", "Seller"})
	for _, item := range o.Items {
		qty := ""
		if item.Quantity != nil {
			qty = strconv.Itoa(*item.Quantity)
		}
		seller := ""
		if item.Seller != nil {
			seller = item.Seller.Name
		}
		items.AppendRow(table.Row{item.Title, money(item.Price), qty, seller})
	}
	items.Render()
	return nil
}

func renderTransactions(w io.Writer, list []entity.Transaction, asJson bool) error {
	if asJson {
		return writeJson(w, list)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Order", "Payment", "Amount", "Refund", "Seller"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	for _, tx := range list {
		refund := ""
		if tx.IsRefund {
			refund = "yes"
		}
		t.AppendRow(table.Row{
			tx.CompletedDate.Format(time.DateOnly),
			tx.OrderNumber,
			tx.PaymentMethod,
			strconv.FormatFloat(tx.GrandTotal, 'f', 2, 64),
			refund,
			tx.Seller,
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d transactions", len(list))})
	t.Render()
	return nil
}

const (
	listingOrders       = "orders"
	listingTransactions = "transactions"
)

// resumeHint tells the user which flags continue a listing that failed partway through.
func resumeHint(listing string, err error) string {
	resume, ok := errs.ResumeFrom(err)
	if !ok {
		return ""
	}
	if listing == listingTransactions {
		if resume.Continuation == nil {
			return "the first page failed, run transactions again"
		}
		data, marshalErr := json.Marshal(resume.Continuation)
		if marshalErr != nil {
			return ""
		}
		return fmt.Sprintf("resume with: --next-page-data '%s'", data)
	}
	args := []string{fmt.Sprintf("--start-index %d", resume.StartIndex)}
	if resume.TimeFilter != "" {
		args = append(args, "--time-filter "+resume.TimeFilter)
	} else if resume.Year != 0 {
		args = append(args, fmt.Sprintf("--year %d", resume.Year))
	}
	return "resume with: " + strings.Join(args, " ")
}

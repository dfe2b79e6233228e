package entity

import (
	_ "embed"
	"errors"
	"strings"
	"testing"
	"time"

	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/extract"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/order_card.html
var orderCardHtml string

//go:embed testdata/gift_card_card.html
var giftCardHtml string

//go:embed testdata/order_details.html
var orderDetailsHtml string

//go:embed testdata/transaction.html
var transactionHtml string

func testContext(t testing.TB) (Context, *telemetry.Recorder) {
	constants, err := selectors.ForLocale("us")
	if err != nil {
		t.Fatal(err)
	}
	rec := telemetry.NewRecorder()
	return NewContext(selectors.Default(), constants, rec, false), rec
}

func parse(t testing.TB, body string) *goquery.Selection {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return doc.Selection
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestParseOrderCard(t *testing.T) {
	c, _ := testContext(t)
	card := extract.First(parse(t, orderCardHtml), c.Selectors.OrderHistoryEntity)
	require.Equal(t, 1, card.Length())

	order, err := ParseOrder(c, card, false)
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, "112-0399923-3070642", order.OrderNumber)
	require.NotNil(t, order.GrandTotal)
	require.Equal(t, 34.01, *order.GrandTotal)
	require.Equal(t, date(2018, time.December, 21), order.OrderPlacedDate)
	require.NotNil(t, order.Recipient)
	require.Equal(t, "Alex Laird", order.Recipient.Name)
	require.Equal(t, "Alex Laird, 123 Main St, San Francisco, CA 94103", order.Recipient.Address)
	require.False(t, order.FullDetails)
	require.Nil(t, order.Index)
	require.Equal(t, KindStandard, order.Kind)
	require.Contains(t, order.OrderDetailsLink, "https://www.amazon.com/gp/your-account/order-details")

	require.Len(t, order.Shipments, 1)
	require.Equal(t, "Delivered Dec 24, 2018", order.Shipments[0].DeliveryStatus)
	require.Equal(t, "112-0399923-3070642", order.Shipments[0].OrderNumber)
	require.Contains(t, order.Shipments[0].TrackingLink, "/gp/your-account/ship-track")

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	require.Equal(t, "Taste Of The Wild Rocky Mountain Grain-Free Dry Cat Food...", item.Title)
	require.NotNil(t, item.ReturnEligibleDate)
	require.Equal(t, date(2019, time.February, 2), *item.ReturnEligibleDate)
	require.Equal(t, 34.01, *item.Price)
	require.Equal(t, "Amazon.com Services, Inc", item.Seller.Name)
	require.Equal(t, "https://www.amazon.com/gp/aag/main?seller=A3S7K5DRVJY9J8", item.Seller.Link)
	require.Equal(t, "https://m.media-amazon.com/images/I/51qCWfh0v5L._SY90_.jpg", item.ImageLink)
	require.Nil(t, item.Quantity)
	require.Equal(t, "", item.Condition)

	diff := cmp.Diff(order.Items, order.Shipments[0].Items)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestParseOrderIsIdempotent(t *testing.T) {
	c, _ := testContext(t)
	card := extract.First(parse(t, orderCardHtml), c.Selectors.OrderHistoryEntity)

	first, err := ParseOrder(c, card, false)
	require.NoError(t, err)
	second, err := ParseOrder(c, card, false)
	require.NoError(t, err)

	diff := cmp.Diff(first, second)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestParseGiftCardOrder(t *testing.T) {
	c, rec := testContext(t)
	card := extract.First(parse(t, giftCardHtml), c.Selectors.OrderHistoryEntity)

	order, err := ParseOrder(c, card, false)
	require.NoError(t, err)
	require.Equal(t, KindGiftCard, order.Kind)
	require.Equal(t, "113-1234567-7654321", order.OrderNumber)
	require.Nil(t, order.GrandTotal)
	require.Empty(t, order.Items)
	require.Empty(t, order.Shipments)
	require.Equal(t, "https://www.amazon.com/gp/your-account/order-details?orderID=113-1234567-7654321", order.OrderDetailsLink)
	require.Empty(t, rec.Reports("warning", ""))
}

func TestParseOrderWithoutNumber(t *testing.T) {
	c, _ := testContext(t)
	card := parse(t, `<div class="order"><span class="value">December 21, 2018</span></div>`)

	_, err := ParseOrder(c, card, false)
	var parseErr errs.ParseError
	require.True(t, errors.As(err, &parseErr))
	require.Equal(t, "order_number", parseErr.Field)
}

func TestMissingGrandTotal(t *testing.T) {
	body := `<div class="order">
		<div class="order-info"><div class="a-row"><div class="a-column"><span class="value">December 21, 2018</span></div></div></div>
		<div class="yohtmlc-order-id"><span class="value">112-0399923-3070642</span></div>
	</div>`

	c, rec := testContext(t)
	_, err := ParseOrder(c, parse(t, body), false)
	require.Error(t, err)

	c.Policy.WarnOnMissingRequired = true
	order, err := ParseOrder(c, parse(t, body), false)
	require.NoError(t, err)
	require.Nil(t, order.GrandTotal)
	require.Len(t, rec.Reports("warning", "field.parse"), 1)
}

func TestParseOrderDetails(t *testing.T) {
	c, _ := testContext(t)
	page := extract.First(parse(t, orderDetailsHtml), c.Selectors.OrderDetailsEntity)

	order, err := ParseOrder(c, page, true)
	require.NoError(t, err)

	require.True(t, order.FullDetails)
	require.Equal(t, "112-0399923-3070642", order.OrderNumber)
	require.Equal(t, date(2018, time.December, 21), order.OrderPlacedDate)
	require.Equal(t, 34.01, *order.GrandTotal)
	require.Equal(t, "Visa ending in 4242", order.PaymentMethod)
	require.Equal(t, "4242", order.PaymentMethodLastFour)
	require.Equal(t, 31.99, *order.Subtotal)
	require.Equal(t, 5.99, *order.ShippingTotal)
	require.Equal(t, -5.99, *order.Discounts)
	require.Equal(t, 31.99, *order.TotalBeforeTax)
	require.Equal(t, 2.02, *order.EstimatedTax)
	require.Nil(t, order.RefundTotal)
	require.Equal(t, date(2018, time.December, 22), *order.ShippedDate)
	require.Nil(t, order.RefundCompletedDate)
	require.Equal(t, "Alex Laird", order.Recipient.Name)
	require.Equal(t, "123 Main St, San Francisco, CA 94103", order.Recipient.Address)

	require.Len(t, order.Items, 1)
	require.Equal(t, "New", order.Items[0].Condition)
	require.Equal(t, 1, *order.Items[0].Quantity)
	require.Equal(t, "https://www.amazon.com/gp/product/B008EL5AQ8", order.Items[0].Link)
}

func TestMergeOrder(t *testing.T) {
	c, _ := testContext(t)
	summary, err := ParseOrder(c, extract.First(parse(t, orderCardHtml), c.Selectors.OrderHistoryEntity), false)
	require.NoError(t, err)
	index := 4
	summary.Index = &index

	details, err := ParseOrder(c, extract.First(parse(t, orderDetailsHtml), c.Selectors.OrderDetailsEntity), true)
	require.NoError(t, err)

	merged := MergeOrder(summary, details)
	require.True(t, merged.FullDetails)
	require.Equal(t, 4, *merged.Index)

	// summary side
	require.Equal(t, summary.OrderDetailsLink, merged.OrderDetailsLink)
	require.Equal(t, summary.Recipient, merged.Recipient)
	diff := cmp.Diff(summary.Shipments, merged.Shipments)
	if diff != "" {
		t.Fatal(diff)
	}

	// details side
	require.Equal(t, "4242", merged.PaymentMethodLastFour)
	require.Equal(t, details.Subtotal, merged.Subtotal)
	require.Equal(t, details.ShippedDate, merged.ShippedDate)
	diff = cmp.Diff(details.Items, merged.Items)
	if diff != "" {
		t.Fatal(diff)
	}

	// details without items keeps the summary items
	details.Items = nil
	merged = MergeOrder(summary, details)
	diff = cmp.Diff(summary.Items, merged.Items)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestParseTransaction(t *testing.T) {
	c, _ := testContext(t)
	completed := date(2024, time.January, 3)

	tx, err := ParseTransaction(c, parse(t, transactionHtml), completed)
	require.NoError(t, err)

	diff := cmp.Diff(Transaction{
		CompletedDate:    completed,
		PaymentMethod:    "Visa ****4242",
		GrandTotal:       -34.01,
		IsRefund:         false,
		OrderNumber:      "112-0399923-3070642",
		OrderDetailsLink: "https://www.amazon.com/gp/your-account/order-details?orderID=112-0399923-3070642",
		Seller:           "AMZN Mktp US",
	}, tx)
	if diff != "" {
		t.Fatal(diff)
	}

	refund, err := ParseTransaction(c, parse(t, strings.Replace(transactionHtml, "-$34.01", "+$34.01", 1)), completed)
	require.NoError(t, err)
	require.True(t, refund.IsRefund)
	require.Equal(t, refund.GrandTotal > 0, refund.IsRefund)
}

package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustDoc(t testing.TB, body string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestClean(t *testing.T) {
	require.Equal(t, "Order placed December 21, 2018", Clean("\n  Order placed \n\t December 21, 2018  "))
	require.Equal(t, "", Clean(" \n "))
}

func TestText(t *testing.T) {
	doc := mustDoc(t, `<div><span>Grand</span><script>var x = 1;</script> <b>Total:</b></div>`)
	require.Equal(t, "Grand Total:", Text(doc.Find("div")))
}

func TestResolve(t *testing.T) {
	base := "https://www.amazon.com/your-orders/orders?timeFilter=year-2018"
	require.Equal(t, "https://www.amazon.com/gp/your-account/order-details?orderID=1", Resolve(base, "/gp/your-account/order-details?orderID=1"))
	require.Equal(t, "https://example.com/a", Resolve(base, "https://example.com/a"))
	require.Equal(t, "", Resolve(base, ""))
}

func TestGetAnchors(t *testing.T) {
	doc := mustDoc(t, `<a href="/dp/B00">  Cat
	Food </a><a href="https://www.amazon.com/sp?seller=1">Seller</a>`)
	anchors := GetAnchors(context.Background(), doc.Find("a"), "https://www.amazon.com")

	diff := cmp.Diff([]Anchor{
		{Name: "Cat Food", Href: "https://www.amazon.com/dp/B00"},
		{Name: "Seller", Href: "https://www.amazon.com/sp?seller=1"},
	}, anchors)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestInputs(t *testing.T) {
	doc := mustDoc(t, `<form>
		<input type="hidden" name="appActionToken" value="abc">
		<input type="email" name="email">
		<input type="checkbox" name="rememberMe" value="true">
		<input type="radio" name="otpDeviceContext" value="sms" checked>
		<input type="submit" name="go" value="Sign in">
		<input type="text" value="no name">
	</form>`)

	diff := cmp.Diff(map[string]string{
		"appActionToken":   "abc",
		"email":            "",
		"otpDeviceContext": "sms",
	}, Inputs(doc.Find("form")))
	if diff != "" {
		t.Fatal(diff)
	}
}

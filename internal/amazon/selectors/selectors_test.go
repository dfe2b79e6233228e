package selectors

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMergeOverridesOnlyNonEmpty(t *testing.T) {
	defaults := Default()
	merged, err := Merge(defaults, Selectors{
		OrderHistoryEntity: Query{"div.js-order-card"},
	})
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, Query{"div.js-order-card"}, merged.OrderHistoryEntity)
	diff := cmp.Diff(defaults.SignInForm, merged.SignInForm)
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, Query{"div.order-card", "div.order"}, Default().OrderHistoryEntity, "defaults must not be mutated")
}

func TestForLocale(t *testing.T) {
	us, err := ForLocale("")
	require.NoError(t, err)
	require.Equal(t, "https://www.amazon.com", us.BaseURL)

	de, err := ForLocale("DE")
	require.NoError(t, err)
	require.Equal(t, "https://www.amazon.de", de.BaseURL)
	require.Equal(t, "March", de.MonthNames["März"])

	_, err = ForLocale("fr")
	require.Error(t, err)
}

func TestMergeConstants(t *testing.T) {
	us, err := ForLocale("us")
	require.NoError(t, err)

	merged, err := MergeConstants(us, Constants{BaseURL: "http://127.0.0.1:8080"})
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8080/your-orders/orders?startIndex=10&timeFilter=year-2018", merged.OrderHistoryURL(YearFilter(2018), 10))
	require.Equal(t, "http://127.0.0.1:8080/gp/your-account/order-details?orderID=112-0399923-3070642", merged.OrderDetailsURL("112-0399923-3070642"))
	require.Equal(t, "usflex", merged.AssocHandle)
}

func TestSignInURL(t *testing.T) {
	us, err := ForLocale("us")
	require.NoError(t, err)

	u, err := url.Parse(us.SignInURL())
	require.NoError(t, err)
	require.True(t, us.IsSignInURL(u))
	require.Equal(t, "usflex", u.Query().Get("openid.assoc_handle"))
	require.False(t, us.IsSignInURL(&url.URL{Path: "/your-orders/orders"}))
}

func TestRegexes(t *testing.T) {
	require.Equal(t, "112-0399923-3070642", OrderNumberRegex.FindString("Order # 112-0399923-3070642"))
	require.Equal(t, "D01-1234567-1234567", OrderNumberRegex.FindString("Order #D01-1234567-1234567"))
	for _, ok := range []string{"last30", "months-3", "year-2020", "archived"} {
		require.True(t, TimeFilterRegex.MatchString(ok), ok)
	}
	require.False(t, TimeFilterRegex.MatchString("year-20"))
	require.False(t, TimeFilterRegex.MatchString("last3000"))
}

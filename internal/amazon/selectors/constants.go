package selectors

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"dario.cat/mergo"
)

const (
	ParamTimeFilter = "timeFilter"
	ParamStartIndex = "startIndex"
	ParamOrderID    = "orderID"

	// PageSize is how many order cards the history listing renders per page.
	PageSize = 10
)

var (
	OrderNumberRegex = regexp.MustCompile(`[0-9D]\d{2}-\d{7}-\d{7}`)
	TimeFilterRegex  = regexp.MustCompile(`^(last30|months-3|year-\d{4}|archived)$`)
	JSRequiredRegex  = regexp.MustCompile(`(?is)verify that you're not a robot.*enable javascript`)
	WAFPropsRegex    = regexp.MustCompile(`(?s)window\.gokuProps\s*=\s*(\{.*?\})\s*;?`)
	WAFChallengeJS   = regexp.MustCompile(`src="(https://[^"]+/challenge\.js)"`)
)

// Constants are the urls, cookie names and formats of one storefront.
type Constants struct {
	BaseURL          string            `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	AssocHandle      string            `json:"assoc_handle,omitempty" yaml:"assoc_handle,omitempty"`
	SignInPath       string            `json:"sign_in_path,omitempty" yaml:"sign_in_path,omitempty"`
	SignOutPath      string            `json:"sign_out_path,omitempty" yaml:"sign_out_path,omitempty"`
	OrderHistoryPath string            `json:"order_history_path,omitempty" yaml:"order_history_path,omitempty"`
	OrderDetailsPath string            `json:"order_details_path,omitempty" yaml:"order_details_path,omitempty"`
	TransactionsPath string            `json:"transactions_path,omitempty" yaml:"transactions_path,omitempty"`
	AuthCookieNames  []string          `json:"auth_cookie_names,omitempty" yaml:"auth_cookie_names,omitempty"`
	WAFCookieName    string            `json:"waf_cookie_name,omitempty" yaml:"waf_cookie_name,omitempty"`
	DateLayouts      []string          `json:"date_layouts,omitempty" yaml:"date_layouts,omitempty"`
	MonthNames       map[string]string `json:"month_names,omitempty" yaml:"month_names,omitempty"`
	AcceptLanguage   string            `json:"accept_language,omitempty" yaml:"accept_language,omitempty"`
	UserAgent        string            `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

var englishLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2006",
}

func base(baseUrl, assocHandle, language string) Constants {
	return Constants{
		BaseURL:          baseUrl,
		AssocHandle:      assocHandle,
		SignInPath:       "/ap/signin",
		SignOutPath:      "/gp/sign-out.html",
		OrderHistoryPath: "/your-orders/orders",
		OrderDetailsPath: "/gp/your-account/order-details",
		TransactionsPath: "/cpe/yourpayments/transactions",
		AuthCookieNames:  []string{"x-main", "at-main", "sess-at-main"},
		WAFCookieName:    "aws-waf-token",
		DateLayouts:      englishLayouts,
		AcceptLanguage:   language,
		UserAgent:        userAgent,
	}
}

var locales = map[string]func() Constants{
	"us": func() Constants {
		return base("https://www.amazon.com", "usflex", "en-US,en;q=0.9")
	},
	"uk": func() Constants {
		return base("https://www.amazon.co.uk", "gbflex", "en-GB,en;q=0.9")
	},
	"ca": func() Constants {
		return base("https://www.amazon.ca", "caflex", "en-CA,en;q=0.9")
	},
	"de": func() Constants {
		c := base("https://www.amazon.de", "deflex", "de-DE,de;q=0.9,en;q=0.5")
		c.DateLayouts = append([]string{"2. January 2006"}, englishLayouts...)
		c.MonthNames = map[string]string{
			"Januar":   "January",
			"Jänner":   "January",
			"Februar":  "February",
			"März":     "March",
			"Mai":      "May",
			"Juni":     "June",
			"Juli":     "July",
			"Oktober":  "October",
			"Dezember": "December",
		}
		return c
	},
}

// Locales lists every supported storefront.
func Locales() []string {
	return []string{"us", "uk", "ca", "de"}
}

// ForLocale returns the constants of a storefront, an empty locale means "us".
func ForLocale(locale string) (Constants, error) {
	if locale == "" {
		locale = "us"
	}
	ctor, ok := locales[strings.ToLower(locale)]
	if !ok {
		return Constants{}, fmt.Errorf("unknown locale %q (known: %s)", locale, strings.Join(Locales(), ", "))
	}
	return ctor(), nil
}

// MergeConstants applies every non-empty field of `override` on top of `base`.
func MergeConstants(base, override Constants) (Constants, error) {
	out := base
	err := mergo.Merge(&out, override, mergo.WithOverride)
	if err != nil {
		return Constants{}, fmt.Errorf("merge constants: %w", err)
	}
	return out, nil
}

func (c Constants) URL(path string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + path
}

func (c Constants) SignInURL() string {
	returnTo := c.URL("/?ref_=nav_custrec_signin")
	q := url.Values{}
	q.Set("openid.pape.max_auth_age", "0")
	q.Set("openid.return_to", returnTo)
	q.Set("openid.identity", "http://specs.openid.net/auth/2.0/identifier_select")
	q.Set("openid.assoc_handle", c.AssocHandle)
	q.Set("openid.mode", "checkid_setup")
	q.Set("openid.claimed_id", "http://specs.openid.net/auth/2.0/identifier_select")
	q.Set("openid.ns", "http://specs.openid.net/auth/2.0")
	return c.URL(c.SignInPath) + "?" + q.Encode()
}

func (c Constants) SignOutURL() string {
	return c.URL(c.SignOutPath)
}

// OrderHistoryURL builds the listing url for a time filter, startIndex is omitted when zero.
func (c Constants) OrderHistoryURL(timeFilter string, startIndex int) string {
	q := url.Values{}
	q.Set(ParamTimeFilter, timeFilter)
	if startIndex > 0 {
		q.Set(ParamStartIndex, strconv.Itoa(startIndex))
	}
	return c.URL(c.OrderHistoryPath) + "?" + q.Encode()
}

func (c Constants) OrderDetailsURL(orderId string) string {
	q := url.Values{}
	q.Set(ParamOrderID, orderId)
	return c.URL(c.OrderDetailsPath) + "?" + q.Encode()
}

func (c Constants) TransactionsURL() string {
	return c.URL(c.TransactionsPath)
}

// IsSignInURL reports whether `u` points at the sign in page of this storefront.
func (c Constants) IsSignInURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	return strings.HasPrefix(u.Path, c.SignInPath)
}

// YearFilter is the time filter of a calendar year.
func YearFilter(year int) string {
	return fmt.Sprintf("year-%d", year)
}

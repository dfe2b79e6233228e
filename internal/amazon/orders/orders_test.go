package orders

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/amazon/session"
	"amazon-orders/internal/components/chrono"
	"amazon-orders/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/order_card.html
var orderCardHtml string

//go:embed testdata/order_details.html
var orderDetailsHtml string

const scenarioOrder = "112-0399923-3070642"

var orderNumbers = []string{scenarioOrder, "112-0000000-0000001", "112-0000000-0000002"}

var clock = chrono.FixedTime{At: time.Date(2018, time.December, 30, 0, 0, 0, 0, time.UTC)}

type historySite struct {
	mutex sync.Mutex
	// pages maps a start index to the order numbers on that page
	pages         map[int][]string
	brokenIndex   int
	failingIndex  int
	listingHits   int
	detailsHits   int
	listingParams []string
}

func newHistorySite() *historySite {
	return &historySite{
		pages: map[int][]string{
			0: orderNumbers[:2],
			2: orderNumbers[2:],
		},
		brokenIndex:  -1,
		failingIndex: -1,
	}
}

func card(orderNumber string) string {
	return strings.ReplaceAll(orderCardHtml, scenarioOrder, orderNumber)
}

func (s *historySite) listing(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.listingHits++
	s.listingParams = append(s.listingParams, r.URL.RawQuery)

	startIndex, _ := strconv.Atoi(r.URL.Query().Get(selectors.ParamStartIndex))
	if startIndex == s.failingIndex {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "<html><body>oops</body></html>")
		return
	}
	if startIndex == s.brokenIndex {
		fmt.Fprint(w, "<html><body><div id='somethingElse'></div></body></html>")
		return
	}

	var body strings.Builder
	body.WriteString(`<html><body><div id="ordersContainer">`)
	for _, number := range s.pages[startIndex] {
		body.WriteString(card(number))
	}
	body.WriteString(`</div>`)
	next := startIndex + len(s.pages[startIndex])
	if _, ok := s.pages[next]; ok && len(s.pages[startIndex]) > 0 {
		fmt.Fprintf(&body,
			`<ul class="a-pagination"><li class="a-normal"><a href="#">1</a></li><li class="a-last"><a href="/your-orders/orders?timeFilter=%s&startIndex=%d">Next</a></li></ul>`,
			r.URL.Query().Get(selectors.ParamTimeFilter), next,
		)
	} else {
		body.WriteString(`<ul class="a-pagination"><li class="a-disabled a-last">Next</li></ul>`)
	}
	body.WriteString(`</body></html>`)
	fmt.Fprint(w, body.String())
}

func (s *historySite) details(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.detailsHits++
	number := r.URL.Query().Get(selectors.ParamOrderID)
	fmt.Fprint(w, strings.ReplaceAll(orderDetailsHtml, scenarioOrder, number))
}

func (s *historySite) hits() (int, int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.listingHits, s.detailsHits
}

func (s *historySite) start(t testing.TB) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/your-orders/orders", s.listing)
	mux.HandleFunc("/gp/your-account/order-details", s.details)
	mux.HandleFunc("/gp/your-account/order-details/", s.details)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSession(t testing.TB, srv *httptest.Server, cookies map[string]string) (*session.Session, *telemetry.Recorder) {
	constants, err := selectors.ForLocale("us")
	if err != nil {
		t.Fatal(err)
	}
	constants, err = selectors.MergeConstants(constants, selectors.Constants{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	rec := telemetry.NewRecorder()
	s, err := session.New(context.Background(), session.Options{
		Username:    "user@example.com",
		Password:    "password",
		Constants:   constants,
		Selectors:   selectors.Default(),
		CookieStore: session.NewMemoryCookieStore(cookies),
		IO:          session.NewConsoleIO(strings.NewReader(""), io.Discard),
	}, rec)
	if err != nil {
		t.Fatal(err)
	}
	return s, rec
}

func newTestHistory(t testing.TB, site *historySite, cache *DetailsCache) (History, *telemetry.Recorder) {
	srv := site.start(t)
	s, rec := newTestSession(t, srv, map[string]string{"x-main": "token"})
	return NewHistory(s, rec, clock, cache), rec
}

func TestOrderHistoryPaging(t *testing.T) {
	site := newHistorySite()
	history, rec := newTestHistory(t, site, nil)

	orders, err := history.GetOrderHistory(context.Background(), Options{Year: 2018, KeepPaging: true})
	require.NoError(t, err)

	var numbers []string
	var positions []int
	for _, order := range orders {
		numbers = append(numbers, order.OrderNumber)
		require.NotNil(t, order.Index)
		positions = append(positions, *order.Index)
		require.False(t, order.FullDetails)
	}
	if diff := cmp.Diff(orderNumbers, numbers); diff != "" {
		t.Fatalf("order numbers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, positions); diff != "" {
		t.Fatalf("indexes mismatch (-want +got):\n%s", diff)
	}

	first := orders[0]
	require.Equal(t, 34.01, *first.GrandTotal)
	require.Equal(t, time.Date(2018, time.December, 21, 0, 0, 0, 0, time.UTC), first.OrderPlacedDate)
	require.Equal(t, "Alex Laird", first.Recipient.Name)
	require.Len(t, first.Shipments, 1)
	require.True(t, strings.HasPrefix(first.Items[0].Title, "Taste Of The Wild Rocky Mountain Grain-Free Dry Cat Food"))

	listingHits, detailsHits := site.hits()
	require.Equal(t, 2, listingHits)
	require.Equal(t, 0, detailsHits)
	require.Equal(t, "timeFilter=year-2018", site.listingParams[0])

	counts := rec.Reports("count", report_history_orders)
	require.Len(t, counts, 1)
	require.Equal(t, int64(3), counts[0].Params[0])
}

func TestOrderHistorySinglePage(t *testing.T) {
	site := newHistorySite()
	history, _ := newTestHistory(t, site, nil)

	orders, err := history.GetOrderHistory(context.Background(), Options{Year: 2018})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	listingHits, _ := site.hits()
	require.Equal(t, 1, listingHits)
}

func TestOrderHistoryMaxPages(t *testing.T) {
	site := newHistorySite()
	history, _ := newTestHistory(t, site, nil)

	orders, err := history.GetOrderHistory(context.Background(), Options{Year: 2018, KeepPaging: true, MaxPages: 1})
	require.NoError(t, err)
	require.Len(t, orders, 2)
}

func TestOrderHistoryDefaultsToCurrentYear(t *testing.T) {
	site := newHistorySite()
	history, _ := newTestHistory(t, site, nil)

	_, err := history.GetOrderHistory(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, "timeFilter=year-2018", site.listingParams[0])
}

func TestYearAndTimeFilterConflict(t *testing.T) {
	site := newHistorySite()
	history, _ := newTestHistory(t, site, nil)

	_, err := history.GetOrderHistory(context.Background(), Options{Year: 2020, TimeFilter: "last30"})
	var configErr errs.ConfigError
	require.True(t, errors.As(err, &configErr), err)

	_, err = history.GetOrderHistory(context.Background(), Options{TimeFilter: "yesterday"})
	require.True(t, errors.As(err, &configErr), err)

	listingHits, _ := site.hits()
	require.Equal(t, 0, listingHits)
}

func TestStartIndexDisablesPaging(t *testing.T) {
	site := newHistorySite()
	history, _ := newTestHistory(t, site, nil)

	start := 2
	orders, err := history.GetOrderHistory(context.Background(), Options{TimeFilter: "year-2018", StartIndex: &start, KeepPaging: true})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, 2, *orders[0].Index)
	require.Equal(t, orderNumbers[2], orders[0].OrderNumber)

	listingHits, _ := site.hits()
	require.Equal(t, 1, listingHits)
}

func TestStartIndexBeyondTotal(t *testing.T) {
	site := newHistorySite()
	history, _ := newTestHistory(t, site, nil)

	start := 50
	orders, err := history.GetOrderHistory(context.Background(), Options{Year: 2018, StartIndex: &start})
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestUnparseablePageCarriesResume(t *testing.T) {
	site := newHistorySite()
	site.brokenIndex = 2
	history, rec := newTestHistory(t, site, nil)

	orders, err := history.GetOrderHistory(context.Background(), Options{Year: 2018, KeepPaging: true})
	var unparseable errs.UnparseablePageError
	require.True(t, errors.As(err, &unparseable), err)
	require.Len(t, orders, 2)

	resume, ok := errs.ResumeFrom(err)
	require.True(t, ok)
	require.Equal(t, 2, resume.StartIndex)
	require.Equal(t, 2018, resume.Year)
	require.Equal(t, "year-2018", resume.TimeFilter)
	require.Contains(t, resume.NextPageURL, "startIndex=2")
	require.Len(t, rec.Reports("broken", report_history_page), 1)
}

func TestHttpErrorCarriesResume(t *testing.T) {
	site := newHistorySite()
	site.failingIndex = 2
	history, _ := newTestHistory(t, site, nil)

	_, err := history.GetOrderHistory(context.Background(), Options{TimeFilter: "year-2018", KeepPaging: true})
	var statusErr errs.StatusError
	require.True(t, errors.As(err, &statusErr), err)
	require.Equal(t, http.StatusInternalServerError, statusErr.Status)

	resume, ok := errs.ResumeFrom(err)
	require.True(t, ok)
	require.Equal(t, 2, resume.StartIndex)
	require.Equal(t, 0, resume.Year)

	// picking up from the resume state finishes the listing
	site.mutex.Lock()
	site.failingIndex = -1
	site.mutex.Unlock()
	orders, err := history.GetOrderHistory(context.Background(), Options{TimeFilter: resume.TimeFilter, StartIndex: &resume.StartIndex})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, 2, *orders[0].Index)
}

func TestOrderHistoryFullDetails(t *testing.T) {
	cache, err := OpenDetailsCache("", "user@example.com", time.Hour, clock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cache.Close() })

	site := newHistorySite()
	history, _ := newTestHistory(t, site, cache)

	orders, err := history.GetOrderHistory(context.Background(), Options{Year: 2018, FullDetails: true})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	order := orders[0]
	require.True(t, order.FullDetails)
	require.Equal(t, 0, *order.Index)
	require.Equal(t, "Visa ending in 4242", order.PaymentMethod)
	require.Equal(t, 2.02, *order.EstimatedTax)
	require.Equal(t, "New", order.Items[0].Condition)
	require.Equal(t, "Alex Laird", order.Recipient.Name)
	require.Equal(t, orderNumbers[1], orders[1].OrderNumber)

	_, detailsHits := site.hits()
	require.Equal(t, 2, detailsHits)

	again, err := history.GetOrderHistory(context.Background(), Options{Year: 2018, FullDetails: true})
	require.NoError(t, err)
	if diff := cmp.Diff(orders, again); diff != "" {
		t.Fatalf("cached details differ (-first +second):\n%s", diff)
	}
	_, detailsHits = site.hits()
	require.Equal(t, 2, detailsHits, "details pages come from the cache the second time")
}

func TestGetOrder(t *testing.T) {
	site := newHistorySite()
	history, _ := newTestHistory(t, site, nil)

	order, err := history.GetOrder(context.Background(), scenarioOrder)
	require.NoError(t, err)
	require.Nil(t, order.Index)
	require.True(t, order.FullDetails)
	require.Equal(t, scenarioOrder, order.OrderNumber)
	require.Equal(t, 34.01, *order.GrandTotal)

	_, err = history.GetOrder(context.Background(), "not-an-order")
	var configErr errs.ConfigError
	require.True(t, errors.As(err, &configErr))
}

func TestNotAuthenticated(t *testing.T) {
	site := newHistorySite()
	srv := site.start(t)
	s, rec := newTestSession(t, srv, nil)
	history := NewHistory(s, rec, clock, nil)

	_, err := history.GetOrderHistory(context.Background(), Options{Year: 2018})
	require.ErrorIs(t, err, errs.ErrNotAuthenticated)
	_, err = history.GetOrder(context.Background(), scenarioOrder)
	require.ErrorIs(t, err, errs.ErrNotAuthenticated)

	listingHits, detailsHits := site.hits()
	require.Equal(t, 0, listingHits+detailsHits)
}

// expiringSession reports the session as expired on its first request.
type expiringSession struct {
	*session.Session
	expired bool
	reauths int
}

func (s *expiringSession) Get(ctx context.Context, target string) (*session.Page, error) {
	if !s.expired {
		s.expired = true
		return nil, errs.SessionExpiredError{URL: target}
	}
	return s.Session.Get(ctx, target)
}

func (s *expiringSession) Reauthenticate(ctx context.Context) error {
	s.reauths++
	return nil
}

func TestReauthOnExpiry(t *testing.T) {
	site := newHistorySite()
	srv := site.start(t)
	inner, rec := newTestSession(t, srv, map[string]string{"x-main": "token"})

	expiring := &expiringSession{Session: inner}
	history := NewHistory(expiring, rec, clock, nil)
	_, err := history.GetOrderHistory(context.Background(), Options{Year: 2018})
	var expired errs.SessionExpiredError
	require.True(t, errors.As(err, &expired))
	require.Equal(t, 0, expiring.reauths)

	expiring = &expiringSession{Session: inner}
	history = NewHistory(expiring, rec, clock, nil)
	orders, err := history.GetOrderHistory(context.Background(), Options{Year: 2018, Reauth: true})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, 1, expiring.reauths)
	require.Len(t, rec.Reports("warning", report_history_reauth), 1)
}

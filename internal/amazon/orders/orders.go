package orders

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"amazon-orders/internal/amazon/entity"
	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/extract"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/amazon/session"
	"amazon-orders/internal/components/assert"
	"amazon-orders/internal/components/chrono"
	"amazon-orders/internal/components/telemetry"
	"amazon-orders/internal/htmlutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("amazon-orders/orders")

const (
	report_history_page    = "history.page"
	report_history_details = "history.details"
	report_history_reauth  = "history.reauth"
	report_history_orders  = "history.orders"
)

// Session is the part of session.Session the order listing needs.
type Session interface {
	IsAuthenticated() bool
	Get(ctx context.Context, target string) (*session.Page, error)
	Reauthenticate(ctx context.Context) error
	EntityContext() entity.Context
	Constants() selectors.Constants
	Selectors() selectors.Selectors
}

type Options struct {
	// Year selects the orders placed in a calendar year, it cannot be combined with TimeFilter.
	// When both are unset the current year is used.
	Year int
	// TimeFilter is one of last30, months-3, year-YYYY or archived.
	TimeFilter string
	// StartIndex fetches the single page starting at this index, auto-paging is off when it
	// is set.
	StartIndex *int
	// FullDetails fetches the details page of every order.
	FullDetails bool
	// KeepPaging follows the next page link until the listing ends.
	KeepPaging bool
	// MaxPages bounds how many listing pages are fetched, 0 means no bound.
	MaxPages int
	// Reauth logs out and back in once when the session expires partway through, then
	// fetches the page again.
	Reauth bool
}

type History struct {
	session Session
	tel     telemetry.API
	time    chrono.TimeAPI
	cache   *DetailsCache
}

// NewHistory creates a History, cache may be nil.
func NewHistory(s Session, tel telemetry.API, time chrono.TimeAPI, cache *DetailsCache) History {
	assert.NotNil(s)
	assert.NotNil(tel)
	assert.NotNil(time)
	return History{
		session: s,
		tel:     telemetry.NewScopedAPI("orders", tel),
		time:    time,
		cache:   cache,
	}
}

func (h History) validate(opts Options) error {
	if opts.Year != 0 && opts.TimeFilter != "" {
		return errs.Configf("year and time_filter cannot both be given")
	}
	if opts.TimeFilter != "" && !selectors.TimeFilterRegex.MatchString(opts.TimeFilter) {
		return errs.Configf("time_filter %q must be one of last30, months-3, year-YYYY or archived", opts.TimeFilter)
	}
	if opts.Year < 0 {
		return errs.Configf("year %d is not valid", opts.Year)
	}
	if opts.StartIndex != nil && *opts.StartIndex < 0 {
		return errs.Configf("start_index %d must not be negative", *opts.StartIndex)
	}
	if opts.MaxPages < 0 {
		return errs.Configf("max_pages %d must not be negative", opts.MaxPages)
	}
	return nil
}

func (h History) get(ctx context.Context, target string, reauth bool) (*session.Page, error) {
	page, err := h.session.Get(ctx, target)
	var expired errs.SessionExpiredError
	if !reauth || !errors.As(err, &expired) {
		return page, err
	}

	h.tel.ReportWarning(report_history_reauth, target)
	err = h.session.Reauthenticate(ctx)
	if err != nil {
		return nil, err
	}
	return h.session.Get(ctx, target)
}

// GetOrderHistory lists orders page by page. Orders get a running Index starting at the start
// index. Failures partway through return the orders gathered so far along with an error that
// carries an errs.Resume pointing at the page that failed.
func (h History) GetOrderHistory(ctx context.Context, opts Options) ([]entity.Order, error) {
	err := h.validate(opts)
	if err != nil {
		return nil, err
	}
	if !h.session.IsAuthenticated() {
		return nil, errs.ErrNotAuthenticated
	}

	ctx, span := tracer.Start(ctx, "GetOrderHistory")
	defer span.End()

	constants := h.session.Constants()
	timeFilter := opts.TimeFilter
	if timeFilter == "" {
		year := opts.Year
		if year == 0 {
			year = h.time.Now().Year()
		}
		timeFilter = selectors.YearFilter(year)
	}
	startIndex := 0
	keepPaging := opts.KeepPaging
	if opts.StartIndex != nil {
		startIndex = *opts.StartIndex
		keepPaging = false
	}
	span.SetAttributes(
		attribute.String("time_filter", timeFilter),
		attribute.Int("start_index", startIndex),
	)

	orders := []entity.Order{}
	index := startIndex
	next := constants.OrderHistoryURL(timeFilter, startIndex)
	for pageCount := 0; next != ""; pageCount++ {
		if opts.MaxPages > 0 && pageCount >= opts.MaxPages {
			h.tel.ReportDebug("stopped at max pages", opts.MaxPages)
			break
		}

		resume := errs.Resume{
			Year:        opts.Year,
			StartIndex:  index,
			TimeFilter:  timeFilter,
			NextPageURL: next,
		}
		pageOrders, nextUrl, err := h.listingPage(ctx, next, index, opts)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch order history page")
			var unparseable errs.UnparseablePageError
			if errors.As(err, &unparseable) {
				unparseable.Resume = &resume
				return orders, unparseable
			}
			return orders, errs.ResumableError{Resume: resume, Err: err}
		}

		orders = append(orders, pageOrders...)
		index += len(pageOrders)
		h.tel.ReportDebug("order history page", next, len(pageOrders))

		if !keepPaging {
			break
		}
		next = nextUrl
	}

	h.tel.ReportCount(report_history_orders, int64(len(orders)))
	return orders, nil
}

// listingPage parses one page of the order history, returning the url of the next page or ""
// when this is the last one.
func (h History) listingPage(ctx context.Context, target string, index int, opts Options) ([]entity.Order, string, error) {
	page, err := h.get(ctx, target, opts.Reauth)
	if err != nil {
		return nil, "", err
	}

	sel := h.session.Selectors()
	c := h.session.EntityContext()

	container := extract.First(page.Doc.Selection, sel.OrderHistoryContainer)
	if container.Length() == 0 {
		h.tel.ReportBroken(report_history_page, fmt.Errorf("no order history container on %s", page.URL))
		return nil, "", errs.UnparseablePageError{
			Message: "order history container not found",
			URL:     page.URL.String(),
		}
	}

	var orders []entity.Order
	for _, card := range extract.All(container.First(), sel.OrderHistoryEntity) {
		order, err := entity.ParseOrder(c, card, false)
		if err != nil {
			return nil, "", errs.UnparseablePageError{
				Message: fmt.Sprintf("order card %d", index),
				URL:     page.URL.String(),
				Err:     err,
			}
		}
		position := index
		order.Index = &position
		index++

		if opts.FullDetails {
			details, err := h.details(ctx, order.OrderDetailsLink, opts.Reauth)
			if err != nil {
				return nil, "", err
			}
			order = entity.MergeOrder(order, details)
		}
		orders = append(orders, order)
	}

	next := extract.Text(page.Doc.Selection, extract.Field{
		Query:  sel.NextPageLink,
		Attr:   "href",
		Base:   page.URL.String(),
		Entity: "OrderHistory",
		Name:   "next_page",
	})
	return orders, next.Value, nil
}

// details fetches (or reads from the cache) the details page at target and parses it.
func (h History) details(ctx context.Context, target string, reauth bool) (entity.Order, error) {
	page, cached, err := h.detailsPage(ctx, target, reauth)
	if err != nil {
		return entity.Order{}, err
	}

	root := extract.First(page.Doc.Selection, h.session.Selectors().OrderDetailsEntity)
	if root.Length() == 0 {
		h.tel.ReportBroken(report_history_details, fmt.Errorf("no order details container on %s", page.URL))
		if cached {
			_ = h.cache.Delete(ctx, target)
		}
		return entity.Order{}, errs.UnparseablePageError{
			Message: "order details container not found",
			URL:     page.URL.String(),
		}
	}

	order, err := entity.ParseOrder(h.session.EntityContext(), root.First(), true)
	if err != nil {
		return entity.Order{}, errs.UnparseablePageError{
			Message: "order details",
			URL:     page.URL.String(),
			Err:     err,
		}
	}
	if !cached && h.cache != nil {
		err = h.cache.Set(ctx, target, page)
		if err != nil {
			h.tel.ReportWarning(report_history_details, "cache write", err)
		}
	}
	return order, nil
}

func (h History) detailsPage(ctx context.Context, target string, reauth bool) (*session.Page, bool, error) {
	if h.cache != nil {
		page, err := h.cache.Get(ctx, target)
		if err == nil {
			h.tel.ReportDebug("order details from cache", target)
			return page, true, nil
		}
		if !errors.Is(err, ErrNotCached) {
			h.tel.ReportWarning(report_history_details, "cache read", err)
		}
	}
	page, err := h.get(ctx, target, reauth)
	if err != nil {
		return nil, false, err
	}
	return page, false, nil
}

// GetOrder fetches a single order by its order number. The order has no Index since it was not
// found through the listing.
func (h History) GetOrder(ctx context.Context, orderNumber string) (entity.Order, error) {
	if !selectors.OrderNumberRegex.MatchString(orderNumber) {
		return entity.Order{}, errs.Configf("%q is not an order number", orderNumber)
	}
	if !h.session.IsAuthenticated() {
		return entity.Order{}, errs.ErrNotAuthenticated
	}

	ctx, span := tracer.Start(ctx, "GetOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order_number", orderNumber))

	order, err := h.details(ctx, h.session.Constants().OrderDetailsURL(orderNumber), false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch order")
		return entity.Order{}, err
	}
	order.Index = nil
	if order.OrderNumber != orderNumber {
		h.tel.ReportWarning(report_history_details, "order number mismatch", orderNumber, order.OrderNumber)
	}
	return order, nil
}

// pageFromCache rebuilds a parsed page out of a cached body.
func pageFromCache(entry cachedPage) (*session.Page, error) {
	location, err := url.Parse(entry.URL)
	if err != nil {
		return nil, err
	}
	doc, err := htmlutil.ParseDocument(entry.Body, location)
	if err != nil {
		return nil, err
	}
	return &session.Page{
		URL:    location,
		Status: entry.Status,
		Body:   entry.Body,
		Doc:    doc,
	}, nil
}

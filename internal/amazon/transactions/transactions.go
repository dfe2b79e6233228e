package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"amazon-orders/internal/amazon/entity"
	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/extract"
	"amazon-orders/internal/amazon/selectors"
	"amazon-orders/internal/amazon/session"
	"amazon-orders/internal/components/assert"
	"amazon-orders/internal/components/chrono"
	"amazon-orders/internal/components/telemetry"
	"amazon-orders/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("amazon-orders/transactions")

const (
	report_transactions_page  = "transactions.page"
	report_transactions_group = "transactions.group"
	report_transactions_count = "transactions.count"
)

const DefaultDays = 365

const (
	fieldWidgetState = "ppw-widgetState"
	fieldIE          = "ie"
)

type Session interface {
	IsAuthenticated() bool
	Get(ctx context.Context, target string) (*session.Page, error)
	Post(ctx context.Context, target string, form map[string]string) (*session.Page, error)
	EntityContext() entity.Context
	Constants() selectors.Constants
	Selectors() selectors.Selectors
}

type Options struct {
	// Days is how far back from today transactions are kept, DefaultDays when 0.
	Days int
	// NextPageData continues a listing from a previous Result.NextPageData.
	NextPageData map[string]string
	KeepPaging   bool
}

type Result struct {
	Transactions []entity.Transaction
	// NextPageData is the form state that fetches the next page, nil when there is none or
	// the cutoff was reached.
	NextPageData map[string]string
}

type Client struct {
	session Session
	tel     telemetry.API
	time    chrono.TimeAPI
}

func NewClient(s Session, tel telemetry.API, time chrono.TimeAPI) Client {
	assert.NotNil(s)
	assert.NotNil(tel)
	assert.NotNil(time)
	return Client{
		session: s,
		tel:     telemetry.NewScopedAPI("transactions", tel),
		time:    time,
	}
}

// parsedPage is the outcome of reading a single page of the ledger.
type parsedPage struct {
	transactions []entity.Transaction
	next         map[string]string
	// halted is set once a transaction older than the cutoff was seen
	halted bool
}

// GetTransactions lists the payments ledger newest first, stopping at the first transaction
// older than the cutoff.
func (c Client) GetTransactions(ctx context.Context, opts Options) (Result, error) {
	days := opts.Days
	if days == 0 {
		days = DefaultDays
	}
	if days < 0 {
		return Result{}, errs.Configf("days %d must be positive", days)
	}
	if !c.session.IsAuthenticated() {
		return Result{}, errs.ErrNotAuthenticated
	}

	ctx, span := tracer.Start(ctx, "GetTransactions")
	defer span.End()

	// group dates are parsed as UTC calendar days, so the cutoff is one too
	now := c.time.Now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
	span.SetAttributes(attribute.String("cutoff", cutoff.Format(time.DateOnly)))

	result := Result{Transactions: []entity.Transaction{}}
	current := opts.NextPageData
	for {
		page, err := c.fetch(ctx, current)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch transactions page")
			return result, errs.ResumableError{Resume: errs.Resume{Continuation: current}, Err: err}
		}

		parsed, err := c.parsePage(page, cutoff)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse transactions page")
			var unparseable errs.UnparseablePageError
			if errors.As(err, &unparseable) {
				unparseable.Resume = &errs.Resume{Continuation: current}
				return result, unparseable
			}
			return result, err
		}
		result.Transactions = append(result.Transactions, parsed.transactions...)
		c.tel.ReportDebug("transactions page", len(parsed.transactions), parsed.halted)

		if parsed.halted {
			result.NextPageData = nil
			break
		}
		result.NextPageData = parsed.next
		if !opts.KeepPaging || parsed.next == nil {
			break
		}
		current = parsed.next
	}

	c.tel.ReportCount(report_transactions_count, int64(len(result.Transactions)))
	return result, nil
}

func (c Client) fetch(ctx context.Context, data map[string]string) (*session.Page, error) {
	target := c.session.Constants().TransactionsURL()
	if data == nil {
		return c.session.Get(ctx, target)
	}
	return c.session.Post(ctx, target, data)
}

func (c Client) parsePage(page *session.Page, cutoff time.Time) (parsedPage, error) {
	sel := c.session.Selectors()
	doc := page.Doc.Selection

	if extract.Matches(doc, sel.NoTransactions) {
		return parsedPage{}, nil
	}

	form := extract.First(doc, sel.TransactionForm)
	if form.Length() == 0 {
		c.tel.ReportBroken(report_transactions_page, fmt.Errorf("no transactions form on %s", page.URL))
		return parsedPage{}, errs.UnparseablePageError{
			Message: "transactions form not found",
			URL:     page.URL.String(),
		}
	}
	form = form.First()

	out, err := c.parseForm(form, cutoff)
	if err != nil {
		return parsedPage{}, errs.UnparseablePageError{URL: page.URL.String(), Err: err}
	}
	return out, nil
}

// parseForm reads every date group of the form. Line items only carry their group's date, a
// group whose date is missing or unreadable is skipped.
func (c Client) parseForm(form *goquery.Selection, cutoff time.Time) (parsedPage, error) {
	sel := c.session.Selectors()
	constants := c.session.Constants()
	ec := c.session.EntityContext()

	var out parsedPage
	for _, items := range extract.All(form, sel.TransactionItemsContainer) {
		date, ok := groupDate(items, sel.TransactionDateContainer, constants)
		if !ok {
			skipped := len(extract.All(items, sel.TransactionLineItem))
			c.tel.ReportWarning(report_transactions_group, "line items without a date were skipped", skipped)
			continue
		}

		for _, item := range extract.All(items, sel.TransactionLineItem) {
			tx, err := entity.ParseTransaction(ec, item, date)
			if err != nil {
				return parsedPage{}, err
			}
			if tx.CompletedDate.Before(cutoff) {
				out.halted = true
				return out, nil
			}
			out.transactions = append(out.transactions, tx)
		}
	}

	out.next = nextPageData(form, sel)
	return out, nil
}

// groupDate reads the date container directly preceding a line items container.
func groupDate(items *goquery.Selection, dateQuery selectors.Query, constants selectors.Constants) (time.Time, bool) {
	for _, candidate := range dateQuery {
		container := items.PrevFiltered(candidate)
		if container.Length() == 0 {
			continue
		}
		date, err := extract.ToDate(htmlutil.Text(container), constants.DateLayouts, constants.MonthNames)
		if err != nil {
			return time.Time{}, false
		}
		return date, true
	}
	return time.Time{}, false
}

// nextPageData is the form state that requests the next page, it is nil unless the widget state,
// the encoding and the next page event are all present.
func nextPageData(form *goquery.Selection, sel selectors.Selectors) map[string]string {
	widgetState, ok := extract.First(form, sel.TransactionWidgetState).Attr("value")
	if !ok || widgetState == "" {
		return nil
	}
	ie, ok := extract.First(form, sel.TransactionIE).Attr("value")
	if !ok || ie == "" {
		return nil
	}
	event := extract.First(form, sel.TransactionNextPageEvent)
	eventName, ok := event.Attr("name")
	if !ok || eventName == "" {
		return nil
	}
	return map[string]string{
		fieldWidgetState: widgetState,
		fieldIE:          ie,
		eventName:        event.AttrOr("value", ""),
	}
}

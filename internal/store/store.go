package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"amazon-orders/internal/amazon/entity"
	"amazon-orders/internal/components/chrono"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

const (
	RunOrders       = "orders"
	RunTransactions = "transactions"
)

// Store keeps exported orders and transactions, rows are keyed so that exporting the same
// order twice updates it in place.
type Store struct {
	db   *sql.DB
	time chrono.TimeAPI
}

func isRemote(dsn string) bool {
	for _, prefix := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

func openSqlite(path string) (*sql.DB, error) {
	err := os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite only allows a single writer at a time
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Open connects to a local sqlite file or, for libsql:// and http(s):// urls, a remote
// libsql database and creates the tables when they are missing.
func Open(ctx context.Context, dsn string, time chrono.TimeAPI) (Store, error) {
	if dsn == "" {
		return Store{}, fmt.Errorf("a database was not specified")
	}

	var db *sql.DB
	var err error
	if isRemote(dsn) {
		db, err = sql.Open("libsql", dsn)
	} else {
		db, err = openSqlite(dsn)
	}
	if err != nil {
		return Store{}, fmt.Errorf("open %s: %w", dsn, err)
	}

	_, err = db.ExecContext(ctx, Schema)
	if err != nil {
		db.Close()
		return Store{}, fmt.Errorf("create schema: %w", err)
	}
	return Store{db: db, time: time}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

func (s Store) DB() *sql.DB {
	return s.db
}

func date(t time.Time) string {
	return t.Format(time.DateOnly)
}

func optionalDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: date(*t), Valid: true}
}

func optionalFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func optionalInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func optionalString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s Store) beginRun(ctx context.Context, tx *sql.Tx, kind string) (string, error) {
	id := uuid.NewString()
	_, err := tx.ExecContext(
		ctx,
		"insert into runs (id, kind, started_at) values (?, ?, ?)",
		id, kind, s.time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

const upsertOrder = `insert into orders (
	order_number, run_id, order_placed_date, grand_total, order_details_link, kind,
	full_details, recipient_name, payment_method, subtotal, shipping_total, estimated_tax,
	refund_total, shipped_date
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (order_number) do update set
	run_id = excluded.run_id,
	order_placed_date = excluded.order_placed_date,
	grand_total = excluded.grand_total,
	order_details_link = excluded.order_details_link,
	kind = excluded.kind,
	full_details = excluded.full_details,
	recipient_name = excluded.recipient_name,
	payment_method = excluded.payment_method,
	subtotal = excluded.subtotal,
	shipping_total = excluded.shipping_total,
	estimated_tax = excluded.estimated_tax,
	refund_total = excluded.refund_total,
	shipped_date = excluded.shipped_date`

// SaveOrders records a run and upserts every order with its items, it returns the run id.
func (s Store) SaveOrders(ctx context.Context, orders []entity.Order) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	runId, err := s.beginRun(ctx, tx, RunOrders)
	if err != nil {
		return "", err
	}

	for _, o := range orders {
		var recipient string
		if o.Recipient != nil {
			recipient = o.Recipient.Name
		}
		_, err = tx.ExecContext(
			ctx, upsertOrder,
			o.OrderNumber, runId, date(o.OrderPlacedDate), optionalFloat(o.GrandTotal),
			o.OrderDetailsLink, string(o.Kind), o.FullDetails, optionalString(recipient),
			optionalString(o.PaymentMethod), optionalFloat(o.Subtotal), optionalFloat(o.ShippingTotal),
			optionalFloat(o.EstimatedTax), optionalFloat(o.RefundTotal), optionalDate(o.ShippedDate),
		)
		if err != nil {
			return "", fmt.Errorf("save order %s: %w", o.OrderNumber, err)
		}

		_, err = tx.ExecContext(ctx, "delete from items where order_number = ?", o.OrderNumber)
		if err != nil {
			return "", err
		}
		for i, item := range o.Items {
			var seller string
			if item.Seller != nil {
				seller = item.Seller.Name
			}
			_, err = tx.ExecContext(
				ctx,
				"insert into items (order_number, position, title, link, price, seller, quantity) values (?, ?, ?, ?, ?, ?, ?)",
				o.OrderNumber, i, item.Title, optionalString(item.Link), optionalFloat(item.Price),
				optionalString(seller), optionalInt(item.Quantity),
			)
			if err != nil {
				return "", fmt.Errorf("save item %d of order %s: %w", i, o.OrderNumber, err)
			}
		}
	}

	return runId, tx.Commit()
}

const upsertTransaction = `insert into transactions (
	completed_date, payment_method, grand_total, order_number, run_id, is_refund, seller
) values (?, ?, ?, ?, ?, ?, ?)
on conflict (completed_date, payment_method, grand_total, order_number) do update set
	run_id = excluded.run_id,
	is_refund = excluded.is_refund,
	seller = excluded.seller`

// SaveTransactions records a run and upserts every transaction, it returns the run id.
func (s Store) SaveTransactions(ctx context.Context, transactions []entity.Transaction) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	runId, err := s.beginRun(ctx, tx, RunTransactions)
	if err != nil {
		return "", err
	}
	for _, t := range transactions {
		_, err = tx.ExecContext(
			ctx, upsertTransaction,
			date(t.CompletedDate), t.PaymentMethod, t.GrandTotal, t.OrderNumber,
			runId, t.IsRefund, optionalString(t.Seller),
		)
		if err != nil {
			return "", fmt.Errorf("save transaction of %s: %w", date(t.CompletedDate), err)
		}
	}
	return runId, tx.Commit()
}

type OrderRow struct {
	OrderNumber     string
	RunId           string
	OrderPlacedDate string
	GrandTotal      *float64
	FullDetails     bool
	ItemCount       int
}

// Orders lists the saved orders, most recently placed first.
func (s Store) Orders(ctx context.Context) ([]OrderRow, error) {
	rows, err := s.db.QueryContext(ctx, `select
		o.order_number, o.run_id, o.order_placed_date, o.grand_total, o.full_details,
		(select count(*) from items i where i.order_number = o.order_number)
	from orders o
	order by o.order_placed_date desc, o.order_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		var row OrderRow
		var total sql.NullFloat64
		err = rows.Scan(&row.OrderNumber, &row.RunId, &row.OrderPlacedDate, &total, &row.FullDetails, &row.ItemCount)
		if err != nil {
			return nil, err
		}
		if total.Valid {
			row.GrandTotal = &total.Float64
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountTransactions is the number of distinct transactions saved.
func (s Store) CountTransactions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "select count(*) from transactions").Scan(&count)
	return count, err
}

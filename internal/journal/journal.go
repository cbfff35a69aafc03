// Package journal persists settlement events to SQLite for external indexing.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"

	"github.com/nftmart/gomart/internal/events"
	"github.com/nftmart/gomart/pkg/logger"
)

// Journal is an append-only SQLite event log. It implements events.Sink.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database and applies the schema.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		// seq 是单调的写入序号：RFC3339Nano 文本会裁掉末尾的零，
		// 同一秒内按 at 排序可能偏离时间顺序，查询一律按 seq 排
		`
CREATE TABLE IF NOT EXISTS events (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL,
  listing_id INTEGER NOT NULL,
  actor TEXT NOT NULL,
  currency TEXT,
  quantity INTEGER,
  unit_price TEXT,
  total TEXT,
  fee TEXT,
  royalty TEXT,
  payout TEXT,
  display_total TEXT,
  at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_events_listing ON events(listing_id, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal: migrate: %w", err)
		}
	}
	return nil
}

func bigStr(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

// Publish implements events.Sink. Journal failures are logged, never
// propagated: the settlement itself has already committed.
func (j *Journal) Publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := j.db.ExecContext(ctx, `
INSERT INTO events (id, type, listing_id, actor, currency, quantity, unit_price, total, fee, royalty, payout, display_total, at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
`,
		e.ID, string(e.Type), int64(e.ListingID), e.Actor.Hex(), e.Currency.Hex(), int64(e.Quantity),
		bigStr(e.UnitPrice), bigStr(e.Total), bigStr(e.Fee), bigStr(e.Royalty), bigStr(e.Payout),
		e.DisplayTotal, e.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		logger.Errorf("journal insert failed: %v", err)
	}
}

func scanEvents(rows *sql.Rows) ([]events.Event, error) {
	var out []events.Event
	for rows.Next() {
		var (
			e          events.Event
			typ        string
			listingID  int64
			actor      string
			currency   sql.NullString
			quantity   sql.NullInt64
			unitPrice  sql.NullString
			total      sql.NullString
			fee        sql.NullString
			royalty    sql.NullString
			payout     sql.NullString
			display    sql.NullString
			atStr      string
		)
		if err := rows.Scan(&e.ID, &typ, &listingID, &actor, &currency, &quantity,
			&unitPrice, &total, &fee, &royalty, &payout, &display, &atStr); err != nil {
			return nil, err
		}
		e.Type = events.Type(typ)
		e.ListingID = uint64(listingID)
		e.Actor = common.HexToAddress(actor)
		if currency.Valid {
			e.Currency = common.HexToAddress(currency.String)
		}
		if quantity.Valid {
			e.Quantity = uint64(quantity.Int64)
		}
		parse := func(ns sql.NullString) *big.Int {
			if !ns.Valid || ns.String == "" {
				return nil
			}
			v, ok := new(big.Int).SetString(ns.String, 10)
			if !ok {
				return nil
			}
			return v
		}
		e.UnitPrice = parse(unitPrice)
		e.Total = parse(total)
		e.Fee = parse(fee)
		e.Royalty = parse(royalty)
		e.Payout = parse(payout)
		if display.Valid {
			e.DisplayTotal = display.String
		}
		if t, err := time.Parse(time.RFC3339Nano, atStr); err == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Recent returns the latest events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]events.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, type, listing_id, actor, currency, quantity, unit_price, total, fee, royalty, payout, display_total, at
FROM events
ORDER BY seq DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ByListing returns a listing's events in chronological order.
func (j *Journal) ByListing(ctx context.Context, listingID uint64, limit int) ([]events.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, type, listing_id, actor, currency, quantity, unit_price, total, fee, royalty, payout, display_total, at
FROM events
WHERE listing_id = ?
ORDER BY seq ASC
LIMIT ?
`, int64(listingID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

var _ events.Sink = (*Journal)(nil)

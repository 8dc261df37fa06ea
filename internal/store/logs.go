package store

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/bondbackoffice/eventproc/internal/domain"
)

// AppendTradeLog writes one accepted trade's full snapshot to event_log.
func (t *Tx) AppendTradeLog(row domain.TradeLogRow) error {
	_, err := t.tx.Exec(`
		INSERT INTO event_log
			(event_id, desk_id, trader_id, book_id, bond_id, buy_sell, quantity, position, price, fx_rate, value, desk_cash_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.EventID, row.DeskID, row.TraderID, row.BookID, row.BondID, row.BuySell.String(),
		row.Quantity.String(), row.Position.String(), row.Price.String(), row.FXRate.String(),
		row.Value.String(), row.DeskCashAfter.String())
	return err
}

// AppendFXLog writes one FX rate update to fx_event_log.
func (t *Tx) AppendFXLog(row domain.FXLogRow) error {
	_, err := t.tx.Exec(`INSERT INTO fx_event_log (event_id, currency_id, rate) VALUES (?, ?, ?)`,
		row.EventID, row.CurrencyID, row.Rate.String())
	return err
}

// AppendPriceLog writes one bond price update to price_event_log.
func (t *Tx) AppendPriceLog(row domain.PriceLogRow) error {
	_, err := t.tx.Exec(`INSERT INTO price_event_log (event_id, bond_id, price) VALUES (?, ?, ?)`,
		row.EventID, row.BondID, row.Price.String())
	return err
}

// AppendException writes one rejected trade to event_exception_log.
func (t *Tx) AppendException(row domain.ExceptionLogRow) error {
	var price sql.NullString
	if row.Price.Valid {
		price = sql.NullString{String: row.Price.Decimal.String(), Valid: true}
	}
	_, err := t.tx.Exec(`
		INSERT INTO event_exception_log
			(event_id, desk_id, trader_id, book_id, bond_id, buy_sell, quantity, price, exclusion_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.EventID, row.DeskID, row.TraderID, row.BookID, row.BondID, row.BuySell.String(),
		row.Quantity.String(), price, string(row.ExclusionType))
	return err
}

// LastReleased returns the maximum event_id across all four log tables,
// or 0 if every log is empty — the boundary past which the sequencer has
// not yet released anything.
func (s *Store) LastReleased(ctx context.Context) (int64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(id) FROM (
			SELECT MAX(event_id) AS id FROM event_log
			UNION ALL SELECT MAX(event_id) FROM fx_event_log
			UNION ALL SELECT MAX(event_id) FROM price_event_log
			UNION ALL SELECT MAX(event_id) FROM event_exception_log
		)`).Scan(&nullableInt64{&max})
	return max, err
}

// nullableInt64 scans a SQL NULL (e.g. MAX() over an empty set) as 0.
type nullableInt64 struct {
	dst *int64
}

func (n *nullableInt64) Scan(src interface{}) error {
	if src == nil {
		*n.dst = 0
		return nil
	}
	switch v := src.(type) {
	case int64:
		*n.dst = v
	default:
		*n.dst = 0
	}
	return nil
}

// TradeLogAscending returns event_log rows with fromExclusive < event_id
// <= toInclusive, ordered ascending — the report engine's forward
// replay.
func (s *Store) TradeLogAscending(ctx context.Context, fromExclusive, toInclusive int64) ([]domain.TradeLogRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, desk_id, trader_id, book_id, bond_id, buy_sell, quantity, position, price, fx_rate, value, desk_cash_after
		FROM event_log WHERE event_id > ? AND event_id <= ? ORDER BY event_id ASC`, fromExclusive, toInclusive)
	if err != nil {
		return nil, err
	}
	return scanTradeLogRows(rows)
}

// TradeLogDescending returns event_log rows with toExclusive < event_id
// <= fromInclusive, ordered descending — the report engine's backtrack
// replay.
func (s *Store) TradeLogDescending(ctx context.Context, toExclusive, fromInclusive int64) ([]domain.TradeLogRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, desk_id, trader_id, book_id, bond_id, buy_sell, quantity, position, price, fx_rate, value, desk_cash_after
		FROM event_log WHERE event_id > ? AND event_id <= ? ORDER BY event_id DESC`, toExclusive, fromInclusive)
	if err != nil {
		return nil, err
	}
	return scanTradeLogRows(rows)
}

func scanTradeLogRows(rows *sql.Rows) ([]domain.TradeLogRow, error) {
	defer rows.Close()
	var out []domain.TradeLogRow
	for rows.Next() {
		var r domain.TradeLogRow
		var buySell, qty, pos, price, fxRate, value, cashAfter string
		if err := rows.Scan(&r.EventID, &r.DeskID, &r.TraderID, &r.BookID, &r.BondID, &buySell,
			&qty, &pos, &price, &fxRate, &value, &cashAfter); err != nil {
			return nil, err
		}
		side, err := domain.ParseSide(buySell)
		if err != nil {
			return nil, err
		}
		r.BuySell = side
		if r.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if r.Position, err = decimal.NewFromString(pos); err != nil {
			return nil, err
		}
		if r.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if r.FXRate, err = decimal.NewFromString(fxRate); err != nil {
			return nil, err
		}
		if r.Value, err = decimal.NewFromString(value); err != nil {
			return nil, err
		}
		if r.DeskCashAfter, err = decimal.NewFromString(cashAfter); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestFXAsOf returns the rate from the latest fx_event_log row with
// event_id <= asOf, or (zero, false) if none exists — the report engine
// then falls back to fx.initial.
func (s *Store) LatestFXAsOf(ctx context.Context, ccy string, asOf int64) (decimal.Decimal, bool, error) {
	var rate string
	err := s.db.QueryRowContext(ctx, `
		SELECT rate FROM fx_event_log WHERE currency_id = ? AND event_id <= ?
		ORDER BY event_id DESC LIMIT 1`, ccy, asOf).Scan(&rate)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(rate)
	return d, true, err
}

// LatestPriceAsOf returns the price from the latest price_event_log row
// with event_id <= asOf, or (zero, false) if none exists — the report
// engine then falls back to bond.initial_price (which may itself be
// null).
func (s *Store) LatestPriceAsOf(ctx context.Context, bondID string, asOf int64) (decimal.Decimal, bool, error) {
	var price string
	err := s.db.QueryRowContext(ctx, `
		SELECT price FROM price_event_log WHERE bond_id = ? AND event_id <= ?
		ORDER BY event_id DESC LIMIT 1`, bondID, asOf).Scan(&price)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(price)
	return d, true, err
}

// ExceptionsUpTo returns every event_exception_log row with
// event_id <= t, ascending.
func (s *Store) ExceptionsUpTo(ctx context.Context, t int64) ([]domain.ExceptionLogRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, desk_id, trader_id, book_id, bond_id, buy_sell, quantity, price, exclusion_type
		FROM event_exception_log WHERE event_id <= ? ORDER BY event_id ASC`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ExceptionLogRow
	for rows.Next() {
		var r domain.ExceptionLogRow
		var buySell, qty string
		var price sql.NullString
		var excl string
		if err := rows.Scan(&r.EventID, &r.DeskID, &r.TraderID, &r.BookID, &r.BondID, &buySell, &qty, &price, &excl); err != nil {
			return nil, err
		}
		side, err := domain.ParseSide(buySell)
		if err != nil {
			return nil, err
		}
		r.BuySell = side
		if r.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if price.Valid {
			d, err := decimal.NewFromString(price.String)
			if err != nil {
				return nil, err
			}
			r.Price = decimal.NullDecimal{Decimal: d, Valid: true}
		}
		r.ExclusionType = domain.ExclusionType(excl)
		out = append(out, r)
	}
	return out, rows.Err()
}

package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bondbackoffice/eventproc/internal/domain"
)

// AllFX returns every currency's live rate — the current reference-store
// snapshot the report engine initializes its cache from, and the live-
// dashboard's /api/fx projection.
func (s *Store) AllFX(ctx context.Context) ([]domain.FX, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT currency_id, rate, initial FROM fx ORDER BY currency_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.FX
	for rows.Next() {
		var fx domain.FX
		var rate, initial string
		if err := rows.Scan(&fx.CurrencyID, &rate, &initial); err != nil {
			return nil, err
		}
		if fx.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		if fx.Initial, err = decimal.NewFromString(initial); err != nil {
			return nil, err
		}
		out = append(out, fx)
	}
	return out, rows.Err()
}

// AllBonds returns every bond's currency and live/initial price.
func (s *Store) AllBonds(ctx context.Context) ([]domain.Bond, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bond_id, currency_id, price, initial_price FROM bond ORDER BY bond_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Bond
	for rows.Next() {
		var b domain.Bond
		var price, initial *string
		if err := rows.Scan(&b.BondID, &b.CurrencyID, &price, &initial); err != nil {
			return nil, err
		}
		if price != nil {
			d, err := decimal.NewFromString(*price)
			if err != nil {
				return nil, err
			}
			b.Price = decimal.NullDecimal{Decimal: d, Valid: true}
		}
		if initial != nil {
			d, err := decimal.NewFromString(*initial)
			if err != nil {
				return nil, err
			}
			b.InitialPrice = decimal.NullDecimal{Decimal: d, Valid: true}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AllDesks returns every desk's cash balance.
func (s *Store) AllDesks(ctx context.Context) ([]domain.Desk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT desk_id, cash FROM desk ORDER BY desk_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Desk
	for rows.Next() {
		var d domain.Desk
		var cash string
		if err := rows.Scan(&d.DeskID, &cash); err != nil {
			return nil, err
		}
		if d.Cash, err = decimal.NewFromString(cash); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AllTraders returns every trader and its owning desk.
func (s *Store) AllTraders(ctx context.Context) ([]domain.Trader, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT trader_id, desk_id FROM trader ORDER BY trader_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Trader
	for rows.Next() {
		var tr domain.Trader
		if err := rows.Scan(&tr.TraderID, &tr.DeskID); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// AllBooks returns every book and its owning trader.
func (s *Store) AllBooks(ctx context.Context) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT book_id, trader_id FROM book ORDER BY book_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.BookID, &b.TraderID); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AllBondRecords returns every (trader, book, bond) position triple,
// including zero positions.
func (s *Store) AllBondRecords(ctx context.Context) ([]domain.BondRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT trader_id, book_id, bond_id, position FROM bond_record ORDER BY trader_id, book_id, bond_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.BondRecord
	for rows.Next() {
		var r domain.BondRecord
		var pos string
		if err := rows.Scan(&r.TraderID, &r.BookID, &r.BondID, &pos); err != nil {
			return nil, err
		}
		if r.Position, err = decimal.NewFromString(pos); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

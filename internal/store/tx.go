package store

import (
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/bondbackoffice/eventproc/internal/domain"
)

// ErrNotFound is returned by lookups with no get-or-create fallback.
var ErrNotFound = errors.New("not found")

// GetFX reads a currency's live rate. ErrNotFound if the currency is
// unseeded — a fatal data error upstream.
func (t *Tx) GetFX(ccy string) (domain.FX, error) {
	var fx domain.FX
	fx.CurrencyID = ccy
	var rate, initial string
	err := t.tx.QueryRow(`SELECT rate, initial FROM fx WHERE currency_id = ?`, ccy).Scan(&rate, &initial)
	if errors.Is(err, sql.ErrNoRows) {
		return fx, ErrNotFound
	}
	if err != nil {
		return fx, err
	}
	fx.Rate, err = decimal.NewFromString(rate)
	if err != nil {
		return fx, err
	}
	fx.Initial, err = decimal.NewFromString(initial)
	return fx, err
}

// UpdateFXRate sets a currency's live rate.
func (t *Tx) UpdateFXRate(ccy string, rate decimal.Decimal) error {
	res, err := t.tx.Exec(`UPDATE fx SET rate = ? WHERE currency_id = ?`, rate.String(), ccy)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedFX inserts a currency's initial rate at startup. Idempotent: a
// currency already present is left untouched.
func (t *Tx) SeedFX(ccy string, rate decimal.Decimal) error {
	_, err := t.tx.Exec(`INSERT OR IGNORE INTO fx (currency_id, rate, initial) VALUES (?, ?, ?)`,
		ccy, rate.String(), rate.String())
	return err
}

// GetBond reads a bond's currency and live/initial price.
func (t *Tx) GetBond(bondID string) (domain.Bond, error) {
	var b domain.Bond
	b.BondID = bondID
	var price, initial sql.NullString
	err := t.tx.QueryRow(`SELECT currency_id, price, initial_price FROM bond WHERE bond_id = ?`, bondID).
		Scan(&b.CurrencyID, &price, &initial)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	if price.Valid {
		d, err := decimal.NewFromString(price.String)
		if err != nil {
			return b, err
		}
		b.Price = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	if initial.Valid {
		d, err := decimal.NewFromString(initial.String)
		if err != nil {
			return b, err
		}
		b.InitialPrice = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return b, nil
}

// SetBondPrice sets a bond's live price, and — only the first time a
// price is ever set for this bond — its immutable initial_price too.
func (t *Tx) SetBondPrice(bondID string, price decimal.Decimal) error {
	b, err := t.GetBond(bondID)
	if err != nil {
		return err
	}
	if !b.InitialPrice.Valid {
		_, err := t.tx.Exec(`UPDATE bond SET price = ?, initial_price = ? WHERE bond_id = ?`,
			price.String(), price.String(), bondID)
		return err
	}
	_, err = t.tx.Exec(`UPDATE bond SET price = ? WHERE bond_id = ?`, price.String(), bondID)
	return err
}

// SeedBond inserts a bond's currency mapping at startup with no price
// known yet.
func (t *Tx) SeedBond(bondID, currencyID string) error {
	_, err := t.tx.Exec(`INSERT OR IGNORE INTO bond (bond_id, currency_id, price, initial_price) VALUES (?, ?, NULL, NULL)`,
		bondID, currencyID)
	return err
}

// GetDesk reads a desk's cash balance.
func (t *Tx) GetDesk(deskID string) (domain.Desk, error) {
	var d domain.Desk
	d.DeskID = deskID
	var cash string
	err := t.tx.QueryRow(`SELECT cash FROM desk WHERE desk_id = ?`, deskID).Scan(&cash)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.Cash, err = decimal.NewFromString(cash)
	return d, err
}

// SetDeskCash overwrites a desk's cash balance.
func (t *Tx) SetDeskCash(deskID string, cash decimal.Decimal) error {
	res, err := t.tx.Exec(`UPDATE desk SET cash = ? WHERE desk_id = ?`, cash.String(), deskID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedDesk inserts a desk's starting cash at startup.
func (t *Tx) SeedDesk(deskID string, cash decimal.Decimal) error {
	_, err := t.tx.Exec(`INSERT OR IGNORE INTO desk (desk_id, cash) VALUES (?, ?)`, deskID, cash.String())
	return err
}

// GetOrCreateTrader finds a trader, creating it under deskID on first
// sight. A trader already on record under a different desk is a data
// error, surfaced via ErrMismatch.
func (t *Tx) GetOrCreateTrader(traderID, deskID string) error {
	var existingDesk string
	err := t.tx.QueryRow(`SELECT desk_id FROM trader WHERE trader_id = ?`, traderID).Scan(&existingDesk)
	if errors.Is(err, sql.ErrNoRows) {
		_, err := t.tx.Exec(`INSERT INTO trader (trader_id, desk_id) VALUES (?, ?)`, traderID, deskID)
		return err
	}
	if err != nil {
		return err
	}
	if existingDesk != deskID {
		return ErrMismatch
	}
	return nil
}

// GetOrCreateBook finds a book, creating it under traderID on first
// sight. Mismatch discipline mirrors GetOrCreateTrader.
func (t *Tx) GetOrCreateBook(bookID, traderID string) error {
	var existingTrader string
	err := t.tx.QueryRow(`SELECT trader_id FROM book WHERE book_id = ?`, bookID).Scan(&existingTrader)
	if errors.Is(err, sql.ErrNoRows) {
		_, err := t.tx.Exec(`INSERT INTO book (book_id, trader_id) VALUES (?, ?)`, bookID, traderID)
		return err
	}
	if err != nil {
		return err
	}
	if existingTrader != traderID {
		return ErrMismatch
	}
	return nil
}

// ErrMismatch is raised when a trader/book is sighted under a different
// parent than the one already on record — a fatal data error.
var ErrMismatch = errors.New("parent mismatch")

// GetBondRecordPosition reads the position for a (trader, book, bond)
// triple. Returns (zero, false, nil) if the triple has no record yet.
func (t *Tx) GetBondRecordPosition(key domain.BondRecordKey) (decimal.Decimal, bool, error) {
	var pos string
	err := t.tx.QueryRow(`SELECT position FROM bond_record WHERE trader_id = ? AND book_id = ? AND bond_id = ?`,
		key.TraderID, key.BookID, key.BondID).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(pos)
	return d, true, err
}

// SetBondRecordPosition creates or overwrites the position for a
// (trader, book, bond) triple.
func (t *Tx) SetBondRecordPosition(key domain.BondRecordKey, position decimal.Decimal) error {
	_, err := t.tx.Exec(`
		INSERT INTO bond_record (trader_id, book_id, bond_id, position) VALUES (?, ?, ?, ?)
		ON CONFLICT (trader_id, book_id, bond_id) DO UPDATE SET position = excluded.position`,
		key.TraderID, key.BookID, key.BondID, position.String())
	return err
}

// Package report reconstructs the portfolio state as of a target event
// id by replaying or reversing logged trades over a cached working set,
// and emits five tabular reports from it.
package report

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/bondbackoffice/eventproc/internal/domain"
	"github.com/bondbackoffice/eventproc/internal/store"
)

// Kind selects which of the five tabular reports to produce.
type Kind string

const (
	CashLevelPortfolio     Kind = "cash_level_portfolio"
	PositionLevelPortfolio Kind = "position_level_portfolio"
	BondLevelPortfolio     Kind = "bond_level_portfolio"
	CurrencyLevelPortfolio Kind = "currency_level_portfolio"
	Exclusions             Kind = "exclusions"
)

// positionKey identifies a cached working-set position cell. Desk is
// not part of the key: bond_record carries only (trader, book, bond),
// and a trader's desk is fixed at creation, so it is resolved separately
// via traderDesk.
type positionKey struct {
	Trader, Book, Bond string
}

// bondCache is the working set's view of a bond: currency and price.
type bondCache struct {
	Currency string
	Price    decimal.NullDecimal
}

// Engine caches a working set pinned to a state id and moves it to
// arbitrary target event ids by replaying (advance) or reversing
// (backtrack) logged trades.
type Engine struct {
	store *store.Store

	// mu serializes state_id movement: report calls may arrive concurrently
	// from separate HTTP handlers sharing this engine, and a caller must
	// never observe a half-moved working set.
	mu sync.Mutex

	fx         map[string]decimal.Decimal
	bonds      map[string]bondCache
	desks      map[string]decimal.Decimal
	positions  map[positionKey]decimal.Decimal
	traderDesk map[string]string
	stateID    int64
	loaded     bool
}

// New creates a Report Engine over store s. The working set is empty
// until the first Generate call initializes it from the live reference
// store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// reset reinitializes the working set from the current reference store
// and pins it to lastReleased.
func (e *Engine) reset(ctx context.Context) error {
	fxRows, err := e.store.AllFX(ctx)
	if err != nil {
		return err
	}
	bondRows, err := e.store.AllBonds(ctx)
	if err != nil {
		return err
	}
	deskRows, err := e.store.AllDesks(ctx)
	if err != nil {
		return err
	}
	traderRows, err := e.store.AllTraders(ctx)
	if err != nil {
		return err
	}
	posRows, err := e.store.AllBondRecords(ctx)
	if err != nil {
		return err
	}
	lastReleased, err := e.store.LastReleased(ctx)
	if err != nil {
		return err
	}

	e.fx = make(map[string]decimal.Decimal, len(fxRows))
	for _, fx := range fxRows {
		e.fx[fx.CurrencyID] = fx.Rate
	}
	e.bonds = make(map[string]bondCache, len(bondRows))
	for _, b := range bondRows {
		e.bonds[b.BondID] = bondCache{Currency: b.CurrencyID, Price: b.Price}
	}
	e.desks = make(map[string]decimal.Decimal, len(deskRows))
	for _, d := range deskRows {
		e.desks[d.DeskID] = d.Cash
	}
	e.traderDesk = make(map[string]string, len(traderRows))
	for _, tr := range traderRows {
		e.traderDesk[tr.TraderID] = tr.DeskID
	}
	e.positions = make(map[positionKey]decimal.Decimal, len(posRows))
	for _, p := range posRows {
		e.positions[positionKey{p.TraderID, p.BookID, p.BondID}] = p.Position
	}
	e.stateID = lastReleased
	e.loaded = true
	return nil
}

// moveTo advances or backtracks the working set to event id t,
// invalidating and reloading first if the cache has gone stale relative
// to the live log — backtracking from a stale state id would misaccount.
func (e *Engine) moveTo(ctx context.Context, t int64) error {
	lastReleased, err := e.store.LastReleased(ctx)
	if err != nil {
		return err
	}
	if !e.loaded || e.stateID > lastReleased || e.stateID < 0 {
		if err := e.reset(ctx); err != nil {
			return err
		}
	}

	if e.stateID < t {
		rows, err := e.store.TradeLogAscending(ctx, e.stateID, t)
		if err != nil {
			return err
		}
		for _, row := range rows {
			e.applyForward(row)
		}
	} else if e.stateID > t {
		rows, err := e.store.TradeLogDescending(ctx, t, e.stateID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			e.applyReverse(row)
		}
	}

	if err := e.resyncMarketData(ctx, t); err != nil {
		return err
	}
	e.stateID = t
	return nil
}

func (e *Engine) ensureTraderDesk(traderID, deskID string) {
	if _, ok := e.traderDesk[traderID]; !ok {
		e.traderDesk[traderID] = deskID
	}
}

func (e *Engine) applyForward(row domain.TradeLogRow) {
	e.ensureTraderDesk(row.TraderID, row.DeskID)
	key := positionKey{row.TraderID, row.BookID, row.BondID}
	pos := e.positions[key] // zero value if absent
	cash := e.desks[row.DeskID]
	if row.BuySell == domain.Buy {
		e.desks[row.DeskID] = cash.Sub(row.Value)
		pos = pos.Add(row.Quantity)
	} else {
		e.desks[row.DeskID] = cash.Add(row.Value)
		pos = pos.Sub(row.Quantity)
	}
	e.positions[key] = pos
}

func (e *Engine) applyReverse(row domain.TradeLogRow) {
	e.ensureTraderDesk(row.TraderID, row.DeskID)
	key := positionKey{row.TraderID, row.BookID, row.BondID}
	pos := e.positions[key] // zero value if absent
	cash := e.desks[row.DeskID]
	if row.BuySell == domain.Buy {
		// Undo a debit and a position gain.
		e.desks[row.DeskID] = cash.Add(row.Value)
		pos = pos.Sub(row.Quantity)
	} else {
		// Undo a credit and a position loss.
		e.desks[row.DeskID] = cash.Sub(row.Value)
		pos = pos.Add(row.Quantity)
	}
	e.positions[key] = pos
}

// resyncMarketData resynchronizes fx rates and bond prices to their
// values as of t, independent of the trade replay direction. Trades
// replay with the values stored in their log rows; mark-to-market
// valuation uses these "as of t" snapshots.
func (e *Engine) resyncMarketData(ctx context.Context, t int64) error {
	fxRows, err := e.store.AllFX(ctx)
	if err != nil {
		return err
	}
	for _, fx := range fxRows {
		if rate, ok, err := e.store.LatestFXAsOf(ctx, fx.CurrencyID, t); err != nil {
			return err
		} else if ok {
			e.fx[fx.CurrencyID] = rate
		} else {
			e.fx[fx.CurrencyID] = fx.Initial
		}
	}
	bondRows, err := e.store.AllBonds(ctx)
	if err != nil {
		return err
	}
	for _, b := range bondRows {
		cache := e.bonds[b.BondID]
		if price, ok, err := e.store.LatestPriceAsOf(ctx, b.BondID, t); err != nil {
			return err
		} else if ok {
			cache.Price = decimal.NullDecimal{Decimal: price, Valid: true}
		} else {
			cache.Price = b.InitialPrice
		}
		cache.Currency = b.CurrencyID
		e.bonds[b.BondID] = cache
	}
	return nil
}

// --- Report rows ---

type CashRow struct {
	Desk string
	Cash decimal.Decimal
}

type PositionRow struct {
	Desk, Trader, Book string
	Position           decimal.Decimal
	Value              decimal.Decimal
}

type BondRow struct {
	Desk, Trader, Book, Bond string
	Position                 decimal.Decimal
	Value                    decimal.Decimal
}

type CurrencyRow struct {
	Desk, Currency string
	Position       decimal.Decimal
	Value          decimal.Decimal
}

// Generate moves the working set to t and returns the rows for kind.
func (e *Engine) Generate(ctx context.Context, t int64, kind Kind) (interface{}, error) {
	if kind == Exclusions {
		return e.store.ExceptionsUpTo(ctx, t)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.moveTo(ctx, t); err != nil {
		return nil, err
	}
	switch kind {
	case CashLevelPortfolio:
		return e.cashLevel(), nil
	case PositionLevelPortfolio:
		return e.positionLevel(), nil
	case BondLevelPortfolio:
		return e.bondLevel(), nil
	case CurrencyLevelPortfolio:
		return e.currencyLevel(), nil
	default:
		return nil, fmt.Errorf("unknown report kind %q", kind)
	}
}

func (e *Engine) cashLevel() []CashRow {
	rows := make([]CashRow, 0, len(e.desks))
	for desk, cash := range e.desks {
		rows = append(rows, CashRow{Desk: desk, Cash: cash})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Desk < rows[j].Desk })
	return rows
}

// bondValue computes qty*price/rate for a position cell, or Zero if the
// bond carries no resolvable price at the current state_id.
func (e *Engine) bondValue(bondID string, qty decimal.Decimal) decimal.Decimal {
	bc, ok := e.bonds[bondID]
	if !ok || !bc.Price.Valid {
		return decimal.Zero
	}
	rate, ok := e.fx[bc.Currency]
	if !ok || rate.IsZero() {
		return decimal.Zero
	}
	return qty.Mul(bc.Price.Decimal).Div(rate)
}

type positionGroup struct{ position, value decimal.Decimal }

func (e *Engine) positionLevel() []PositionRow {
	groups := map[[3]string]*positionGroup{}
	for key, pos := range e.positions {
		if pos.IsZero() {
			continue
		}
		g := [3]string{e.traderDesk[key.Trader], key.Trader, key.Book}
		a, ok := groups[g]
		if !ok {
			a = &positionGroup{position: decimal.Zero, value: decimal.Zero}
			groups[g] = a
		}
		a.position = a.position.Add(pos)
		a.value = a.value.Add(e.bondValue(key.Bond, pos))
	}
	rows := make([]PositionRow, 0, len(groups))
	for g, a := range groups {
		if a.position.IsZero() {
			continue
		}
		rows = append(rows, PositionRow{Desk: g[0], Trader: g[1], Book: g[2], Position: a.position, Value: a.value})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Desk != b.Desk {
			return a.Desk < b.Desk
		}
		if a.Trader != b.Trader {
			return a.Trader < b.Trader
		}
		return a.Book < b.Book
	})
	return rows
}

func (e *Engine) bondLevel() []BondRow {
	rows := make([]BondRow, 0, len(e.positions))
	for key, pos := range e.positions {
		if pos.IsZero() {
			continue
		}
		rows = append(rows, BondRow{
			Desk: e.traderDesk[key.Trader], Trader: key.Trader, Book: key.Book, Bond: key.Bond,
			Position: pos, Value: e.bondValue(key.Bond, pos),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Desk != b.Desk {
			return a.Desk < b.Desk
		}
		if a.Trader != b.Trader {
			return a.Trader < b.Trader
		}
		if a.Book != b.Book {
			return a.Book < b.Book
		}
		return a.Bond < b.Bond
	})
	return rows
}

func (e *Engine) currencyLevel() []CurrencyRow {
	groups := map[[2]string]*positionGroup{}
	for key, pos := range e.positions {
		if pos.IsZero() {
			continue
		}
		bc, ok := e.bonds[key.Bond]
		if !ok {
			continue
		}
		g := [2]string{e.traderDesk[key.Trader], bc.Currency}
		a, ok := groups[g]
		if !ok {
			a = &positionGroup{position: decimal.Zero, value: decimal.Zero}
			groups[g] = a
		}
		a.position = a.position.Add(pos)
		a.value = a.value.Add(e.bondValue(key.Bond, pos))
	}
	rows := make([]CurrencyRow, 0, len(groups))
	for g, a := range groups {
		if a.position.IsZero() {
			continue
		}
		rows = append(rows, CurrencyRow{Desk: g[0], Currency: g[1], Position: a.position, Value: a.value})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Desk != rows[j].Desk {
			return rows[i].Desk < rows[j].Desk
		}
		return rows[i].Currency < rows[j].Currency
	})
	return rows
}

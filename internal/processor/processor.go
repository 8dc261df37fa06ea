// Package processor applies one released event to the reference store:
// it validates, updates live state, and appends the auditable per-event
// log row (or exclusion), all as a single atomic unit of work.
package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/bondbackoffice/eventproc/internal/domain"
	"github.com/bondbackoffice/eventproc/internal/store"
)

func init() {
	// value = qty * price / rate must carry at least 19 digits with 5
	// fractional; the default DivisionPrecision (16) is not enough
	// headroom for that plus later rounding.
	decimal.DivisionPrecision = 20
}

// Processor applies released events against a Store.
type Processor struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a Processor over store s.
func New(s *store.Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: s, logger: logger.With("component", "processor")}
}

// Apply dispatches event by type and applies it within one transaction.
// It matches the sequencer.Handler signature.
func (p *Processor) Apply(ctx context.Context, event domain.Event) error {
	return p.store.WithTx(ctx, func(tx *store.Tx) error {
		switch event.Type {
		case domain.FXEvent:
			return applyFX(tx, event)
		case domain.PriceEvent:
			return applyPrice(tx, event)
		case domain.TradeEvent:
			return applyTrade(tx, event)
		default:
			return &domain.DataError{Reason: fmt.Sprintf("unknown event type %v", event.Type)}
		}
	})
}

func applyFX(tx *store.Tx, event domain.Event) error {
	if event.FX == nil {
		return &domain.DataError{Reason: "FXEvent missing payload"}
	}
	if _, err := tx.GetFX(event.FX.Ccy); err != nil {
		if err == store.ErrNotFound {
			return &domain.DataError{Reason: "unknown currency " + event.FX.Ccy}
		}
		return err
	}
	if err := tx.UpdateFXRate(event.FX.Ccy, event.FX.Rate); err != nil {
		return err
	}
	return tx.AppendFXLog(domain.FXLogRow{
		EventID:    event.EventID,
		CurrencyID: event.FX.Ccy,
		Rate:       event.FX.Rate,
	})
}

func applyPrice(tx *store.Tx, event domain.Event) error {
	if event.Price == nil {
		return &domain.DataError{Reason: "PriceEvent missing payload"}
	}
	if _, err := tx.GetBond(event.Price.BondID); err != nil {
		if err == store.ErrNotFound {
			return &domain.DataError{Reason: "unknown bond " + event.Price.BondID}
		}
		return err
	}
	if err := tx.SetBondPrice(event.Price.BondID, event.Price.MarketPrice); err != nil {
		return err
	}
	return tx.AppendPriceLog(domain.PriceLogRow{
		EventID: event.EventID,
		BondID:  event.Price.BondID,
		Price:   event.Price.MarketPrice,
	})
}

func applyTrade(tx *store.Tx, event domain.Event) error {
	p := event.Trade
	if p == nil {
		return &domain.DataError{Reason: "TradeEvent missing payload"}
	}

	if err := tx.GetOrCreateTrader(p.Trader, p.Desk); err != nil {
		if err == store.ErrMismatch {
			return &domain.DataError{Reason: err.Error()}
		}
		return err
	}
	if err := tx.GetOrCreateBook(p.Book, p.Trader); err != nil {
		if err == store.ErrMismatch {
			return &domain.DataError{Reason: err.Error()}
		}
		return err
	}

	bond, err := tx.GetBond(p.BondID)
	if err != nil {
		if err == store.ErrNotFound {
			return &domain.DataError{Reason: "unknown bond " + p.BondID}
		}
		return err
	}
	fx, err := tx.GetFX(bond.CurrencyID)
	if err != nil {
		if err == store.ErrNotFound {
			return &domain.DataError{Reason: "unknown currency " + bond.CurrencyID}
		}
		return err
	}
	desk, err := tx.GetDesk(p.Desk)
	if err != nil {
		if err == store.ErrNotFound {
			return &domain.DataError{Reason: "unknown desk " + p.Desk}
		}
		return err
	}

	key := domain.BondRecordKey{TraderID: p.Trader, BookID: p.Book, BondID: p.BondID}
	position, exists, err := tx.GetBondRecordPosition(key)
	if err != nil {
		return err
	}

	if p.BuySell == domain.Buy {
		if !bond.Price.Valid {
			return logExclusion(tx, event.EventID, p, bond.Price, domain.NoMarketPrice)
		}
		value := p.Quantity.Mul(bond.Price.Decimal).Div(fx.Rate)
		if desk.Cash.LessThan(value) {
			return logExclusion(tx, event.EventID, p, bond.Price, domain.CashOverlimit)
		}
		newCash := desk.Cash.Sub(value)
		newPosition := position.Add(p.Quantity)
		if err := tx.SetDeskCash(p.Desk, newCash); err != nil {
			return err
		}
		if err := tx.SetBondRecordPosition(key, newPosition); err != nil {
			return err
		}
		return tx.AppendTradeLog(domain.TradeLogRow{
			EventID: event.EventID, DeskID: p.Desk, TraderID: p.Trader, BookID: p.Book, BondID: p.BondID,
			BuySell: p.BuySell, Quantity: p.Quantity, Position: newPosition, Price: bond.Price.Decimal,
			FXRate: fx.Rate, Value: value, DeskCashAfter: newCash,
		})
	}

	// Sell path.
	if !exists || position.LessThan(p.Quantity) {
		return logExclusion(tx, event.EventID, p, bond.Price, domain.QuantityOverlimit)
	}
	// A sell always has a market price once a position exists (positions
	// only arise from a prior successful buy, which required one), but
	// guard anyway — value is only meaningful against a known price.
	if !bond.Price.Valid {
		return logExclusion(tx, event.EventID, p, bond.Price, domain.NoMarketPrice)
	}
	value := p.Quantity.Mul(bond.Price.Decimal).Div(fx.Rate)
	newCash := desk.Cash.Add(value)
	newPosition := position.Sub(p.Quantity)
	if err := tx.SetDeskCash(p.Desk, newCash); err != nil {
		return err
	}
	if err := tx.SetBondRecordPosition(key, newPosition); err != nil {
		return err
	}
	return tx.AppendTradeLog(domain.TradeLogRow{
		EventID: event.EventID, DeskID: p.Desk, TraderID: p.Trader, BookID: p.Book, BondID: p.BondID,
		BuySell: p.BuySell, Quantity: p.Quantity, Position: newPosition, Price: bond.Price.Decimal,
		FXRate: fx.Rate, Value: value, DeskCashAfter: newCash,
	})
}

func logExclusion(tx *store.Tx, eventID int64, p *domain.TradePayload, price decimal.NullDecimal, kind domain.ExclusionType) error {
	return tx.AppendException(domain.ExceptionLogRow{
		EventID: eventID, DeskID: p.Desk, TraderID: p.Trader, BookID: p.Book, BondID: p.BondID,
		BuySell: p.BuySell, Quantity: p.Quantity, Price: price, ExclusionType: kind,
	})
}

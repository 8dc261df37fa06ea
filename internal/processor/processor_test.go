package processor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bondbackoffice/eventproc/internal/domain"
	"github.com/bondbackoffice/eventproc/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedScenario(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	must(t, s.WithTx(ctx, func(tx *store.Tx) error { return tx.SeedFX("JPX", decimal.NewFromFloat(136.14)) }))
	must(t, s.WithTx(ctx, func(tx *store.Tx) error { return tx.SeedBond("B34678", "JPX") }))
	must(t, s.WithTx(ctx, func(tx *store.Tx) error { return tx.SeedDesk("NY", decimal.NewFromInt(1000000)) }))
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestBuyAfterPriceKnown: buying 533 of B34678 at price 10000 (JPX) with
// fx rate 136.14 debits 533*10000/136.14 = 39150.87410 from a 1,000,000
// cash desk.
func TestBuyAfterPriceKnown(t *testing.T) {
	s := newTestStore(t)
	seedScenario(t, s)
	p := New(s, nil)
	ctx := context.Background()

	must(t, p.Apply(ctx, domain.Event{
		EventID: 1, Type: domain.PriceEvent,
		Price: &domain.PricePayload{BondID: "B34678", MarketPrice: decimal.NewFromInt(10000)},
	}))
	must(t, p.Apply(ctx, domain.Event{
		EventID: 2, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T6899554", Book: "NY00", BondID: "B34678",
			BuySell: domain.Buy, Quantity: decimal.NewFromInt(533),
		},
	}))

	var desk domain.Desk
	var pos decimal.Decimal
	must(t, s.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		desk, err = tx.GetDesk("NY")
		if err != nil {
			return err
		}
		pos, _, err = tx.GetBondRecordPosition(domain.BondRecordKey{TraderID: "T6899554", BookID: "NY00", BondID: "B34678"})
		return err
	}))

	wantValue := decimal.NewFromInt(533).Mul(decimal.NewFromInt(10000)).Div(decimal.NewFromFloat(136.14)).Round(5)
	if !wantValue.Equal(decimal.RequireFromString("39150.87410")) {
		t.Fatalf("sanity check on expected value failed: got %s", wantValue)
	}

	wantDeskCash := decimal.NewFromInt(1000000).Sub(wantValue)
	if !desk.Cash.Round(5).Equal(wantDeskCash.Round(5)) {
		t.Errorf("desk cash = %s, want %s", desk.Cash, wantDeskCash)
	}
	if !pos.Equal(decimal.NewFromInt(533)) {
		t.Errorf("position = %s, want 533", pos)
	}
}

func TestBuyWithNoMarketPriceExcludes(t *testing.T) {
	s := newTestStore(t)
	seedScenario(t, s)
	p := New(s, nil)
	ctx := context.Background()

	must(t, p.Apply(ctx, domain.Event{
		EventID: 1, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T1", Book: "NY00", BondID: "B34678",
			BuySell: domain.Buy, Quantity: decimal.NewFromInt(10),
		},
	}))

	excl, err := s.ExceptionsUpTo(ctx, 1)
	if err != nil {
		t.Fatalf("ExceptionsUpTo: %v", err)
	}
	if len(excl) != 1 || excl[0].ExclusionType != domain.NoMarketPrice {
		t.Fatalf("expected 1 NO_MARKET_PRICE exclusion, got %+v", excl)
	}

	// No trade log row should have been written.
	logs, err := s.TradeLogAscending(ctx, 0, 1)
	if err != nil || len(logs) != 0 {
		t.Fatalf("expected no trade log rows, got %+v (err %v)", logs, err)
	}
}

func TestBuyOverCashLimitExcludes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	must(t, s.WithTx(ctx, func(tx *store.Tx) error { return tx.SeedFX("JPX", decimal.NewFromInt(1)) }))
	must(t, s.WithTx(ctx, func(tx *store.Tx) error { return tx.SeedBond("B1", "JPX") }))
	must(t, s.WithTx(ctx, func(tx *store.Tx) error { return tx.SeedDesk("NY", decimal.NewFromInt(100)) }))

	p := New(s, nil)
	must(t, p.Apply(ctx, domain.Event{
		EventID: 1, Type: domain.PriceEvent,
		Price: &domain.PricePayload{BondID: "B1", MarketPrice: decimal.NewFromInt(1000)},
	}))
	must(t, p.Apply(ctx, domain.Event{
		EventID: 2, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T1", Book: "NY00", BondID: "B1",
			BuySell: domain.Buy, Quantity: decimal.NewFromInt(1),
		},
	}))

	excl, err := s.ExceptionsUpTo(ctx, 2)
	if err != nil || len(excl) != 1 || excl[0].ExclusionType != domain.CashOverlimit {
		t.Fatalf("expected 1 CASH_OVERLIMIT exclusion, got %+v (err %v)", excl, err)
	}
}

func TestSellWithoutPositionExcludes(t *testing.T) {
	s := newTestStore(t)
	seedScenario(t, s)
	p := New(s, nil)
	ctx := context.Background()

	must(t, p.Apply(ctx, domain.Event{
		EventID: 1, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T1", Book: "NY00", BondID: "B34678",
			BuySell: domain.Sell, Quantity: decimal.NewFromInt(1),
		},
	}))

	excl, err := s.ExceptionsUpTo(ctx, 1)
	if err != nil || len(excl) != 1 || excl[0].ExclusionType != domain.QuantityOverlimit {
		t.Fatalf("expected 1 QUANTITY_OVERLIMIT exclusion, got %+v (err %v)", excl, err)
	}
}

func TestSellReducesPositionAndCreditsCash(t *testing.T) {
	s := newTestStore(t)
	seedScenario(t, s)
	p := New(s, nil)
	ctx := context.Background()

	must(t, p.Apply(ctx, domain.Event{
		EventID: 1, Type: domain.PriceEvent,
		Price: &domain.PricePayload{BondID: "B34678", MarketPrice: decimal.NewFromInt(10000)},
	}))
	must(t, p.Apply(ctx, domain.Event{
		EventID: 2, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T1", Book: "NY00", BondID: "B34678",
			BuySell: domain.Buy, Quantity: decimal.NewFromInt(100),
		},
	}))
	must(t, p.Apply(ctx, domain.Event{
		EventID: 3, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T1", Book: "NY00", BondID: "B34678",
			BuySell: domain.Sell, Quantity: decimal.NewFromInt(40),
		},
	}))

	var pos decimal.Decimal
	must(t, s.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		pos, _, err = tx.GetBondRecordPosition(domain.BondRecordKey{TraderID: "T1", BookID: "NY00", BondID: "B34678"})
		return err
	}))
	if !pos.Equal(decimal.NewFromInt(60)) {
		t.Errorf("position = %s, want 60", pos)
	}
}

func TestUnknownCurrencyIsFatalDataError(t *testing.T) {
	s := newTestStore(t)
	p := New(s, nil)
	ctx := context.Background()

	err := p.Apply(ctx, domain.Event{
		EventID: 1, Type: domain.FXEvent,
		FX: &domain.FXPayload{Ccy: "ZZZ", Rate: decimal.NewFromInt(1)},
	})
	var dataErr *domain.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected *domain.DataError, got %v", err)
	}
}

func TestTraderCrossDeskSightingIsFatalDataError(t *testing.T) {
	s := newTestStore(t)
	seedScenario(t, s)
	must(t, s.WithTx(context.Background(), func(tx *store.Tx) error { return tx.SeedDesk("LDN", decimal.NewFromInt(1000)) }))
	p := New(s, nil)
	ctx := context.Background()

	must(t, p.Apply(ctx, domain.Event{
		EventID: 1, Type: domain.PriceEvent,
		Price: &domain.PricePayload{BondID: "B34678", MarketPrice: decimal.NewFromInt(10000)},
	}))
	must(t, p.Apply(ctx, domain.Event{
		EventID: 2, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T1", Book: "NY00", BondID: "B34678",
			BuySell: domain.Buy, Quantity: decimal.NewFromInt(1),
		},
	}))

	err := p.Apply(ctx, domain.Event{
		EventID: 3, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "LDN", Trader: "T1", Book: "NY00", BondID: "B34678",
			BuySell: domain.Buy, Quantity: decimal.NewFromInt(1),
		},
	})
	var dataErr *domain.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected *domain.DataError for cross-desk trader sighting, got %v", err)
	}
}

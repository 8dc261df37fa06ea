package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bondbackoffice/eventproc/internal/processor"
	"github.com/bondbackoffice/eventproc/internal/store"

	"github.com/bondbackoffice/eventproc/internal/domain"
)

func newScenarioStore(t *testing.T) (*store.Store, *processor.Processor) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	must(t, s.WithTx(ctx, func(tx *store.Tx) error { return tx.SeedFX("JPX", decimal.NewFromFloat(136.14)) }))
	must(t, s.WithTx(ctx, func(tx *store.Tx) error { return tx.SeedBond("B34678", "JPX") }))
	must(t, s.WithTx(ctx, func(tx *store.Tx) error { return tx.SeedDesk("NY", decimal.NewFromInt(1000000)) }))
	return s, processor.New(s, nil)
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func applyScenarioEvents(t *testing.T, p *processor.Processor) {
	t.Helper()
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
}

func TestGenerateAtLastReleasedMatchesLiveState(t *testing.T) {
	s, p := newScenarioStore(t)
	applyScenarioEvents(t, p)
	ctx := context.Background()

	e := New(s)
	last, err := s.LastReleased(ctx)
	must(t, err)

	rows, err := e.Generate(ctx, last, CashLevelPortfolio)
	must(t, err)
	cashRows := rows.([]CashRow)
	if len(cashRows) != 1 || cashRows[0].Desk != "NY" {
		t.Fatalf("unexpected cash rows: %+v", cashRows)
	}

	wantValue := decimal.NewFromInt(533).Mul(decimal.NewFromInt(10000)).Div(decimal.NewFromFloat(136.14))
	wantCash := decimal.NewFromInt(1000000).Sub(wantValue)
	if !cashRows[0].Cash.Round(5).Equal(wantCash.Round(5)) {
		t.Errorf("cash = %s, want %s", cashRows[0].Cash, wantCash)
	}
}

func TestGenerateBacktrackBeforeTrade(t *testing.T) {
	s, p := newScenarioStore(t)
	applyScenarioEvents(t, p)
	ctx := context.Background()

	e := New(s)
	rows, err := e.Generate(ctx, 1, CashLevelPortfolio) // before the trade applied
	must(t, err)
	cashRows := rows.([]CashRow)
	if len(cashRows) != 1 || !cashRows[0].Cash.Equal(decimal.NewFromInt(1000000)) {
		t.Fatalf("expected untouched cash at t=1, got %+v", cashRows)
	}

	posRows, err := e.Generate(ctx, 1, PositionLevelPortfolio)
	must(t, err)
	if len(posRows.([]PositionRow)) != 0 {
		t.Fatalf("expected no position rows before the trade, got %+v", posRows)
	}
}

func TestGenerateReversibility(t *testing.T) {
	s, p := newScenarioStore(t)
	applyScenarioEvents(t, p)
	ctx := context.Background()

	e1 := New(s)
	rowsAt2, err := e1.Generate(ctx, 2, CashLevelPortfolio)
	must(t, err)
	_, err = e1.Generate(ctx, 1, CashLevelPortfolio) // move away...
	must(t, err)
	rowsBack, err := e1.Generate(ctx, 2, CashLevelPortfolio) // ...and back
	must(t, err)

	e2 := New(s)
	rowsFresh, err := e2.Generate(ctx, 2, CashLevelPortfolio)
	must(t, err)

	a := rowsAt2.([]CashRow)[0].Cash
	b := rowsBack.([]CashRow)[0].Cash
	c := rowsFresh.([]CashRow)[0].Cash
	if !a.Equal(b) || !b.Equal(c) {
		t.Fatalf("reversibility violated: at2=%s back=%s fresh=%s", a, b, c)
	}
}

func TestGenerateExclusionsBypassesReplay(t *testing.T) {
	s, p := newScenarioStore(t)
	ctx := context.Background()
	must(t, p.Apply(ctx, domain.Event{
		EventID: 1, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T1", Book: "NY00", BondID: "B34678",
			BuySell: domain.Buy, Quantity: decimal.NewFromInt(1),
		},
	}))

	e := New(s)
	rows, err := e.Generate(ctx, 1, Exclusions)
	must(t, err)
	excl := rows.([]domain.ExceptionLogRow)
	if len(excl) != 1 || excl[0].ExclusionType != domain.NoMarketPrice {
		t.Fatalf("unexpected exclusions: %+v", excl)
	}
}

func TestPositionLevelSuppressesZeroPositions(t *testing.T) {
	s, p := newScenarioStore(t)
	ctx := context.Background()
	must(t, p.Apply(ctx, domain.Event{
		EventID: 1, Type: domain.PriceEvent,
		Price: &domain.PricePayload{BondID: "B34678", MarketPrice: decimal.NewFromInt(10000)},
	}))
	must(t, p.Apply(ctx, domain.Event{
		EventID: 2, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T1", Book: "NY00", BondID: "B34678",
			BuySell: domain.Buy, Quantity: decimal.NewFromInt(10),
		},
	}))
	must(t, p.Apply(ctx, domain.Event{
		EventID: 3, Type: domain.TradeEvent,
		Trade: &domain.TradePayload{
			Desk: "NY", Trader: "T1", Book: "NY00", BondID: "B34678",
			BuySell: domain.Sell, Quantity: decimal.NewFromInt(10),
		},
	}))

	e := New(s)
	rows, err := e.Generate(ctx, 3, PositionLevelPortfolio)
	must(t, err)
	if len(rows.([]PositionRow)) != 0 {
		t.Fatalf("expected zero positions suppressed, got %+v", rows)
	}
}

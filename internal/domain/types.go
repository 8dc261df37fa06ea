// Package domain defines the core types shared across the event processor:
// the event variant accepted at intake, the reference entities it mutates,
// the log rows it appends, and the error taxonomy trades can raise.
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// --- Event variant ---

// EventType tags which payload an Event carries.
type EventType int8

const (
	FXEvent EventType = iota
	PriceEvent
	TradeEvent
)

func (t EventType) String() string {
	switch t {
	case FXEvent:
		return "FXEvent"
	case PriceEvent:
		return "PriceEvent"
	case TradeEvent:
		return "TradeEvent"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes EventType as the publisher's string form.
func (t EventType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON parses EventType from the publisher's string form.
func (t *EventType) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "FXEvent":
		*t = FXEvent
	case "PriceEvent":
		*t = PriceEvent
	case "TradeEvent":
		*t = TradeEvent
	default:
		return fmt.Errorf("unknown EventType: %s", data)
	}
	return nil
}

// Side is a trade direction, rendered as "buy"/"sell" end-to-end; no
// short-form (B/S) encoding is ever produced or accepted.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Side) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "buy":
		*s = Buy
	case "sell":
		*s = Sell
	default:
		return fmt.Errorf("unknown BuySell: %s", data)
	}
	return nil
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown BuySell: %q", s)
	}
}

// TradePayload carries a TradeEvent's type-specific fields.
type TradePayload struct {
	Desk     string          `json:"Desk"`
	Trader   string          `json:"Trader"`
	Book     string          `json:"Book"`
	BondID   string          `json:"BondID"`
	BuySell  Side            `json:"BuySell"`
	Quantity decimal.Decimal `json:"Quantity"`
}

// FXPayload carries an FXEvent's type-specific fields.
type FXPayload struct {
	Ccy  string          `json:"ccy"`
	Rate decimal.Decimal `json:"rate"`
}

// PricePayload carries a PriceEvent's type-specific fields.
type PricePayload struct {
	BondID      string          `json:"BondID"`
	MarketPrice decimal.Decimal `json:"MarketPrice"`
}

// Event is the totally-ordered unit accepted at intake. Exactly one of
// FX, Price, Trade is set, selected by Type.
type Event struct {
	EventID int64     `json:"EventID"`
	Type    EventType `json:"EventType"`

	FX    *FXPayload    `json:"-"`
	Price *PricePayload `json:"-"`
	Trade *TradePayload `json:"-"`
}

// --- Reference entities (C1) ---

// FX holds the live and initial rate for a currency, quoted foreign/USX.
type FX struct {
	CurrencyID string
	Rate       decimal.Decimal
	Initial    decimal.Decimal
}

// Bond holds the live and initial price for a bond, denominated in its
// own currency.
type Bond struct {
	BondID       string
	CurrencyID   string
	Price        decimal.NullDecimal
	InitialPrice decimal.NullDecimal
}

// Desk holds a cash balance in USX.
type Desk struct {
	DeskID string
	Cash   decimal.Decimal
}

// Trader belongs to exactly one desk.
type Trader struct {
	TraderID string
	DeskID   string
}

// Book belongs to exactly one trader.
type Book struct {
	BookID   string
	TraderID string
}

// BondRecordKey identifies a (trader, book, bond) position triple.
type BondRecordKey struct {
	TraderID string
	BookID   string
	BondID   string
}

// BondRecord is the non-negative integer position for a (trader, book, bond)
// triple.
type BondRecord struct {
	BondRecordKey
	Position decimal.Decimal
}

// --- Logs (C2) ---

// TradeLogRow is one accepted trade: a full denormalized snapshot of the
// event as applied, sufficient to replay or reverse it without consulting
// current market data.
type TradeLogRow struct {
	EventID       int64
	DeskID        string
	TraderID      string
	BookID        string
	BondID        string
	BuySell       Side
	Quantity      decimal.Decimal
	Position      decimal.Decimal // resulting position for the triple after apply
	Price         decimal.Decimal // bond price used
	FXRate        decimal.Decimal // fx rate used
	Value         decimal.Decimal // net value in USX
	DeskCashAfter decimal.Decimal
}

// FXLogRow is one historical FX rate update.
type FXLogRow struct {
	EventID    int64
	CurrencyID string
	Rate       decimal.Decimal
}

// PriceLogRow is one historical bond price update.
type PriceLogRow struct {
	EventID int64
	BondID  string
	Price   decimal.Decimal
}

// ExclusionType enumerates the business-rule rejections a trade can raise.
type ExclusionType string

const (
	NoMarketPrice     ExclusionType = "NO_MARKET_PRICE"
	CashOverlimit     ExclusionType = "CASH_OVERLIMIT"
	QuantityOverlimit ExclusionType = "QUANTITY_OVERLIMIT"
)

// ExceptionLogRow is a rejected trade with full context: the bond's
// current price travels with the row even on a reject.
type ExceptionLogRow struct {
	EventID       int64
	DeskID        string
	TraderID      string
	BookID        string
	BondID        string
	BuySell       Side
	Quantity      decimal.Decimal
	Price         decimal.NullDecimal // the bond's current price; null for NO_MARKET_PRICE
	ExclusionType ExclusionType
}

// --- Error taxonomy ---

// DataError is the only fatal kind: it aborts the event and surfaces to
// the caller. Unknown currency, bond, or event type, or a trader/book
// sighted under a conflicting parent, all raise this.
type DataError struct {
	Reason string
}

func (e *DataError) Error() string { return "data error: " + e.Reason }

// Exclusion is a normal-business-flow rejection: it is logged, never
// surfaced as an error to the intake caller — intake still returns 204.
type Exclusion struct {
	Type ExclusionType
	Row  ExceptionLogRow
}

func (e *Exclusion) Error() string { return "excluded: " + string(e.Type) }

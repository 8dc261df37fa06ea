package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

// wireEvent is the flat on-the-wire shape of Event: EventID and EventType
// alongside whichever payload fields EventType selects, matching the
// publisher's JSON feed format.
type wireEvent struct {
	EventID     int64           `json:"EventID"`
	EventType   EventType       `json:"EventType"`
	Ccy         string          `json:"ccy,omitempty"`
	Rate        decimal.Decimal `json:"rate,omitempty"`
	BondID      string          `json:"BondID,omitempty"`
	MarketPrice decimal.Decimal `json:"MarketPrice,omitempty"`
	Desk        string          `json:"Desk,omitempty"`
	Trader      string          `json:"Trader,omitempty"`
	Book        string          `json:"Book,omitempty"`
	BuySell     Side            `json:"BuySell,omitempty"`
	Quantity    decimal.Decimal `json:"Quantity,omitempty"`
}

// MarshalJSON flattens Event's active payload into the publisher's wire
// shape, the inverse of UnmarshalJSON. (The /api/events/ intake takes form
// values instead; see FromForm.)
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{EventID: e.EventID, EventType: e.Type}
	switch e.Type {
	case FXEvent:
		if e.FX == nil {
			return nil, fmt.Errorf("FXEvent with nil FX payload")
		}
		w.Ccy, w.Rate = e.FX.Ccy, e.FX.Rate
	case PriceEvent:
		if e.Price == nil {
			return nil, fmt.Errorf("PriceEvent with nil Price payload")
		}
		w.BondID, w.MarketPrice = e.Price.BondID, e.Price.MarketPrice
	case TradeEvent:
		if e.Trade == nil {
			return nil, fmt.Errorf("TradeEvent with nil Trade payload")
		}
		w.Desk, w.Trader, w.Book = e.Trade.Desk, e.Trade.Trader, e.Trade.Book
		w.BondID, w.BuySell, w.Quantity = e.Trade.BondID, e.Trade.BuySell, e.Trade.Quantity
	default:
		return nil, fmt.Errorf("unknown EventType %v", e.Type)
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses Event from the flat publisher wire shape, routing
// fields into the payload selected by EventType.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ev, err := fromWire(w)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

func fromWire(w wireEvent) (Event, error) {
	e := Event{EventID: w.EventID, Type: w.EventType}
	switch w.EventType {
	case FXEvent:
		e.FX = &FXPayload{Ccy: w.Ccy, Rate: w.Rate}
	case PriceEvent:
		e.Price = &PricePayload{BondID: w.BondID, MarketPrice: w.MarketPrice}
	case TradeEvent:
		e.Trade = &TradePayload{
			Desk: w.Desk, Trader: w.Trader, Book: w.Book,
			BondID: w.BondID, BuySell: w.BuySell, Quantity: w.Quantity,
		}
	default:
		return Event{}, fmt.Errorf("unknown EventType %v", w.EventType)
	}
	return e, nil
}

// FromForm parses an Event from the decoded x-www-form-urlencoded body of
// POST /api/events/. Unlike the JSON array feed, every value arrives as a
// string, so numeric/decimal fields are parsed explicitly.
func FromForm(form url.Values) (Event, error) {
	eventID, err := strconv.ParseInt(form.Get("EventID"), 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("bad EventID: %w", err)
	}
	var typ EventType
	switch form.Get("EventType") {
	case "FXEvent":
		typ = FXEvent
	case "PriceEvent":
		typ = PriceEvent
	case "TradeEvent":
		typ = TradeEvent
	default:
		return Event{}, fmt.Errorf("unknown EventType %q", form.Get("EventType"))
	}

	e := Event{EventID: eventID, Type: typ}
	switch typ {
	case FXEvent:
		rate, err := decimal.NewFromString(form.Get("rate"))
		if err != nil {
			return Event{}, fmt.Errorf("bad rate: %w", err)
		}
		e.FX = &FXPayload{Ccy: form.Get("ccy"), Rate: rate}
	case PriceEvent:
		price, err := decimal.NewFromString(form.Get("MarketPrice"))
		if err != nil {
			return Event{}, fmt.Errorf("bad MarketPrice: %w", err)
		}
		e.Price = &PricePayload{BondID: form.Get("BondID"), MarketPrice: price}
	case TradeEvent:
		side, err := ParseSide(form.Get("BuySell"))
		if err != nil {
			return Event{}, err
		}
		qty, err := decimal.NewFromString(form.Get("Quantity"))
		if err != nil {
			return Event{}, fmt.Errorf("bad Quantity: %w", err)
		}
		e.Trade = &TradePayload{
			Desk: form.Get("Desk"), Trader: form.Get("Trader"), Book: form.Get("Book"),
			BondID: form.Get("BondID"), BuySell: side, Quantity: qty,
		}
	}
	return e, nil
}

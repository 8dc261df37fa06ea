// Command bondfeed is a timer-driven event publisher. It reads an Event
// JSON array from a file and POSTs each event to bondproc's intake
// endpoint on a fixed tick, retrying on failures the way a
// redelivery-based publisher would.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/bondbackoffice/eventproc/internal/domain"
)

func main() {
	var (
		feedPath = flag.String("feed", "", "path to an Event JSON array file (required)")
		target   = flag.String("target", "http://localhost:8080/api/events/", "intake endpoint URL")
		interval = flag.Duration("interval", time.Second, "delay between publishing each event")
		retries  = flag.Int("retries", 3, "max POST attempts per event before giving up on it")
	)
	flag.Parse()

	if *feedPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --feed is required")
		os.Exit(1)
	}

	events, err := loadFeed(*feedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading feed: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	for i, event := range events {
		if err := publishWithRetry(client, *target, event, *retries); err != nil {
			fmt.Fprintf(os.Stderr, "event %d (id=%d) failed after %d attempts: %v\n", i, event.EventID, *retries, err)
			continue
		}
		fmt.Printf("published event id=%d type=%s\n", event.EventID, event.Type)
		if i < len(events)-1 {
			time.Sleep(*interval)
		}
	}
}

func loadFeed(path string) ([]domain.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []domain.Event
	if err := json.NewDecoder(f).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return events, nil
}

func publishWithRetry(client *http.Client, target string, event domain.Event, retries int) error {
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := publish(client, target, event); err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
			continue
		}
		return nil
	}
	return lastErr
}

// publish encodes event as the form body the intake handler expects,
// flattening the same way domain.Event.MarshalJSON does for the JSON
// feed, but as urlencoded form values instead.
func publish(client *http.Client, target string, event domain.Event) error {
	form := url.Values{}
	form.Set("EventID", strconv.FormatInt(event.EventID, 10))
	form.Set("EventType", event.Type.String())

	switch event.Type {
	case domain.FXEvent:
		if event.FX == nil {
			return fmt.Errorf("FXEvent missing payload")
		}
		form.Set("ccy", event.FX.Ccy)
		form.Set("rate", event.FX.Rate.String())
	case domain.PriceEvent:
		if event.Price == nil {
			return fmt.Errorf("PriceEvent missing payload")
		}
		form.Set("BondID", event.Price.BondID)
		form.Set("MarketPrice", event.Price.MarketPrice.String())
	case domain.TradeEvent:
		if event.Trade == nil {
			return fmt.Errorf("TradeEvent missing payload")
		}
		form.Set("Desk", event.Trade.Desk)
		form.Set("Trader", event.Trade.Trader)
		form.Set("Book", event.Trade.Book)
		form.Set("BondID", event.Trade.BondID)
		form.Set("BuySell", event.Trade.BuySell.String())
		form.Set("Quantity", event.Trade.Quantity.String())
	default:
		return fmt.Errorf("unknown event type %v", event.Type)
	}

	resp, err := client.Post(target, "application/x-www-form-urlencoded", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

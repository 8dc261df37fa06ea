// Package seed loads the three reference-data CSV files read once at
// startup: initial_fx.csv, bond_details.csv, initial_cash.csv. Order
// matters: bonds reference their currency, so FX loads first, then
// bonds, then desk cash.
package seed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/bondbackoffice/eventproc/internal/store"
)

// Files names the three seeding CSVs.
type Files struct {
	FX   string // initial_fx.csv: currency_id,rate
	Bond string // bond_details.csv: bond_id,currency_id
	Cash string // initial_cash.csv: desk_id,cash
}

// Load reads all three files and seeds the store in FX -> Bond -> Cash
// order, inside one transaction.
func Load(ctx context.Context, s *store.Store, files Files) error {
	return s.WithTx(ctx, func(tx *store.Tx) error {
		if err := loadFX(tx, files.FX); err != nil {
			return fmt.Errorf("load %s: %w", files.FX, err)
		}
		if err := loadBonds(tx, files.Bond); err != nil {
			return fmt.Errorf("load %s: %w", files.Bond, err)
		}
		if err := loadCash(tx, files.Cash); err != nil {
			return fmt.Errorf("load %s: %w", files.Cash, err)
		}
		return nil
	})
}

func loadFX(tx *store.Tx, path string) error {
	return eachDataRow(path, func(row []string) error {
		if len(row) < 2 {
			return fmt.Errorf("bad row (need currency_id,rate): %v", row)
		}
		rate, err := decimal.NewFromString(row[1])
		if err != nil {
			return fmt.Errorf("bad rate %q: %w", row[1], err)
		}
		return tx.SeedFX(row[0], rate)
	})
}

func loadBonds(tx *store.Tx, path string) error {
	return eachDataRow(path, func(row []string) error {
		if len(row) < 2 {
			return fmt.Errorf("bad row (need bond_id,currency_id): %v", row)
		}
		return tx.SeedBond(row[0], row[1])
	})
}

func loadCash(tx *store.Tx, path string) error {
	return eachDataRow(path, func(row []string) error {
		if len(row) < 2 {
			return fmt.Errorf("bad row (need desk_id,cash): %v", row)
		}
		cash, err := decimal.NewFromString(row[1])
		if err != nil {
			return fmt.Errorf("bad cash %q: %w", row[1], err)
		}
		return tx.SeedDesk(row[0], cash)
	})
}

// eachDataRow reads path as CSV, skipping the header row, and calls fn
// for every remaining row.
func eachDataRow(path string, fn func(row []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil { // header row, discarded
		if err == io.EOF {
			return nil
		}
		return err
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(row) == 0 {
			continue
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

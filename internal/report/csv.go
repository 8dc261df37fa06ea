package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/bondbackoffice/eventproc/internal/domain"
)

// money renders a monetary column with two decimals, half-away-from-zero.
// Positions are integers and are rendered with decimal.Decimal.String
// instead.
func money(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// WriteCSV renders rows (the interface{} returned by Engine.Generate) as
// text/csv with the header row for kind.
func WriteCSV(w io.Writer, kind Kind, rows interface{}) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	switch kind {
	case CashLevelPortfolio:
		return writeCash(cw, rows.([]CashRow))
	case PositionLevelPortfolio:
		return writePosition(cw, rows.([]PositionRow))
	case BondLevelPortfolio:
		return writeBond(cw, rows.([]BondRow))
	case CurrencyLevelPortfolio:
		return writeCurrency(cw, rows.([]CurrencyRow))
	case Exclusions:
		return writeExclusions(cw, rows.([]domain.ExceptionLogRow))
	default:
		return fmt.Errorf("unknown report kind %q", kind)
	}
}

func writeCash(cw *csv.Writer, rows []CashRow) error {
	if err := cw.Write([]string{"Desk", "Cash"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Desk, money(r.Cash)}); err != nil {
			return err
		}
	}
	return cw.Error()
}

func writePosition(cw *csv.Writer, rows []PositionRow) error {
	if err := cw.Write([]string{"Desk", "Trader", "Book", "Position", "Value"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Desk, r.Trader, r.Book, r.Position.String(), money(r.Value)}); err != nil {
			return err
		}
	}
	return cw.Error()
}

func writeBond(cw *csv.Writer, rows []BondRow) error {
	if err := cw.Write([]string{"Desk", "Trader", "Book", "BondID", "Position", "Value"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Desk, r.Trader, r.Book, r.Bond, r.Position.String(), money(r.Value)}); err != nil {
			return err
		}
	}
	return cw.Error()
}

func writeCurrency(cw *csv.Writer, rows []CurrencyRow) error {
	if err := cw.Write([]string{"Desk", "Currency", "Position", "Value"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Desk, r.Currency, r.Position.String(), money(r.Value)}); err != nil {
			return err
		}
	}
	return cw.Error()
}

func writeExclusions(cw *csv.Writer, rows []domain.ExceptionLogRow) error {
	if err := cw.Write([]string{"EventID", "Desk", "Trader", "Book", "BondID", "BuySell", "Quantity", "Price", "ExclusionType"}); err != nil {
		return err
	}
	for _, r := range rows {
		price := ""
		if r.Price.Valid {
			price = money(r.Price.Decimal)
		}
		if err := cw.Write([]string{
			fmt.Sprintf("%d", r.EventID), r.DeskID, r.TraderID, r.BookID, r.BondID,
			r.BuySell.String(), r.Quantity.String(), price, string(r.ExclusionType),
		}); err != nil {
			return err
		}
	}
	return cw.Error()
}

// Filename returns the download/bulk-output filename for kind at target
// id t: {kind}_{t}.csv.
func Filename(kind Kind, t int64) string {
	return fmt.Sprintf("%s_%d.csv", kind, t)
}

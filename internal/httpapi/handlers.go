package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bondbackoffice/eventproc/internal/domain"
	"github.com/bondbackoffice/eventproc/internal/report"
	"github.com/bondbackoffice/eventproc/internal/store"
)

// EventAdmitter is satisfied by *sequencer.Sequencer.
type EventAdmitter interface {
	Admit(ctx context.Context, event domain.Event) error
}

// ReportGenerator is satisfied by *report.Engine.
type ReportGenerator interface {
	Generate(ctx context.Context, t int64, kind report.Kind) (interface{}, error)
}

// ReferenceReader is satisfied by *store.Store.
type ReferenceReader interface {
	AllFX(ctx context.Context) ([]domain.FX, error)
	AllBonds(ctx context.Context) ([]domain.Bond, error)
	AllDesks(ctx context.Context) ([]domain.Desk, error)
	AllBooks(ctx context.Context) ([]domain.Book, error)
	AllBondRecords(ctx context.Context) ([]domain.BondRecord, error)
}

// Deps bundles the three collaborators Handlers dispatches to.
type Deps struct {
	Sequencer EventAdmitter
	Reports   ReportGenerator
	Reference ReferenceReader
}

var _ ReferenceReader = (*store.Store)(nil)
var _ ReportGenerator = (*report.Engine)(nil)

type reportKind int

const (
	kindCash reportKind = iota
	kindPosition
	kindBond
	kindCurrency
	kindExclusion
)

func (k reportKind) reportKind() report.Kind {
	switch k {
	case kindCash:
		return report.CashLevelPortfolio
	case kindPosition:
		return report.PositionLevelPortfolio
	case kindBond:
		return report.BondLevelPortfolio
	case kindCurrency:
		return report.CurrencyLevelPortfolio
	default:
		return report.Exclusions
	}
}

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	deps      Deps
	outputDir string
	logger    *slog.Logger
}

// NewHandlers builds a Handlers over deps.
func NewHandlers(deps Deps, outputDir string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{deps: deps, outputDir: outputDir, logger: logger.With("component", "httpapi-handlers")}
}

// HandleHealth is a liveness probe.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleIntake implements POST /api/events/: form-encoded body, 204 on
// accepted, 400 on malformed. Exclusions are normal business flow and
// still return 204; only a DataError yields 400.
func (h *Handlers) HandleIntake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	event, err := domain.FromForm(r.Form)
	if err != nil {
		h.logger.Warn("malformed event", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var dataErr *domain.DataError
	if err := h.deps.Sequencer.Admit(r.Context(), event); err != nil {
		if errors.As(err, &dataErr) {
			http.Error(w, dataErr.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("admit failed", "event_id", event.EventID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reportHandler returns a GET handler for one of the five report kinds:
// text/csv with a header row, filename {kind}_{T}.csv.
func (h *Handlers) reportHandler(k reportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := h.targetID(w, r)
		if !ok {
			return
		}
		kind := k.reportKind()
		rows, err := h.deps.Reports.Generate(r.Context(), t, kind)
		if err != nil {
			h.logger.Error("generate failed", "kind", kind, "target_id", t, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(kind, t)))
		if err := report.WriteCSV(w, kind, rows); err != nil {
			h.logger.Error("write csv failed", "kind", kind, "error", err)
		}
	}
}

// HandleOutputReports implements GET /api/output_reports?target_id=T:
// writes all five CSVs to {outputDir}/output_{T}/{kind}_{T}.csv.
func (h *Handlers) HandleOutputReports(w http.ResponseWriter, r *http.Request) {
	t, ok := h.targetID(w, r)
	if !ok {
		return
	}
	dir := filepath.Join(h.outputDir, fmt.Sprintf("output_%d", t))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	kinds := []reportKind{kindCash, kindPosition, kindBond, kindCurrency, kindExclusion}
	for _, k := range kinds {
		rk := k.reportKind()
		rows, err := h.deps.Reports.Generate(r.Context(), t, rk)
		if err != nil {
			h.logger.Error("generate failed", "kind", rk, "target_id", t, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		path := filepath.Join(dir, report.Filename(rk, t))
		f, err := os.Create(path)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		err = report.WriteCSV(f, rk, rows)
		f.Close()
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "wrote 5 reports to %s\n", dir)
}

func (h *Handlers) targetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("target_id")
	if raw == "" {
		http.Error(w, "target_id is required", http.StatusBadRequest)
		return 0, false
	}
	t, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "target_id must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return t, true
}

// --- Live-dashboard JSON endpoints: thin dumps of the current
// reference-store tables ---

func (h *Handlers) HandleFX(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Reference.AllFX(r.Context())
	h.writeJSON(w, rows, err)
}

func (h *Handlers) HandleBonds(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Reference.AllBonds(r.Context())
	h.writeJSON(w, rows, err)
}

func (h *Handlers) HandleDesks(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Reference.AllDesks(r.Context())
	h.writeJSON(w, rows, err)
}

func (h *Handlers) HandleBooks(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Reference.AllBooks(r.Context())
	h.writeJSON(w, rows, err)
}

func (h *Handlers) HandleBondRecords(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Reference.AllBondRecords(r.Context())
	h.writeJSON(w, rows, err)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		h.logger.Error("read failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode failed", "error", err)
	}
}

// Package engine runs the alert pipeline: fetch spreadsheet sections,
// normalize them, refresh the record store, and pass candidates through the
// per-engine dedup namespaces before notifying.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/flowsentry/internal/config"
	"github.com/quantfold/flowsentry/internal/dedup"
	"github.com/quantfold/flowsentry/internal/logger"
	"github.com/quantfold/flowsentry/internal/models"
	"github.com/quantfold/flowsentry/internal/normalize"
	"github.com/quantfold/flowsentry/internal/notify"
	"github.com/quantfold/flowsentry/internal/sheets"
	"github.com/quantfold/flowsentry/internal/store"
)

// Logical source names under which feeds are stored.
const (
	SourceAllDay   = "allday"
	SourceSevenDay = "sevenday"
)

// NamespaceSignal scopes the remembered signal cell value.
const NamespaceSignal = "signal"

// Notifier delivers a formatted alert message.
type Notifier interface {
	Send(text string) error
}

// SheetReader is the slice of the spreadsheet client the engine consumes.
type SheetReader interface {
	FetchSection(ctx context.Context, spreadsheetID, a1Range string) ([]string, [][]string, error)
	FetchCell(ctx context.Context, spreadsheetID, a1Cell string) (string, error)
}

// Engine owns one polling pipeline.
type Engine struct {
	cfg      *config.Config
	sheets   SheetReader
	store    *store.Store
	filter   *dedup.Filter
	notifier Notifier
	now      func() time.Time

	refreshing atomic.Bool
}

// New creates an Engine. The notifier may be nil, in which case alerts are
// computed and deduplicated but not delivered.
func New(cfg *config.Config, sc SheetReader, st *store.Store, filter *dedup.Filter, notifier Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		sheets:   sc,
		store:    st,
		filter:   filter,
		notifier: notifier,
		now:      time.Now,
	}
}

// fetchFeed retrieves and normalizes both sides of a two-sided feed.
// Sections with a malformed range are skipped with a notice; transport
// failures propagate.
func (e *Engine) fetchFeed(ctx context.Context, feed config.FeedConfig, source string) ([]models.FlowRecord, error) {
	var records []models.FlowRecord
	sides := []struct {
		a1Range string
		side    models.Side
	}{
		{feed.BuyingRange, models.Buying},
		{feed.SellingRange, models.Selling},
	}
	for _, s := range sides {
		if s.a1Range == "" {
			continue
		}
		if err := sheets.ValidateRange(s.a1Range); err != nil {
			logger.Warn("Skipping %s %s section: %v", source, s.side, err)
			continue
		}
		headers, rows, err := e.sheets.FetchSection(ctx, e.cfg.Sheets.SpreadsheetID, s.a1Range)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s: %w", source, s.side, err)
		}
		records = append(records, normalize.BuildRecords(source, s.side, headers, rows, e.now())...)
	}
	return records, nil
}

// fetchFloor retrieves and normalizes every configured intraday section,
// keyed by section name. Intraday blocks have no side of their own and are
// stored as buying flow. A section whose fetch fails is left out of the map
// so the remaining sections still process; the failures come back joined.
func (e *Engine) fetchFloor(ctx context.Context) (map[string][]models.FlowRecord, error) {
	out := make(map[string][]models.FlowRecord, len(e.cfg.Sheets.Floor))
	var errs []error
	for _, section := range e.cfg.Sheets.Floor {
		if err := sheets.ValidateRange(section.Range); err != nil {
			logger.Warn("Skipping floor section %s: %v", section.Name, err)
			continue
		}
		headers, rows, err := e.sheets.FetchSection(ctx, e.cfg.Sheets.SpreadsheetID, section.Range)
		if err != nil {
			logger.Error("Floor section %s fetch failed, skipping this cycle: %v", section.Name, err)
			errs = append(errs, fmt.Errorf("fetch floor %s: %w", section.Name, err))
			continue
		}
		out[section.Name] = normalize.BuildRecords(section.Name, models.Buying, headers, rows, e.now())
	}
	return out, errors.Join(errs...)
}

// RefreshHistory reloads the historical feed unless it was already loaded
// today. Concurrent calls collapse to one refresh; the losers no-op.
func (e *Engine) RefreshHistory(ctx context.Context, force bool) error {
	if !e.refreshing.CompareAndSwap(false, true) {
		logger.Info("History refresh already running, skipping")
		return nil
	}
	defer e.refreshing.Store(false)

	if !force {
		loaded, err := e.store.IsLoadedToday(SourceAllDay)
		if err != nil {
			return err
		}
		if loaded {
			logger.Debug("History already loaded today")
			return nil
		}
	}

	records, err := e.fetchFeed(ctx, e.cfg.Sheets.AllDay, SourceAllDay)
	if err != nil {
		return err
	}
	if err := e.store.Reload(SourceAllDay, records); err != nil {
		return err
	}
	logger.Info("Reloaded %d historical records", len(records))
	return nil
}

// RunCycle performs one full poll. With dryRun set, candidates still flow
// through the dedup filters (seeding the seen-sets) but nothing is sent;
// the first cycle after a cold start runs this way so a restart does not
// replay the whole sheet as alerts.
//
// One feed's transport failure never aborts the others within a cycle: the
// failed feed's engines are skipped, its stored snapshot is left untouched,
// and the error surfaces joined with whatever else went wrong.
func (e *Engine) RunCycle(ctx context.Context, dryRun bool) error {
	cycleID := uuid.NewString()[:8]
	start := e.now()
	logger.Info("Cycle %s starting (dry_run=%v)", cycleID, dryRun)

	var errs []error
	if err := e.RefreshHistory(ctx, false); err != nil {
		logger.Error("History refresh failed, continuing with prior data: %v", err)
		errs = append(errs, fmt.Errorf("history refresh: %w", err))
	}

	nearTerm, nearErr := e.fetchFeed(ctx, e.cfg.Sheets.SevenDay, SourceSevenDay)
	if nearErr != nil {
		logger.Error("Near-term fetch failed, skipping its engines this cycle: %v", nearErr)
		errs = append(errs, nearErr)
	}
	floorSections, floorErr := e.fetchFloor(ctx)
	if floorErr != nil {
		errs = append(errs, floorErr)
	}

	reload := make(map[string][]models.FlowRecord, len(floorSections)+1)
	if nearErr == nil {
		reload[SourceSevenDay] = nearTerm
	}
	var floorAll []models.FlowRecord
	for name, records := range floorSections {
		reload[name] = records
		floorAll = append(floorAll, records...)
	}
	if len(reload) > 0 {
		if err := e.store.ReloadAll(reload); err != nil {
			errs = append(errs, fmt.Errorf("store reload: %w", err))
			return errors.Join(errs...)
		}
	}

	if e.cfg.Alerts.NoveltyEnabled {
		errs = append(errs, e.runNovelty(floorSections, dryRun))
	}
	if nearErr == nil {
		errs = append(errs, e.runThreshold(nearTerm, dryRun))
		if e.cfg.Alerts.ConfirmationEnabled {
			errs = append(errs, e.runConfirmation(nearTerm, floorAll, dryRun))
		}
		if e.cfg.Alerts.OppositeEnabled {
			errs = append(errs, e.runOpposite(nearTerm, e.store, dryRun))
		}
	}
	if e.cfg.Sheets.Signal.Enabled {
		errs = append(errs, e.runSignal(ctx, dryRun))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("Cycle %s completed in %v", cycleID, e.now().Sub(start))
	return nil
}

func (e *Engine) send(text string, dryRun bool) error {
	if dryRun || e.notifier == nil {
		return nil
	}
	return e.notifier.Send(text)
}

func (e *Engine) runNovelty(sections map[string][]models.FlowRecord, dryRun bool) error {
	var errs []error
	for name, records := range sections {
		candidates := BuildNoveltyCandidates(name, records)
		fresh, err := dedup.FilterNew(e.filter, candidates, NamespaceNovelty, NoveltyKey)
		if err != nil {
			errs = append(errs, fmt.Errorf("novelty dedup: %w", err))
			continue
		}
		logger.Debug("Novelty %s: %d candidates, %d new", name, len(candidates), len(fresh))
		for _, c := range fresh {
			if err := e.send(notify.FormatNovelty(c), dryRun); err != nil {
				errs = append(errs, fmt.Errorf("novelty send: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) runThreshold(records []models.FlowRecord, dryRun bool) error {
	candidates := BuildThresholdCandidates(records, e.cfg.Alerts.DollarThreshold, e.cfg.Alerts.QtyThreshold)
	fresh, err := dedup.FilterNew(e.filter, candidates, NamespaceThreshold, ThresholdKey)
	if err != nil {
		return fmt.Errorf("threshold dedup: %w", err)
	}
	logger.Debug("Threshold: %d candidates, %d new", len(candidates), len(fresh))
	var errs []error
	for _, c := range fresh {
		if err := e.send(notify.FormatThreshold(c), dryRun); err != nil {
			errs = append(errs, fmt.Errorf("threshold send: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) runConfirmation(nearTerm, floor []models.FlowRecord, dryRun bool) error {
	confirmations, err := BuildConfirmations(nearTerm, floor, e.store, SourceAllDay,
		e.cfg.Alerts.TopExpiries, e.cfg.Alerts.ConfirmationMinTotal)
	if err != nil {
		return fmt.Errorf("confirmation build: %w", err)
	}
	fresh, err := dedup.FilterNew(e.filter, confirmations, NamespaceConfirmation, ConfirmationKey)
	if err != nil {
		return fmt.Errorf("confirmation dedup: %w", err)
	}
	logger.Debug("Confirmation: %d candidates, %d new", len(confirmations), len(fresh))
	var errs []error
	for _, c := range fresh {
		if err := e.send(notify.FormatConfirmation(c), dryRun); err != nil {
			errs = append(errs, fmt.Errorf("confirmation send: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) runOpposite(records []models.FlowRecord, reader OppositeReader, dryRun bool) error {
	// Probe each row against history once per day, whether or not it matches.
	// The checked set commits only after the whole probe pass succeeds, so a
	// store error does not forfeit the rows' checks for the rest of the day.
	unchecked, commit, err := dedup.Stage(e.filter, records, NamespaceOppositeChecked, CheckedKey)
	if err != nil {
		return fmt.Errorf("opposite checked-set: %w", err)
	}
	candidates, err := BuildOpposites(unchecked, reader, SourceAllDay)
	if err != nil {
		return fmt.Errorf("opposite build: %w", err)
	}
	if err := commit(); err != nil {
		return fmt.Errorf("opposite checked-set: %w", err)
	}
	fresh, err := dedup.FilterNew(e.filter, candidates, NamespaceOpposite, OppositeKey)
	if err != nil {
		return fmt.Errorf("opposite dedup: %w", err)
	}
	logger.Debug("Opposite: %d rows probed, %d matched, %d new", len(unchecked), len(candidates), len(fresh))
	var errs []error
	for _, c := range fresh {
		if err := e.send(notify.FormatOpposite(c), dryRun); err != nil {
			errs = append(errs, fmt.Errorf("opposite send: %w", err))
		}
	}
	return errors.Join(errs...)
}

// runSignal alerts when the watched cell's value differs from the remembered
// one. The remembered value survives day boundaries: the signal alerts on
// transition, not on schedule.
func (e *Engine) runSignal(ctx context.Context, dryRun bool) error {
	current, err := e.sheets.FetchCell(ctx, e.cfg.Sheets.SpreadsheetID, e.cfg.Sheets.Signal.Cell)
	if err != nil {
		return fmt.Errorf("signal fetch: %w", err)
	}
	previous, err := e.filter.LoadValue(NamespaceSignal)
	if err != nil {
		return fmt.Errorf("signal state: %w", err)
	}
	if current == previous || current == "" {
		return nil
	}
	if err := e.filter.SaveValue(NamespaceSignal, current); err != nil {
		return fmt.Errorf("signal state: %w", err)
	}
	logger.Info("Signal %s changed: %q -> %q", e.cfg.Sheets.Signal.Label, previous, current)
	return e.send(notify.FormatSignal(e.cfg.Sheets.Signal.Label, previous, current), dryRun)
}

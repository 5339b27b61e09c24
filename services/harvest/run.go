package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"evcs-harvester/lib/notify"
	"evcs-harvester/lib/scrapers/evindustry"
)

var tracer = otel.Tracer("services/harvest")

const exportBaseTimeLayout = "January_02_2006_15_04"

// State tracks how far a run got, mostly for logs and the final
// result.
type State string

const (
	StateInit        State = "INIT"
	StateDriverReady State = "DRIVER_READY"
	StateScraped     State = "SCRAPED"
	StateSavedRaw    State = "SAVED_RAW"
	StateExported    State = "EXPORTED"
	StateNotified    State = "NOTIFIED"
	StateFailed      State = "FAILED"
)

// Source produces the raw charge point batches for a run. The real one
// drives a browser; tests substitute their own.
type Source interface {
	Load(ctx context.Context) (batches [][]map[string]any, warnings []string, err error)
	Close()
}

type siteSource struct {
	client *evindustry.Client
}

func (s siteSource) Load(ctx context.Context) ([][]map[string]any, []string, error) {
	err := s.client.LoadListings(ctx)
	if err != nil {
		return nil, nil, err
	}

	token, err := s.client.CsrfToken(ctx)
	if err != nil {
		return nil, nil, err
	}
	slog.InfoContext(ctx, "page session established", "csrf_token_length", len(token))

	return s.client.Harvest(ctx)
}

func (s siteSource) Close() {
	s.client.Close()
}

// Result is the final outcome of a run. Err is nil iff the run
// produced exports.
type Result struct {
	RunID        string
	StartedAt    time.Time
	State        State
	Stations     int
	Chargepoints int
	Skipped      int
	Manifest     []string
	Warnings     []string
	Err          error
}

// Runner executes one full harvest: scrape, aggregate, enrich, export,
// notify.
type Runner struct {
	Config   Config
	Notifier notify.Notifier

	// newSource is swapped out in tests
	newSource func(ctx context.Context) (Source, error)
}

func NewRunner(c Config) *Runner {
	return &Runner{
		Config:   c,
		Notifier: notify.New(c.Notify),
		newSource: func(ctx context.Context) (Source, error) {
			client, err := evindustry.NewClient(ctx, evindustry.ClientOptions{
				TargetURL: c.TargetURL,
				Browser:   c.BrowserOptions(),
				Settle:    c.Settle(),
			})
			if err != nil {
				return nil, err
			}
			return siteSource{client: client}, nil
		},
	}
}

func (r *Runner) Run(ctx context.Context) (result Result) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	result.State = StateInit
	result.RunID, _ = random.String(8)
	result.StartedAt = time.Now().UTC()
	slog.InfoContext(ctx, "starting harvest",
		"run_id", result.RunID, "target", r.Config.TargetURL)

	fail := func(stage string, err error) Result {
		err = fmt.Errorf("%s: %w", stage, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		slog.ErrorContext(ctx, "harvest failed",
			"run_id", result.RunID, "state", result.State, "err", err)

		result.Err = err
		result.State = StateFailed
		r.notifyOutcome(ctx, &result)
		return result
	}

	source, err := r.newSource(ctx)
	if err != nil {
		return fail("failed to start browser", err)
	}
	defer func() {
		source.Close()
		slog.DebugContext(ctx, "browser session closed", "run_id", result.RunID)
	}()
	result.State = StateDriverReady

	batches, warnings, err := source.Load(ctx)
	if err != nil {
		return fail("failed to scrape listings", err)
	}
	result.State = StateScraped
	result.Warnings = warnings

	set := Aggregate(batches)
	result.Skipped = set.Skipped()
	if set.Len() == 0 {
		return fail("aggregation", fmt.Errorf("no station data found"))
	}
	Enrich(set)
	result.Warnings = append(result.Warnings, SimilarNameWarnings(set)...)
	result.Stations = set.Len()
	result.Chargepoints = set.Chargepoints()
	slog.InfoContext(ctx, "aggregated stations",
		"run_id", result.RunID,
		"stations", result.Stations,
		"chargepoints", result.Chargepoints,
		"skipped", result.Skipped)

	if err := os.MkdirAll(r.Config.OutputDir, 0o755); err != nil {
		return fail("failed to create output directory", err)
	}

	base := "evcs_data_" + result.StartedAt.Format(exportBaseTimeLayout)
	rawPath, err := r.writeRaw(set, base)
	if err != nil {
		return fail("failed to save raw data", err)
	}
	result.Manifest = append(result.Manifest, rawPath)
	result.State = StateSavedRaw

	exporter := Exporter{OutputDir: r.Config.OutputDir}
	exported, err := exporter.Export(set, base)
	if err != nil {
		return fail("export", err)
	}
	result.Manifest = append(result.Manifest, exported...)
	result.State = StateExported
	slog.InfoContext(ctx, "exports written",
		"run_id", result.RunID, "files", len(result.Manifest))

	r.notifyOutcome(ctx, &result)
	return result
}

// writeRaw dumps the aggregated stations, charge points included, as
// pretty-printed JSON next to the tabular exports.
func (r *Runner) writeRaw(set *StationSet, base string) (string, error) {
	stations := set.Stations()
	out := make([]map[string]any, 0, len(stations))
	for _, station := range stations {
		record := make(map[string]any, len(station.Fields)+1)
		for key, value := range station.Fields {
			record[key] = value
		}
		record["chargepoints"] = station.Chargepoints
		out = append(out, record)
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.Config.OutputDir, base+".json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// notifyOutcome sends the run report. Delivery problems are logged but
// never override the run's own outcome.
func (r *Runner) notifyOutcome(ctx context.Context, result *Result) {
	msg := ComposeReport(ctx, Summarize(*result), r.Config.Notify.Recipient)
	if err := r.Notifier.Send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to send run report",
			"run_id", result.RunID, "err", err)
		return
	}
	result.State = StateNotified
}

// Summarize converts a result into the report summary used for console
// output.
func Summarize(result Result) Summary {
	return Summary{
		RunID:        result.RunID,
		Timestamp:    result.StartedAt,
		Stations:     result.Stations,
		Chargepoints: result.Chargepoints,
		Skipped:      result.Skipped,
		Manifest:     result.Manifest,
		Warnings:     result.Warnings,
		Err:          result.Err,
	}
}

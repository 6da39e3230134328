package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/V4T54L/safewatch/internal/adapter/metrics"
	"github.com/V4T54L/safewatch/internal/domain"
)

// ItemState is the lifecycle position of one input file.
type ItemState string

const (
	StateDiscovered  ItemState = "discovered"
	StateClassifying ItemState = "classifying"
	StateRetained    ItemState = "retained"
	StateDiscarded   ItemState = "discarded"
	StateFailed      ItemState = "failed"
)

// ErrFileNotFound is returned by ProcessFile for a missing input.
var ErrFileNotFound = errors.New("file not found")

// PostAnalyzer analyses one post.
type PostAnalyzer interface {
	Analyze(ctx context.Context, post domain.RawScrapedPost) (Outcome, error)
}

// Observer is a source of newly arrived, settled item paths.
type Observer interface {
	Events() <-chan string
}

// ItemResult records what happened to one input file.
type ItemResult struct {
	Path     string
	PostID   string
	State    ItemState
	Location string
	Record   *domain.AnalysisRecord
	Err      error
}

// Summary counts results by terminal state.
type Summary struct {
	Total     int
	Retained  int
	Discarded int
	Failed    int
}

// Summarize counts results by state.
func Summarize(results []ItemResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.State {
		case StateRetained:
			s.Retained++
		case StateDiscarded:
			s.Discarded++
		case StateFailed:
			s.Failed++
		}
	}
	return s
}

// Orchestrator drives posts from disk through a PostAnalyzer, one at a time.
// Batch, single and watch mode share processItem.
type Orchestrator struct {
	analyzer  PostAnalyzer
	queue     *Queue
	publisher domain.EventPublisher
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. publisher and m may be nil.
func NewOrchestrator(analyzer PostAnalyzer, queue *Queue, publisher domain.EventPublisher, m *metrics.PipelineMetrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		analyzer:  analyzer,
		queue:     queue,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With("component", "orchestrator"),
	}
}

// DiscoverFiles returns every .json file under root in lexical walk order.
// A missing root yields no files and no error.
func DiscoverFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".json") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// ProcessAll processes every .json file under root sequentially. It returns
// one result per discovered file; per-item failures never abort the run.
// Items not started because ctx ended are reported as failed.
func (o *Orchestrator) ProcessAll(ctx context.Context, root string) ([]ItemResult, error) {
	files, err := DiscoverFiles(root)
	if err != nil {
		return nil, err
	}
	if files == nil {
		o.logger.Warn("scraped posts folder not found", "path", root)
		return []ItemResult{}, nil
	}
	o.logger.Info("starting batch processing", "root", root, "files", len(files))

	results := make([]ItemResult, 0, len(files))
	for _, p := range files {
		results = append(results, o.queued(ctx, p))
	}

	s := Summarize(results)
	o.logger.Info("batch processing completed",
		"processed", s.Total,
		"retained", s.Retained,
		"discarded", s.Discarded,
		"failed", s.Failed,
	)
	return results, nil
}

// ProcessFile processes one named file and returns its error directly.
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) (ItemResult, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return ItemResult{Path: path, State: StateFailed, Err: err}, err
	}
	res := o.queued(ctx, path)
	return res, res.Err
}

// Watch processes each path the observer emits until ctx ends or the
// observer closes. Paths that vanished during the settle delay are skipped.
// onResult, if not nil, is called after every processed item.
func (o *Orchestrator) Watch(ctx context.Context, obs Observer, onResult func(ItemResult)) error {
	o.logger.Info("watching for new files")
	events := obs.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := os.Stat(p); err != nil {
				o.logger.Debug("skipping vanished file", "path", p)
				continue
			}
			o.logger.Info("new file detected", "path", p)
			res := o.queued(ctx, p)
			if onResult != nil {
				onResult(res)
			}
		}
	}
}

func (o *Orchestrator) queued(ctx context.Context, path string) ItemResult {
	var res ItemResult
	err := o.queue.Do(ctx, func(ctx context.Context) error {
		res = o.processItem(ctx, path)
		return nil
	})
	if err != nil {
		res = ItemResult{Path: path, State: StateFailed, Err: err}
		o.record(res)
	}
	return res
}

func (o *Orchestrator) processItem(ctx context.Context, path string) ItemResult {
	res := ItemResult{Path: path, State: StateDiscovered}

	post, err := readPost(path)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		o.logger.Error("failed to read scraped post", "path", path, "error", err)
		o.record(res)
		return res
	}
	res.PostID = post.PostID

	filename := filepath.Base(path)
	o.publish(ctx, domain.NewNotificationEvent(
		domain.EventAnalysisStarted,
		"Starting analysis of: "+filename,
		map[string]any{"filename": filename},
	))

	res.State = StateClassifying
	out, err := o.analyzer.Analyze(ctx, post)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		o.logger.Error("failed to process file", "path", path, "error", err)
		o.record(res)
		return res
	}

	rec := out.Record
	res.Record = &rec
	if out.Retained() {
		res.State = StateRetained
		res.Location = out.Location
	} else {
		res.State = StateDiscarded
	}
	o.record(res)
	return res
}

func (o *Orchestrator) publish(ctx context.Context, event domain.NotificationEvent) {
	if o.publisher != nil {
		o.publisher.Publish(ctx, event)
	}
}

func (o *Orchestrator) record(res ItemResult) {
	if o.metrics != nil {
		o.metrics.ItemsTotal.WithLabelValues(string(res.State)).Inc()
	}
}

func readPost(path string) (domain.RawScrapedPost, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RawScrapedPost{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var post domain.RawScrapedPost
	if err := json.Unmarshal(data, &post); err != nil {
		return domain.RawScrapedPost{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return post, nil
}

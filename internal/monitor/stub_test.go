package monitor

import (
	"context"
	"time"

	"marketpulse/internal/analysis"
	"marketpulse/internal/filter"
	"marketpulse/internal/ingest"
	"marketpulse/internal/models"
	"marketpulse/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
type stubRepo struct {
	saved    []models.JudgedItem
	saveErr  error
	items    []models.JudgedItem
	listErr  error
	stats    repository.DailyStats
	statsErr error
	marked   []uint64
	markErr  error
}

func (s *stubRepo) SaveBatch(ctx context.Context, items []models.JudgedItem) (int, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	s.saved = append(s.saved, items...)
	return len(items), nil
}

func (s *stubRepo) ListDailyItems(ctx context.Context, date time.Time, minImpact int) ([]models.JudgedItem, error) {
	return s.items, s.listErr
}

func (s *stubRepo) DailyStats(ctx context.Context, date time.Time) (repository.DailyStats, error) {
	return s.stats, s.statsErr
}

func (s *stubRepo) MarkReported(ctx context.Context, ids []uint64) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, ids...)
	return nil
}

func (s *stubRepo) DeleteReportedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type stubAnalyzer struct {
	batch     analysis.BatchResult
	lastText  string
	lastCount int

	narrative string
	narrErr   error

	doc      filter.Document
	trendErr error
}

func (s *stubAnalyzer) AnalyzeBatch(ctx context.Context, batchText string, count int) analysis.BatchResult {
	s.lastText = batchText
	s.lastCount = count
	return s.batch
}

func (s *stubAnalyzer) DigestNarrative(ctx context.Context, contextText string, stats repository.DailyStats) (string, error) {
	return s.narrative, s.narrErr
}

func (s *stubAnalyzer) TrendKeywords(ctx context.Context, asOf time.Time) (filter.Document, error) {
	return s.doc, s.trendErr
}

// ctxAwareNotifier records the context state it was invoked with.
type ctxAwareNotifier struct {
	sent    []string
	ctxErrs []error
}

func (n *ctxAwareNotifier) Name() string { return "ctxaware" }

func (n *ctxAwareNotifier) Send(ctx context.Context, content string) error {
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	n.sent = append(n.sent, content)
	return nil
}

// panicAnalyzer simulates an SDK blowing up inside a job body.
type panicAnalyzer struct {
	stubAnalyzer
}

func (p *panicAnalyzer) AnalyzeBatch(ctx context.Context, batchText string, count int) analysis.BatchResult {
	panic("sdk failure")
}

type stubNotifier struct {
	sent []string
	err  error
}

func (s *stubNotifier) Name() string { return "stub" }

func (s *stubNotifier) Send(ctx context.Context, content string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, content)
	return nil
}

type stubSource struct {
	subErr     error
	subscribed []int64
	closed     bool
}

func (s *stubSource) Subscribe(ctx context.Context, sourceIDs []int64, fn ingest.Handler) (int, error) {
	if s.subErr != nil {
		return 0, s.subErr
	}
	s.subscribed = sourceIDs
	return len(sourceIDs), nil
}

func (s *stubSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"marketpulse/internal/analysis"
	"marketpulse/internal/config"
	"marketpulse/internal/filter"
	"marketpulse/internal/ingest"
	"marketpulse/internal/models"
	"marketpulse/internal/queue"
	"marketpulse/internal/repository"
)

func newTestEngine(t *testing.T, rules string) *filter.Engine {
	t.Helper()
	dir := t.TempDir()
	if rules != "" {
		if err := os.WriteFile(filepath.Join(dir, filter.BaseRulesFile), []byte(rules), 0o644); err != nil {
			t.Fatalf("write rules: %v", err)
		}
	}
	e := filter.NewEngine(config.FilterConfig{DataDir: dir, MinLength: 10, MaxURLCount: 3}, nil)
	if err := e.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return e
}

func newTestMonitor(t *testing.T, repo *stubRepo, az *stubAnalyzer, nt *stubNotifier) *Monitor {
	t.Helper()
	return &Monitor{
		Source:   &stubSource{},
		Engine:   newTestEngine(t, ""),
		Queue:    queue.NewPendingQueue(10),
		Analyzer: az,
		Notifier: nt,
		Repo:     repo,
		Jobs: config.JobsConfig{
			BatchInterval:   time.Minute,
			ImpactThreshold: 4,
		},
		Location: time.UTC,
		Logger:   zap.NewNop(),
	}
}

func TestOnMessageQueuesAndCounts(t *testing.T) {
	m := newTestMonitor(t, &stubRepo{}, &stubAnalyzer{}, &stubNotifier{})
	m.Engine = newTestEngine(t, `{"EXCLUDED": ["广告"]}`)

	m.onMessage(ingest.Message{Text: "央行宣布降准，释放长期资金支持实体经济"})
	m.onMessage(ingest.Message{Text: "点击查看广告合作详情，联系客服了解更多"})
	m.onMessage(ingest.Message{Text: "   "})

	snap := m.Stats.Snapshot()
	if snap.Total != 2 {
		t.Fatalf("total=%d want=2", snap.Total)
	}
	if snap.Queued != 1 {
		t.Fatalf("queued=%d want=1", snap.Queued)
	}
	if snap.Excluded != 1 {
		t.Fatalf("excluded=%d want=1", snap.Excluded)
	}
	if m.Queue.Len() != 1 {
		t.Fatalf("queue len=%d want=1", m.Queue.Len())
	}
}

func TestOnMessageRecoversFromPanic(t *testing.T) {
	m := newTestMonitor(t, &stubRepo{}, &stubAnalyzer{}, &stubNotifier{})
	m.Engine = nil

	// A panic inside classification must not escape into the source loop.
	m.onMessage(ingest.Message{Text: "一条足够长的消息内容用来触发分类流程"})

	if total := m.Stats.Snapshot().Total; total != 1 {
		t.Fatalf("total=%d want=1", total)
	}
}

func batchResult(items ...analysis.Item) analysis.BatchResult {
	return analysis.BatchResult{Items: items, Total: len(items), Success: true}
}

func TestProcessBatchSavesAndPushes(t *testing.T) {
	repo := &stubRepo{}
	nt := &stubNotifier{}
	az := &stubAnalyzer{batch: batchResult(
		analysis.Item{Index: 1, Summary: "central bank cuts rates", Direction: "bullish", Magnitude: 8, Sectors: []string{"banking"}},
		analysis.Item{Index: 2, Summary: "sector update", Direction: "neutral", Magnitude: 5},
		analysis.Item{Index: 3, Summary: "minor note", Direction: "neutral", Magnitude: 2},
	)}
	m := newTestMonitor(t, repo, az, nt)

	m.Queue.Offer(models.QueuedMessage{Text: "msg one", SourceID: 11, SourceTitle: "Channel A", Timestamp: time.Now()})
	m.Queue.Offer(models.QueuedMessage{Text: "msg two", SourceID: 22, SourceTitle: "Channel B", Timestamp: time.Now()})
	m.Queue.Offer(models.QueuedMessage{Text: "msg three", SourceID: 33, SourceTitle: "Channel C", Timestamp: time.Now()})

	m.processBatch(context.Background())

	snap := m.Stats.Snapshot()
	if snap.Analyzed != 3 {
		t.Fatalf("analyzed=%d want=3", snap.Analyzed)
	}
	if snap.Valuable != 2 {
		t.Fatalf("valuable=%d want=2", snap.Valuable)
	}
	if snap.Pushed != 1 {
		t.Fatalf("pushed=%d want=1", snap.Pushed)
	}
	if len(repo.saved) != 2 {
		t.Fatalf("saved=%d want=2", len(repo.saved))
	}
	if repo.saved[0].SourceID != 11 || repo.saved[0].SourceTitle != "Channel A" {
		t.Fatalf("source attribution=%+v", repo.saved[0])
	}
	if len(nt.sent) != 1 {
		t.Fatalf("sent=%d want=1", len(nt.sent))
	}
	if m.Queue.Len() != 0 {
		t.Fatalf("queue len=%d want=0", m.Queue.Len())
	}
}

func TestProcessBatchAnalysisFailureDropsBatch(t *testing.T) {
	repo := &stubRepo{}
	nt := &stubNotifier{}
	az := &stubAnalyzer{batch: analysis.BatchResult{Success: false, Err: "gateway timeout"}}
	m := newTestMonitor(t, repo, az, nt)

	for i := 0; i < 5; i++ {
		m.Queue.Offer(models.QueuedMessage{Text: "pending message", Timestamp: time.Now()})
	}
	m.processBatch(context.Background())

	snap := m.Stats.Snapshot()
	if snap.Analyzed != 5 {
		t.Fatalf("analyzed=%d want=5", snap.Analyzed)
	}
	if snap.Valuable != 0 || snap.Pushed != 0 {
		t.Fatalf("valuable=%d pushed=%d want zero", snap.Valuable, snap.Pushed)
	}
	if len(repo.saved) != 0 || len(nt.sent) != 0 {
		t.Fatalf("saved=%d sent=%d want zero", len(repo.saved), len(nt.sent))
	}
	// Failed batches are not re-queued.
	if m.Queue.Len() != 0 {
		t.Fatalf("queue len=%d want=0", m.Queue.Len())
	}
}

func TestProcessBatchPersistFailureSkipsPush(t *testing.T) {
	repo := &stubRepo{saveErr: errors.New("db down")}
	nt := &stubNotifier{}
	az := &stubAnalyzer{batch: batchResult(
		analysis.Item{Index: 1, Summary: "big event", Direction: "bearish", Magnitude: 9},
	)}
	m := newTestMonitor(t, repo, az, nt)

	m.Queue.Offer(models.QueuedMessage{Text: "pending message", Timestamp: time.Now()})
	m.processBatch(context.Background())

	if len(nt.sent) != 0 {
		t.Fatalf("sent=%d want=0 when persist fails", len(nt.sent))
	}
	if pushed := m.Stats.Snapshot().Pushed; pushed != 0 {
		t.Fatalf("pushed=%d want=0", pushed)
	}
}

func TestProcessBatchNotifyFailureKeepsSave(t *testing.T) {
	repo := &stubRepo{}
	nt := &stubNotifier{err: errors.New("webhook 500")}
	az := &stubAnalyzer{batch: batchResult(
		analysis.Item{Index: 1, Summary: "big event", Direction: "bullish", Magnitude: 7},
	)}
	m := newTestMonitor(t, repo, az, nt)

	m.Queue.Offer(models.QueuedMessage{Text: "pending message", Timestamp: time.Now()})
	m.processBatch(context.Background())

	if len(repo.saved) != 1 {
		t.Fatalf("saved=%d want=1", len(repo.saved))
	}
	if pushed := m.Stats.Snapshot().Pushed; pushed != 0 {
		t.Fatalf("pushed=%d want=0", pushed)
	}
}

func TestProcessBatchNothingAboveThreshold(t *testing.T) {
	repo := &stubRepo{}
	nt := &stubNotifier{}
	az := &stubAnalyzer{batch: batchResult(
		analysis.Item{Index: 1, Summary: "noise", Direction: "neutral", Magnitude: 2},
	)}
	m := newTestMonitor(t, repo, az, nt)

	m.Queue.Offer(models.QueuedMessage{Text: "pending message", Timestamp: time.Now()})
	m.processBatch(context.Background())

	if len(repo.saved) != 0 || len(nt.sent) != 0 {
		t.Fatalf("saved=%d sent=%d want zero", len(repo.saved), len(nt.sent))
	}
}

func TestBuildBatchText(t *testing.T) {
	ts := time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC)
	long := strings.Repeat("长", 250)
	text := buildBatchText([]models.QueuedMessage{
		{Text: "first message", SourceTitle: "Channel A", Timestamp: ts},
		{Text: long, SourceTitle: "Channel B", Timestamp: ts.Add(time.Minute)},
	})

	if !strings.Contains(text, "[1] [14:05] Channel A: first message") {
		t.Fatalf("text=%q", text)
	}
	if !strings.Contains(text, "[2] [14:06] Channel B: ") {
		t.Fatalf("text=%q", text)
	}
	if !strings.Contains(text, strings.Repeat("长", 200)+"...") {
		t.Fatal("long message not clipped at 200 runes")
	}
	if strings.Contains(text, strings.Repeat("长", 201)) {
		t.Fatal("clip exceeded 200 runes")
	}
}

func TestFormatBatchNotificationSortsByMagnitude(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC)
	text := formatBatchNotification([]models.JudgedItem{
		{Summary: "minor", ImpactDirection: "neutral", ImpactMagnitude: 4},
		{Summary: "major", ImpactDirection: "bearish", ImpactMagnitude: 9, ActionSuggestion: "reduce exposure"},
	}, now)

	major := strings.Index(text, "major")
	minor := strings.Index(text, "minor")
	if major < 0 || minor < 0 || major > minor {
		t.Fatalf("ordering wrong: %q", text)
	}
	if !strings.Contains(text, "📉 [9/10] major") {
		t.Fatalf("text=%q", text)
	}
	if !strings.Contains(text, "Action: reduce exposure") {
		t.Fatalf("text=%q", text)
	}
}

func TestRunDigestEmptyDaySkips(t *testing.T) {
	repo := &stubRepo{}
	nt := &stubNotifier{}
	m := newTestMonitor(t, repo, &stubAnalyzer{}, nt)

	if err := m.runDigest(context.Background()); err != nil {
		t.Fatalf("runDigest: %v", err)
	}
	if len(nt.sent) != 0 {
		t.Fatalf("sent=%d want=0 for empty day", len(nt.sent))
	}
	if len(repo.marked) != 0 {
		t.Fatalf("marked=%v want none", repo.marked)
	}
}

func TestRunDigestSendsAndMarks(t *testing.T) {
	repo := &stubRepo{
		items: []models.JudgedItem{
			{ID: 1, Summary: "rate cut announced", ImpactDirection: "bullish", ImpactMagnitude: 9, ActionSuggestion: "watch banks"},
			{ID: 2, Summary: "sector rotation", ImpactDirection: "neutral", ImpactMagnitude: 5},
		},
		stats: repository.DailyStats{
			Date:          "2025-03-09",
			TotalCount:    10,
			ValuableCount: 2,
			BullishCount:  1,
			Sectors:       []repository.SectorCount{{Name: "banking", Count: 3}},
		},
	}
	nt := &stubNotifier{}
	az := &stubAnalyzer{narrative: "Markets rallied on the surprise rate cut."}
	m := newTestMonitor(t, repo, az, nt)

	if err := m.runDigest(context.Background()); err != nil {
		t.Fatalf("runDigest: %v", err)
	}
	if len(nt.sent) != 1 {
		t.Fatalf("sent=%d want=1", len(nt.sent))
	}
	report := nt.sent[0]
	if !strings.Contains(report, "Daily Market Digest") {
		t.Fatalf("report=%q", report)
	}
	if !strings.Contains(report, "Markets rallied") {
		t.Fatal("narrative missing from report")
	}
	if !strings.Contains(report, "rate cut announced") {
		t.Fatal("high impact item missing from report")
	}
	if !strings.Contains(report, "banking(3)") {
		t.Fatal("sector ranking missing from report")
	}
	if len(repo.marked) != 2 || repo.marked[0] != 1 || repo.marked[1] != 2 {
		t.Fatalf("marked=%v want=[1 2]", repo.marked)
	}
}

func TestRunDigestNarrativeFailure(t *testing.T) {
	repo := &stubRepo{
		items: []models.JudgedItem{{ID: 1, Summary: "event", ImpactMagnitude: 6}},
	}
	nt := &stubNotifier{}
	az := &stubAnalyzer{narrErr: errors.New("gateway down")}
	m := newTestMonitor(t, repo, az, nt)

	if err := m.runDigest(context.Background()); err == nil {
		t.Fatal("expected error when narrative fails")
	}
	if len(nt.sent) != 0 {
		t.Fatalf("sent=%d want=0", len(nt.sent))
	}
	if len(repo.marked) != 0 {
		t.Fatalf("marked=%v want none", repo.marked)
	}
}

func TestRunDigestMarkFailureDoesNotError(t *testing.T) {
	// The digest already went out; marking failures must not trigger a
	// retry that would push it twice.
	repo := &stubRepo{
		items:   []models.JudgedItem{{ID: 1, Summary: "event", ImpactMagnitude: 6}},
		markErr: errors.New("db down"),
	}
	nt := &stubNotifier{}
	az := &stubAnalyzer{narrative: "quiet day"}
	m := newTestMonitor(t, repo, az, nt)

	if err := m.runDigest(context.Background()); err != nil {
		t.Fatalf("runDigest: %v", err)
	}
	if len(nt.sent) != 1 {
		t.Fatalf("sent=%d want=1", len(nt.sent))
	}
}

func TestRunTrendRefreshesOverlay(t *testing.T) {
	az := &stubAnalyzer{doc: filter.Document{
		High:   map[string][]string{"热点": {"quantum", "fusion"}},
		Medium: map[string][]string{"跟踪": {"robotics"}},
	}}
	m := newTestMonitor(t, &stubRepo{}, az, &stubNotifier{})

	if err := m.runTrend(context.Background()); err != nil {
		t.Fatalf("runTrend: %v", err)
	}

	if _, err := os.Stat(filepath.Join(m.Engine.DataDir(), filter.DynamicRulesFile)); err != nil {
		t.Fatalf("overlay file missing: %v", err)
	}
	high, medium, _ := m.Engine.Counts()
	if high != 2 || medium != 1 {
		t.Fatalf("counts=(%d,%d) want=(2,1)", high, medium)
	}
}

func TestRunTrendGatewayFailureKeepsRules(t *testing.T) {
	az := &stubAnalyzer{trendErr: errors.New("gateway down")}
	m := newTestMonitor(t, &stubRepo{}, az, &stubNotifier{})

	if err := m.runTrend(context.Background()); err == nil {
		t.Fatal("expected error from failed refresh")
	}
	if _, err := os.Stat(filepath.Join(m.Engine.DataDir(), filter.DynamicRulesFile)); !os.IsNotExist(err) {
		t.Fatal("overlay must not be written on gateway failure")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	src := &stubSource{}
	m := newTestMonitor(t, &stubRepo{}, &stubAnalyzer{
		doc: filter.Document{High: map[string][]string{"热点": {"quantum"}}},
	}, &stubNotifier{})
	m.Source = src
	m.Channels = []int64{1, 2}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.Running() {
		t.Fatal("monitor should be running")
	}
	// Second start is a no-op.
	if err := m.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}

	m.Stop()
	if m.Running() {
		t.Fatal("monitor should be stopped")
	}
	if !src.closed {
		t.Fatal("source should be closed")
	}
	// Second stop is a no-op.
	m.Stop()
}

func TestStartZeroSubscribedSourcesFails(t *testing.T) {
	// Subscribe can succeed while resolving nothing (every channel
	// unreachable); the monitor must not come up listening to nobody.
	src := &stubSource{}
	m := newTestMonitor(t, &stubRepo{}, &stubAnalyzer{}, &stubNotifier{})
	m.Source = src
	m.Channels = nil

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error with zero subscribed sources")
	}
	if m.Running() {
		t.Fatal("monitor must not be running after zero-source start")
	}
	// A later start with resolvable sources still works.
	m.Channels = []int64{1}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Stop()
}

func TestBatchCycleCompletesUnderCancelledContext(t *testing.T) {
	repo := &stubRepo{}
	nt := &ctxAwareNotifier{}
	az := &stubAnalyzer{batch: batchResult(
		analysis.Item{Index: 1, Summary: "big event", Direction: "bullish", Magnitude: 8},
	)}
	m := newTestMonitor(t, repo, az, &stubNotifier{})
	m.Notifier = nt
	m.Queue.Offer(models.QueuedMessage{Text: "pending message", Timestamp: time.Now()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A flush already underway when shutdown lands must still persist and
	// notify; cancellation only takes effect at the tick boundary.
	err := m.runCycle(ctx, "batch_flush", func(ctx context.Context) error {
		m.processBatch(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("saved=%d want=1", len(repo.saved))
	}
	if len(nt.sent) != 1 {
		t.Fatalf("sent=%d want=1", len(nt.sent))
	}
	if nt.ctxErrs[0] != nil {
		t.Fatalf("notifier saw cancelled context: %v", nt.ctxErrs[0])
	}
	if pushed := m.Stats.Snapshot().Pushed; pushed != 1 {
		t.Fatalf("pushed=%d want=1", pushed)
	}
}

func TestDigestCycleCompletesUnderCancelledContext(t *testing.T) {
	repo := &stubRepo{
		items: []models.JudgedItem{{ID: 1, Summary: "event", ImpactMagnitude: 6}},
	}
	nt := &ctxAwareNotifier{}
	az := &stubAnalyzer{narrative: "quiet day"}
	m := newTestMonitor(t, repo, az, &stubNotifier{})
	m.Notifier = nt

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.runCycle(ctx, "daily_digest", m.runDigest); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(nt.sent) != 1 {
		t.Fatalf("sent=%d want=1", len(nt.sent))
	}
	if nt.ctxErrs[0] != nil {
		t.Fatalf("notifier saw cancelled context: %v", nt.ctxErrs[0])
	}
	if len(repo.marked) != 1 {
		t.Fatalf("marked=%v want one id", repo.marked)
	}
}

func TestCycleRecoversFromPanic(t *testing.T) {
	nt := &stubNotifier{}
	m := newTestMonitor(t, &stubRepo{}, &stubAnalyzer{}, nt)
	m.Analyzer = &panicAnalyzer{}
	m.Queue.Offer(models.QueuedMessage{Text: "pending message", Timestamp: time.Now()})

	err := m.runCycle(context.Background(), "batch_flush", func(ctx context.Context) error {
		m.processBatch(ctx)
		return nil
	})
	if err == nil {
		t.Fatal("expected the panic to surface as a cycle failure")
	}
	if !strings.Contains(err.Error(), "panic") {
		t.Fatalf("err=%v", err)
	}
	if len(nt.sent) != 0 {
		t.Fatalf("sent=%d want=0", len(nt.sent))
	}
	// The monitor stays usable for the next cycle.
	m.Analyzer = &stubAnalyzer{batch: batchResult(
		analysis.Item{Index: 1, Summary: "next event", Direction: "neutral", Magnitude: 5},
	)}
	m.Queue.Offer(models.QueuedMessage{Text: "another message", Timestamp: time.Now()})
	if err := m.runCycle(context.Background(), "batch_flush", func(ctx context.Context) error {
		m.processBatch(ctx)
		return nil
	}); err != nil {
		t.Fatalf("cycle after panic: %v", err)
	}
	if len(nt.sent) != 1 {
		t.Fatalf("sent=%d want=1", len(nt.sent))
	}
}

func TestStartSubscribeFailure(t *testing.T) {
	src := &stubSource{subErr: errors.New("bad token")}
	m := newTestMonitor(t, &stubRepo{}, &stubAnalyzer{}, &stubNotifier{})
	m.Source = src

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if m.Running() {
		t.Fatal("monitor must not be running after failed start")
	}
}

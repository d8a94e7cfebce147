package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"marketpulse/internal/config"
)

// ImpactLevel triages a message before any expensive analysis.
// Ordering: High > Medium > Low > Excluded.
type ImpactLevel int

const (
	LevelExcluded ImpactLevel = iota
	LevelLow
	LevelMedium
	LevelHigh
)

func (l ImpactLevel) String() string {
	switch l {
	case LevelHigh:
		return "high"
	case LevelMedium:
		return "medium"
	case LevelLow:
		return "low"
	default:
		return "excluded"
	}
}

// ModeAIOnly bypasses keyword tiering: everything that is not excluded is
// handed to batch analysis.
const ModeAIOnly = "ai_only"

// Result is the outcome of classifying a single message.
type Result struct {
	Level    ImpactLevel
	Matched  []string
	Category string
	Reason   string
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Engine classifies message text against an atomically swappable keyword
// ruleset. Classify is safe to call concurrently with Reload; readers always
// see either the old snapshot or the new one, never a mix.
type Engine struct {
	dataDir     string
	mode        string
	minLength   int
	maxURLCount int
	logger      *zap.Logger

	rules atomic.Pointer[ruleset]
}

func NewEngine(cfg config.FilterConfig, logger *zap.Logger) *Engine {
	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = 10
	}
	maxURLCount := cfg.MaxURLCount
	if maxURLCount <= 0 {
		maxURLCount = 3
	}
	return &Engine{
		dataDir:     cfg.DataDir,
		mode:        strings.ToLower(strings.TrimSpace(cfg.Mode)),
		minLength:   minLength,
		maxURLCount: maxURLCount,
		logger:      logger,
	}
}

// Reload re-reads the ruleset sources and publishes a fresh snapshot. On
// error the previous snapshot stays active.
func (e *Engine) Reload() error {
	rs, err := loadRuleset(e.dataDir)
	if err != nil {
		return err
	}
	e.rules.Store(rs)
	if e.logger != nil {
		high, medium, exclude := rs.counts()
		e.logger.Info("keyword ruleset loaded",
			zap.Int("high", high),
			zap.Int("medium", medium),
			zap.Int("exclude", exclude),
		)
	}
	return nil
}

func (e *Engine) Ready() bool {
	return e != nil && e.rules.Load() != nil
}

// Counts reports the size of the active snapshot's tables.
func (e *Engine) Counts() (high, medium, exclude int) {
	if e == nil {
		return 0, 0, 0
	}
	return e.rules.Load().counts()
}

func (e *Engine) DataDir() string {
	if e == nil {
		return ""
	}
	return e.dataDir
}

func (e *Engine) Mode() string {
	if e == nil {
		return ""
	}
	return e.mode
}

// Classify runs the triage checks in order, short-circuiting on the first
// decisive one.
func (e *Engine) Classify(text string) Result {
	if len([]rune(strings.TrimSpace(text))) < e.minLength {
		return Result{Level: LevelExcluded, Reason: "message too short"}
	}

	if len(urlPattern.FindAllStringIndex(text, -1)) > e.maxURLCount {
		return Result{Level: LevelExcluded, Reason: "too many links"}
	}

	rs := e.rules.Load()
	if rs == nil {
		rs = &ruleset{}
	}

	// Ad and spam exclusion always applies, even in AI-only mode.
	for _, kw := range rs.exclude {
		if strings.Contains(text, kw) {
			return Result{
				Level:   LevelExcluded,
				Matched: []string{kw},
				Reason:  "excluded: " + kw,
			}
		}
	}

	if e.mode == ModeAIOnly {
		return Result{Level: LevelLow, Reason: "bypass: full analysis"}
	}

	if res, ok := scanTier(rs.high, text, LevelHigh, "high impact"); ok {
		return res
	}
	if res, ok := scanTier(rs.medium, text, LevelMedium, "medium impact"); ok {
		return res
	}

	return Result{Level: LevelLow, Reason: "no match"}
}

// scanTier collects every matching keyword in ruleset declaration order; the
// first match decides the category.
func scanTier(entries []Entry, text string, level ImpactLevel, label string) (Result, bool) {
	var matched []string
	category := ""
	for _, entry := range entries {
		if strings.Contains(text, entry.Keyword) {
			matched = append(matched, entry.Keyword)
			if category == "" {
				category = entry.Category
			}
		}
	}
	if len(matched) == 0 {
		return Result{}, false
	}
	preview := matched
	if len(preview) > 3 {
		preview = preview[:3]
	}
	return Result{
		Level:    level,
		Matched:  matched,
		Category: category,
		Reason:   fmt.Sprintf("%s: %v", label, preview),
	}, true
}

package overrides

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/teranos/tabula/errors"
	"github.com/teranos/tabula/fuzzy"
	"github.com/teranos/tabula/logger"
)

// regexCacheSize bounds the compiled pattern cache.
const regexCacheSize = 256

// Per-type confidence assigned to rule decisions. Fuzzy rules report
// their actual similarity score instead.
var typeConfidence = map[RuleType]float64{
	RuleTypeExact:        1.0,
	RuleTypeRegex:        0.95,
	RuleTypeConditional:  0.95,
	RuleTypePositional:   0.9,
	RuleTypePrefixSuffix: 0.9,
	RuleTypeContains:     0.85,
}

// Engine evaluates override rules against headers. Safe for concurrent
// use; rule mutation takes the write lock, evaluation the read lock.
type Engine struct {
	mu       sync.RWMutex
	rules    []Rule
	strategy ResolutionStrategy

	regexCache *lru.Cache[string, *regexp.Regexp]
	scorer     *fuzzy.Matcher

	metricsMu  sync.Mutex
	metrics    Metrics
	avgLatency float64
}

// NewEngine creates an engine with the given resolution strategy.
// Rules are validated before being accepted.
func NewEngine(strategy ResolutionStrategy, rules ...Rule) (*Engine, error) {
	if strategy == "" {
		strategy = ResolveHighestPriority
	}

	regexCache, err := lru.New[string, *regexp.Regexp](regexCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create regex cache")
	}

	scorer, err := fuzzy.NewMatcher(fuzzy.ColumnMatchingConfig())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fuzzy scorer")
	}

	e := &Engine{
		strategy:   strategy,
		regexCache: regexCache,
		scorer:     scorer,
		metrics:    Metrics{HitCountByRule: make(map[uuid.UUID]int)},
	}

	for _, rule := range rules {
		if err := e.AddRule(rule); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// AddRule validates and registers a rule.
func (e *Engine) AddRule(rule Rule) error {
	if err := ValidateRule(rule); err != nil {
		return errors.Wrapf(err, "rule %q rejected", rule.Name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.ID == rule.ID {
			return errors.Newf("rule id %s already registered", rule.ID)
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// RemoveRule unregisters a rule by id.
func (e *Engine) RemoveRule(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, rule := range e.rules {
		if rule.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return nil
		}
	}
	return errors.Wrapf(errors.ErrNotFound, "rule %s", id)
}

// Rules returns a copy of the registered rules.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// SetStrategy changes the conflict resolution strategy.
func (e *Engine) SetStrategy(strategy ResolutionStrategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategy = strategy
}

// Apply evaluates every applicable rule against the header and returns
// the resolved decision. When several rules match, conflicts are
// detected and the engine's strategy picks the winner.
func (e *Engine) Apply(header string, ctx *Context) Decision {
	start := time.Now()
	if ctx == nil {
		ctx = NewContext()
	}

	e.mu.RLock()
	strategy := e.strategy
	var matched []matchedRule
	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Enabled {
			continue
		}
		if !e.scopeAdmits(rule, ctx) {
			continue
		}
		if !evalConditions(rule.Conditions, ctx) {
			continue
		}
		if confidence, ok := e.patternMatches(rule, header); ok {
			matched = append(matched, matchedRule{rule: *rule, confidence: confidence})
		}
	}
	e.mu.RUnlock()

	decision := e.resolve(header, matched, strategy)
	e.recordMetrics(decision, time.Since(start))
	return decision
}

type matchedRule struct {
	rule       Rule
	confidence float64
}

func (e *Engine) resolve(header string, matched []matchedRule, strategy ResolutionStrategy) Decision {
	switch len(matched) {
	case 0:
		return Decision{}
	case 1:
		winner := matched[0]
		return Decision{
			Matched:     true,
			TargetField: winner.rule.TargetField,
			Rule:        &winner.rule,
			Confidence:  winner.confidence,
		}
	}

	conflicts := detectConflicts(header, matched)
	winner := resolveConflicts(matched, strategy)

	alternatives := make([]Rule, 0, len(matched)-1)
	for _, m := range matched {
		if m.rule.ID != winner.rule.ID {
			alternatives = append(alternatives, m.rule)
		}
	}
	sort.Slice(alternatives, func(i, j int) bool {
		return alternatives[i].Priority > alternatives[j].Priority
	})

	decision := Decision{
		Matched:      true,
		TargetField:  winner.rule.TargetField,
		Rule:         &winner.rule,
		Confidence:   winner.confidence,
		Conflicts:    conflicts,
		Alternatives: alternatives,
	}
	if strategy == ResolveReportAndFallback && len(conflicts) > 0 {
		decision.NeedsReview = true
	}

	if len(conflicts) > 0 {
		logger.Debugw("Override rule conflict resolved",
			"header", header,
			"winner", winner.rule.Name,
			"strategy", string(strategy),
			"conflicts", len(conflicts))
	}
	return decision
}

// scopeAdmits reports whether the rule's scope applies to the context.
// Global rules always apply; scoped rules require the matching context
// attribute to equal the rule's scope value.
func (e *Engine) scopeAdmits(rule *Rule, ctx *Context) bool {
	if rule.Scope == ScopeGlobal || rule.Scope == "" {
		return true
	}
	value := ctx.scopeValue(rule.Scope)
	return value != "" && value == rule.ScopeValue
}

// patternMatches checks the rule's pattern against the header and
// returns the decision confidence when it matches.
func (e *Engine) patternMatches(rule *Rule, header string) (float64, bool) {
	h, p := header, rule.Pattern
	if !rule.CaseSensitive {
		h = strings.ToLower(h)
		p = strings.ToLower(p)
	}

	switch rule.Type {
	case RuleTypeExact, RuleTypeConditional:
		if h == p {
			return typeConfidence[rule.Type], true
		}

	case RuleTypeRegex:
		re, err := e.compileRegex(rule)
		if err != nil {
			logger.Warnw("Override rule has invalid regex at evaluation time",
				"rule", rule.Name, "error", err)
			return 0, false
		}
		if re.MatchString(header) {
			return typeConfidence[rule.Type], true
		}

	case RuleTypeFuzzy:
		threshold := rule.FuzzyThreshold
		score := e.scorer.Score(header, rule.Pattern)
		if score >= threshold {
			return score, true
		}

	case RuleTypeContains:
		if rule.WholeWord {
			if containsWholeWord(h, p) {
				return typeConfidence[rule.Type], true
			}
			return 0, false
		}
		if strings.Contains(h, p) {
			return typeConfidence[rule.Type], true
		}

	case RuleTypePrefixSuffix:
		// Pattern "pre*suf" requires both ends; no star means prefix
		if before, after, found := strings.Cut(p, "*"); found {
			if strings.HasPrefix(h, before) && strings.HasSuffix(h, after) {
				return typeConfidence[rule.Type], true
			}
		} else if strings.HasPrefix(h, p) {
			return typeConfidence[rule.Type], true
		}

	case RuleTypePositional:
		// Position constraints live in the conditions, already checked;
		// an empty pattern matches any header at that position
		if p == "" || strings.Contains(h, p) {
			return typeConfidence[rule.Type], true
		}
	}
	return 0, false
}

// compileRegex returns the compiled pattern, consulting the LRU cache.
// Case-insensitive rules get the (?i) flag baked into the cache key.
func (e *Engine) compileRegex(rule *Rule) (*regexp.Regexp, error) {
	pattern := rule.Pattern
	if !rule.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	if re, ok := e.regexCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.regexCache.Add(pattern, re)
	return re, nil
}

func containsWholeWord(haystack, word string) bool {
	for _, field := range strings.FieldsFunc(haystack, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '.'
	}) {
		if field == word {
			return true
		}
	}
	return false
}

// recordMetrics updates counters and the latency moving average.
func (e *Engine) recordMetrics(decision Decision, elapsed time.Duration) {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	e.metrics.Evaluations++
	if decision.Matched {
		e.metrics.Matches++
		if decision.Rule != nil {
			e.metrics.HitCountByRule[decision.Rule.ID]++
		}
	}
	e.metrics.Conflicts += uint64(len(decision.Conflicts))

	if e.avgLatency == 0 {
		e.avgLatency = float64(elapsed)
	} else {
		e.avgLatency = e.avgLatency*0.9 + float64(elapsed)*0.1
	}
	e.metrics.AvgLatency = time.Duration(e.avgLatency)
}

// Metrics returns a snapshot of engine activity.
func (e *Engine) Metrics() Metrics {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	hits := make(map[uuid.UUID]int, len(e.metrics.HitCountByRule))
	for id, n := range e.metrics.HitCountByRule {
		hits[id] = n
	}
	out := e.metrics
	out.HitCountByRule = hits
	return out
}

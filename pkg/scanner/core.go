package scanner

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/rule"
	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/praetorian-inc/sieve/pkg/types"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var (
	// cachedBuiltinRules holds builtin rules loaded once per process
	cachedBuiltinRules []*types.Rule
	cachedRulesErr     error
	cacheOnce          sync.Once
)

// loadBuiltinRulesCached loads builtin rules once and caches them
func loadBuiltinRulesCached() ([]*types.Rule, error) {
	cacheOnce.Do(func() {
		loader := rule.NewLoader()
		cachedBuiltinRules, cachedRulesErr = loader.LoadBuiltinRules()
	})
	return cachedBuiltinRules, cachedRulesErr
}

// GetBuiltinRules returns the built-in rules (cached)
func GetBuiltinRules() ([]*types.Rule, error) {
	return loadBuiltinRulesCached()
}

// ParseRules resolves a rules argument: "" or "builtin" selects the
// builtin rules, anything else is parsed as a YAML or JSON rules document.
func ParseRules(spec string) ([]*types.Rule, error) {
	if spec == "" || spec == "builtin" {
		return loadBuiltinRulesCached()
	}
	return rule.NewLoader().LoadRules([]byte(spec))
}

type options struct {
	engine       string
	contextLines int
	storePath    string
	store        store.Store
	logger       *slog.Logger
	meter        metric.Meter
	concurrency  int
	incremental  bool
	maxMatches   int
	dedupe       matcher.DedupeMode
	chunk        matcher.ChunkConfig
}

// Option configures a Core.
type Option func(*options)

// WithEngine selects the search engine by name.
func WithEngine(name string) Option { return func(o *options) { o.engine = name } }

// WithContextLines sets the number of snippet lines around each match.
func WithContextLines(n int) Option { return func(o *options) { o.contextLines = n } }

// WithStorePath opens a store at path (":memory:" or a SQLite file).
func WithStorePath(path string) Option { return func(o *options) { o.storePath = path } }

// WithStore uses s. The Core closes it on Close.
func WithStore(s store.Store) Option { return func(o *options) { o.store = s } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMeter sets the meter for scan metrics. The global meter provider is
// used otherwise.
func WithMeter(m metric.Meter) Option { return func(o *options) { o.meter = m } }

// WithConcurrency bounds parallel scans in ScanBatch.
func WithConcurrency(n int) Option { return func(o *options) { o.concurrency = n } }

// WithIncremental skips blobs already present in the store.
func WithIncremental(on bool) Option { return func(o *options) { o.incremental = on } }

// WithMaxMatchesPerBlob caps matches per blob (0 = unlimited).
func WithMaxMatchesPerBlob(n int) Option { return func(o *options) { o.maxMatches = n } }

// WithDedupe selects per-blob match deduplication.
func WithDedupe(mode matcher.DedupeMode) Option { return func(o *options) { o.dedupe = mode } }

// WithChunkConfig sets chunking of large blobs and streams.
func WithChunkConfig(c matcher.ChunkConfig) Option { return func(o *options) { o.chunk = c } }

// Core wraps the matcher and store for scanning operations
type Core struct {
	matcher     *matcher.LiteralMatcher
	store       store.Store
	rules       []*types.Rule
	rulesByID   map[string]*types.Rule
	logger      *slog.Logger
	metrics     *metrics
	engine      string
	concurrency int
	incremental bool
	compileTime time.Duration

	blobs   atomic.Int64
	skipped atomic.Int64
	bytes   atomic.Int64
	matches atomic.Int64
}

// NewCore compiles rules into a matcher and opens a store. Nil rules
// selects the builtin rules.
func NewCore(rules []*types.Rule, opts ...Option) (*Core, error) {
	o := options{
		engine:       matcher.EngineDFC,
		contextLines: 2,
		storePath:    store.MemoryPath,
		concurrency:  4,
		chunk:        matcher.DefaultChunkConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	logger := o.logger.With("component", "scanner")

	if rules == nil {
		var err error
		if rules, err = loadBuiltinRulesCached(); err != nil {
			return nil, fmt.Errorf("loading builtin rules: %w", err)
		}
		logger.Debug("loaded builtin rules", "count", len(rules))
	}

	met, err := newMetrics(o.meter, o.engine)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	start := time.Now()
	m, err := matcher.NewLiteral(matcher.Config{
		Rules:             rules,
		Engine:            o.engine,
		ContextLines:      o.contextLines,
		MaxMatchesPerBlob: o.maxMatches,
		Dedupe:            o.dedupe,
		Chunk:             o.chunk,
		Logger:            o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}
	compileTime := time.Since(start)
	met.recordCompile(context.Background(), compileTime, len(rules))

	s := o.store
	if s == nil {
		if s, err = store.New(store.Config{Path: o.storePath}); err != nil {
			m.Close()
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}

	byID := make(map[string]*types.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
		if err := s.AddRule(r); err != nil {
			m.Close()
			s.Close()
			return nil, fmt.Errorf("storing rule %s: %w", r.ID, err)
		}
	}

	logger.Info("scanner ready", "engine", o.engine, "rules", len(rules), "compile", compileTime)
	return &Core{
		matcher:     m,
		store:       s,
		rules:       rules,
		rulesByID:   byID,
		logger:      logger,
		metrics:     met,
		engine:      o.engine,
		concurrency: max(o.concurrency, 1),
		incremental: o.incremental,
		compileTime: compileTime,
	}, nil
}

// Scan scans a single content string reported under source.
func (c *Core) Scan(ctx context.Context, content, source string) (*ScanResult, error) {
	return c.ScanBlob(ctx, []byte(content), sourceProvenance(source))
}

// ScanBlob scans content, persists the blob, its matches and findings, and
// records prov against it. prov may be nil.
func (c *Core) ScanBlob(ctx context.Context, content []byte, prov types.Provenance) (*ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blobID := types.ComputeBlobID(content)
	result := &ScanResult{Source: sourceOf(prov), BlobID: blobID}

	if skip, err := c.skip(blobID); err != nil || skip {
		result.Skipped = skip
		return result, c.addProvenance(blobID, prov, err)
	}

	start := time.Now()
	res, err := c.matcher.MatchResult(content, blobID)
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", result.Source, err)
	}
	result.Matches = res.Matches

	if err := c.persist(blobID, int64(len(content)), prov, res.Matches); err != nil {
		return nil, err
	}
	c.record(ctx, len(content), time.Since(start), res.Matches)
	return result, nil
}

// ScanReader streams r through the matcher. size must be the exact number
// of bytes r yields; it is needed up front for the blob ID.
func (c *Core) ScanReader(ctx context.Context, r io.Reader, size int64, prov types.Provenance) (*ScanResult, error) {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.FormatInt(size, 10) + "\x00"))

	start := time.Now()
	var matches []*types.Match
	n, err := c.matcher.ScanReader(ctx, io.TeeReader(r, h), types.BlobID{}, func(m *types.Match) error {
		matches = append(matches, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("streaming %s: %w", sourceOf(prov), err)
	}
	if n != size {
		return nil, fmt.Errorf("streaming %s: read %d bytes, expected %d", sourceOf(prov), n, size)
	}

	var blobID types.BlobID
	h.Sum(blobID[:0])
	result := &ScanResult{Source: sourceOf(prov), BlobID: blobID}
	if skip, err := c.skip(blobID); err != nil || skip {
		result.Skipped = skip
		return result, c.addProvenance(blobID, prov, err)
	}

	for _, m := range matches {
		m.BlobID = blobID
		m.StructuralID = m.ComputeStructuralID(c.rulesByID[m.RuleID].StructuralID)
	}
	result.Matches = matches

	if err := c.persist(blobID, size, prov, matches); err != nil {
		return nil, err
	}
	c.record(ctx, int(size), time.Since(start), matches)
	return result, nil
}

// ScanBatch scans items concurrently. A failing item is reported in its
// result and does not stop the batch; cancellation of ctx does.
func (c *Core) ScanBatch(ctx context.Context, items []ContentItem) (*BatchScanResult, error) {
	results := make([]ScanResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, item := range items {
		g.Go(func() error {
			res, err := c.Scan(gctx, item.Content, item.Source)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				c.logger.Warn("batch item failed", "source", item.Source, "error", err)
				results[i] = ScanResult{Source: item.Source, Error: err.Error()}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r.Matches)
	}
	return &BatchScanResult{Results: results, Total: total}, nil
}

func (c *Core) skip(blobID types.BlobID) (bool, error) {
	if !c.incremental {
		return false, nil
	}
	exists, err := c.store.BlobExists(blobID)
	if err != nil {
		return false, fmt.Errorf("checking blob %s: %w", blobID, err)
	}
	if exists {
		c.skipped.Add(1)
	}
	return exists, nil
}

// addProvenance records prov for a skipped blob unless err is set.
func (c *Core) addProvenance(blobID types.BlobID, prov types.Provenance, err error) error {
	if err != nil || prov == nil {
		return err
	}
	return c.store.AddProvenance(blobID, prov)
}

func (c *Core) persist(blobID types.BlobID, size int64, prov types.Provenance, matches []*types.Match) error {
	if err := c.store.AddBlob(blobID, size); err != nil {
		return fmt.Errorf("storing blob: %w", err)
	}
	if prov != nil {
		if err := c.store.AddProvenance(blobID, prov); err != nil {
			return fmt.Errorf("storing provenance: %w", err)
		}
	}
	for _, m := range matches {
		if err := c.store.AddMatch(m); err != nil {
			return fmt.Errorf("storing match: %w", err)
		}
		if err := store.RecordFinding(c.store, m); err != nil {
			return fmt.Errorf("storing finding: %w", err)
		}
	}
	return nil
}

func (c *Core) record(ctx context.Context, size int, d time.Duration, matches []*types.Match) {
	perRule := make(map[string]int)
	for _, m := range matches {
		perRule[m.RuleID]++
	}
	c.metrics.recordScan(ctx, size, d, perRule)
	c.blobs.Add(1)
	c.bytes.Add(int64(size))
	c.matches.Add(int64(len(matches)))
	c.logger.Debug("blob scanned", "bytes", size, "matches", len(matches), "duration", d)
}

// Stats returns counters and store totals.
func (c *Core) Stats() (Stats, error) {
	st, err := c.store.Stats()
	if err != nil {
		return Stats{}, err
	}
	patterns := 0
	for _, r := range c.rules {
		patterns += len(r.Patterns)
	}
	return Stats{
		Engine:       c.engine,
		Rules:        len(c.rules),
		Patterns:     patterns,
		BlobsScanned: c.blobs.Load(),
		BlobsSkipped: c.skipped.Load(),
		BytesScanned: c.bytes.Load(),
		Matches:      c.matches.Load(),
		CompileTime:  c.compileTime,
		Store:        st,
	}, nil
}

// Rules returns the compiled rules.
func (c *Core) Rules() []*types.Rule {
	return c.rules
}

// Store returns the result store.
func (c *Core) Store() store.Store {
	return c.store
}

// Close releases scanner resources
func (c *Core) Close() error {
	return errors.Join(c.matcher.Close(), c.store.Close())
}

func sourceProvenance(source string) types.Provenance {
	if source == "" {
		return nil
	}
	return types.ExtendedProvenance{Payload: map[string]interface{}{"path": source}}
}

func sourceOf(prov types.Provenance) string {
	if prov == nil {
		return ""
	}
	return prov.Path()
}

package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/praetorian-inc/sieve/pkg/dfc"
)

// Engine names accepted by NewEngine.
const (
	EngineDFC         = "dfc"
	EngineAhoCorasick = "ahocorasick"
	EngineLeftmost    = "leftmost"
	EngineHyperscan   = "hyperscan"
)

// ErrUnknownEngine is returned by NewEngine for unregistered names.
var ErrUnknownEngine = errors.New("unknown engine")

// Engine is the contract shared by literal search backends: add patterns,
// compile once, then search any number of buffers concurrently.
type Engine interface {
	// AddPattern registers pattern under sid. Adding the same
	// (pattern, noCase) twice merges the sids.
	AddPattern(pattern []byte, noCase bool, sid uint32) error

	// Compile freezes the pattern set. It must be called exactly once.
	Compile() error

	// Search calls fn for every occurrence in buf and returns the number of
	// (occurrence, sid) pairs.
	Search(buf []byte, fn dfc.MatchFunc) (int, error)

	// LongestPattern returns the length of the longest added pattern.
	LongestPattern() int

	// Close releases the engine.
	Close() error
}

type engineFactory func(logger *slog.Logger) (Engine, error)

var engines = map[string]engineFactory{
	EngineDFC: func(logger *slog.Logger) (Engine, error) {
		return NewDFCEngine(dfc.WithLogger(logger)), nil
	},
	EngineAhoCorasick: func(*slog.Logger) (Engine, error) {
		return NewAhoCorasickEngine(), nil
	},
	EngineLeftmost: func(*slog.Logger) (Engine, error) {
		return NewLeftmostEngine(), nil
	},
	EngineHyperscan: func(*slog.Logger) (Engine, error) {
		return NewHyperscanEngine()
	},
}

// NewEngine returns an empty engine by name. An empty name selects dfc.
func NewEngine(name string, logger *slog.Logger) (Engine, error) {
	if name == "" {
		name = EngineDFC
	}
	factory, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownEngine, name, AvailableEngines())
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger)
}

// AvailableEngines lists the engines usable in this build.
func AvailableEngines() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		if name == EngineHyperscan && !hyperscanAvailable() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DFCEngine adapts dfc.Engine to Engine.
type DFCEngine struct {
	*dfc.Engine
}

// NewDFCEngine returns an empty cascading-filter engine.
func NewDFCEngine(opts ...dfc.Option) *DFCEngine {
	return &DFCEngine{Engine: dfc.New(opts...)}
}

// AddPattern implements Engine.
func (e *DFCEngine) AddPattern(pattern []byte, noCase bool, sid uint32) error {
	_, err := e.Engine.AddPattern(pattern, noCase, sid)
	return err
}

// Close frees the engine.
func (e *DFCEngine) Close() error {
	e.Free()
	return nil
}

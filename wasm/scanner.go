//go:build wasm

package main

import (
	"context"
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/sieve/pkg/scanner"
)

var (
	scanners   = make(map[int]*scanner.Core)
	scannersMu sync.RWMutex
	nextID     int
)

func errorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func jsonResult(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to marshal results: " + err.Error())
	}
	return string(data)
}

func lookup(handle js.Value) (*scanner.Core, bool) {
	scannersMu.RLock()
	defer scannersMu.RUnlock()
	core, ok := scanners[handle.Int()]
	return core, ok
}

// newScanner compiles a scanner from "builtin" or a YAML/JSON rules
// document. An optional second argument names the engine.
// JS: SieveNewScanner(rules, engine?) -> {handle} or {error}
func newScanner(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("rules argument required")
	}

	rules, err := scanner.ParseRules(args[0].String())
	if err != nil {
		return errorResult("failed to parse rules: " + err.Error())
	}

	var opts []scanner.Option
	if len(args) > 1 && args[1].Type() == js.TypeString {
		opts = append(opts, scanner.WithEngine(args[1].String()))
	}

	core, err := scanner.NewCore(rules, opts...)
	if err != nil {
		return errorResult("failed to create scanner: " + err.Error())
	}

	scannersMu.Lock()
	id := nextID
	nextID++
	scanners[id] = core
	scannersMu.Unlock()

	return map[string]any{"handle": id}
}

// scan scans a single content string.
// JS: SieveScan(handle, content, source?) -> JSON result or {error}
func scan(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return errorResult("handle and content arguments required")
	}

	core, ok := lookup(args[0])
	if !ok {
		return errorResult("invalid scanner handle")
	}

	source := ""
	if len(args) > 2 {
		source = args[2].String()
	}

	result, err := core.Scan(context.Background(), args[1].String(), source)
	if err != nil {
		return errorResult("scan failed: " + err.Error())
	}
	return jsonResult(result)
}

// scanBatch scans a JSON array of {source, content} items.
// JS: SieveScanBatch(handle, itemsJSON) -> JSON result or {error}
func scanBatch(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return errorResult("handle and itemsJSON arguments required")
	}

	core, ok := lookup(args[0])
	if !ok {
		return errorResult("invalid scanner handle")
	}

	var items []scanner.ContentItem
	if err := json.Unmarshal([]byte(args[1].String()), &items); err != nil {
		return errorResult("failed to parse items JSON: " + err.Error())
	}

	result, err := core.ScanBatch(context.Background(), items)
	if err != nil {
		return errorResult("batch scan failed: " + err.Error())
	}
	return jsonResult(result)
}

// stats reports engine and counters of a scanner.
// JS: SieveStats(handle) -> JSON stats or {error}
func stats(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("handle argument required")
	}

	core, ok := lookup(args[0])
	if !ok {
		return errorResult("invalid scanner handle")
	}

	s, err := core.Stats()
	if err != nil {
		return errorResult("stats failed: " + err.Error())
	}
	return jsonResult(s)
}

// closeScanner closes a scanner and releases resources.
// JS: SieveCloseScanner(handle)
func closeScanner(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("handle argument required")
	}

	handle := args[0].Int()

	scannersMu.Lock()
	core, ok := scanners[handle]
	delete(scanners, handle)
	scannersMu.Unlock()

	if !ok {
		return errorResult("invalid scanner handle")
	}
	if err := core.Close(); err != nil {
		return errorResult("close failed: " + err.Error())
	}
	return nil
}

// getBuiltinRules returns the built-in rules as JSON.
// JS: SieveGetBuiltinRules() -> JSON rules array
func getBuiltinRules(this js.Value, args []js.Value) any {
	rules, err := scanner.GetBuiltinRules()
	if err != nil {
		return errorResult("failed to load builtin rules: " + err.Error())
	}
	return jsonResult(rules)
}

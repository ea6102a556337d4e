//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	js.Global().Set("SieveNewScanner", js.FuncOf(newScanner))
	js.Global().Set("SieveScan", js.FuncOf(scan))
	js.Global().Set("SieveScanBatch", js.FuncOf(scanBatch))
	js.Global().Set("SieveStats", js.FuncOf(stats))
	js.Global().Set("SieveCloseScanner", js.FuncOf(closeScanner))
	js.Global().Set("SieveGetBuiltinRules", js.FuncOf(getBuiltinRules))

	// Keep WASM running
	<-make(chan struct{})
}

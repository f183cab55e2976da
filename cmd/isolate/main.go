// Command isolate loads WebAssembly modules into isolated contexts, lists
// what got loaded, and calls exported functions.
//
//	isolate load app.wasm
//	isolate refs --strategy copy app.wasm
//	isolate call app.wasm twice 21
//	isolate browse app.wasm
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

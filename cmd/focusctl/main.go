// Command focusctl inspects focus sessions, stats and blocking rules.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main provides the entry point for patchsim.
// patchsim runs the frame-hook memory patch engine of a console emulator
// against a virtual machine driven by an Akita timer.
//
// For the full CLI, use: go run ./cmd/patchsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("patchsim - frame-hook memory patch engine")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: patchsim [options] -check | -dump | -import | -image <ram>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -title     Title ID whose settings are loaded")
	fmt.Println("  -default   Directory of the distributed game settings")
	fmt.Println("  -user      Directory of the user's game settings")
	fmt.Println("  -db        Patch database to load from instead")
	fmt.Println("  -timing    Path to timer configuration JSON file")
	fmt.Println("  -v         Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/patchsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/patchsim' instead.")
	}
}

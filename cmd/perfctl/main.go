// Command perfctl fetches dealer performance reports from the command line
// and writes the same spreadsheet and PDF exports the dashboard offers.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "perfctl:", err)
		os.Exit(1)
	}
}

// imgnet builds image datasets from lists of URLs or local folders: it
// fetches every seed one at a time, records the outcome on each row and
// exports the images with their table.
//
// Usage:
//
//	imgnet fetch <table.csv> --column=url [--target=zip|csv|bucket]
//	imgnet scan <dir> [--target=zip|csv]
//	imgnet stats <exported.csv> [--markdown]
//	imgnet serve
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

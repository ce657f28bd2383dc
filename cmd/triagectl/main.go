// Command triagectl is the operator CLI for imports, rankings, the product
// tree, dimension seeding, stats and integrity checks.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

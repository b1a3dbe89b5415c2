// Command voy curates a third-party VPM package index: it maintains a
// hand-edited manifest of packages, fetches and validates releases
// from GitHub, and publishes a generated index.json clients can point
// their package manager at.
package main

import (
	"fmt"
	"os"

	"github.com/voyager-vpm/voyager/internal/voyerr"
)

func main() {
	a := newApp()
	root := newRootCommand(a)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		if voyerr.IsManifestHashMismatch(err) {
			fmt.Fprintln(os.Stderr, "Run 'voy lock' to accept the manifest's current contents.")
		}
		os.Exit(voyerr.ExitCode(err))
	}
}

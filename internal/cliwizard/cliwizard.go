// Package cliwizard defines the interactive prompting capability "voy
// init" falls back to when it is run without the non-interactive
// identity flags. No interactive implementation ships today; this
// package exists so one can be wired in without touching the init
// command itself.
package cliwizard

import (
	"context"

	"github.com/voyager-vpm/voyager/internal/manifest"
	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// Prompter collects a new manifest's VPM identity interactively.
type Prompter interface {
	PromptVpm(ctx context.Context) (manifest.Vpm, error)
}

type noninteractive struct{}

// NonInteractive returns a Prompter that always fails, directing the
// user to pass the non-interactive identity flags instead. It is the
// default until an interactive implementation is wired in.
func NonInteractive() Prompter {
	return noninteractive{}
}

func (noninteractive) PromptVpm(context.Context) (manifest.Vpm, error) {
	return manifest.Vpm{}, voyerr.RuntimeInit(
		"interactive setup is not available in this build; pass --id, --name, --author, and --url")
}

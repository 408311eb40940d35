package orchestrate

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// HuhPrompter implements Prompter with an interactive terminal form.
type HuhPrompter struct{}

// Confirm presents a yes/no form for a destructive stage.
func (p *HuhPrompter) Confirm(stageName string) (bool, error) {
	var proceed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Run destructive stage %q?", stageName)).
				Description("This operation is irreversible.").
				Affirmative("Proceed").
				Negative("Skip").
				Value(&proceed),
		),
	)

	if err := form.Run(); err != nil {
		return false, err
	}
	return proceed, nil
}

// IsInteractiveTTY reports whether stdout is attached to a terminal.
// Prompting is only meaningful interactively; non-interactive runs must
// pick an explicit auto or deny policy instead.
func IsInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/platinummonkey/neuronote/pkg/manifest"
)

func newValidateCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "validate",
		Description: "Validate a manifest file",
		Flags:       newFlagSet("validate", out),
		out:         out,
	}

	cmd.Flags.String("file", "plugins.json", "Manifest file (JSON or YAML)")

	cmd.Run = cmd.runValidate
	return cmd
}

func (c *Command) runValidate(args []string) error {
	flags := newValidateCommand(c.out).Flags
	if err := flags.Parse(args); err != nil {
		return err
	}

	file := flags.Lookup("file").Value.String()

	records, err := manifest.DecodeFile(file)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	result, err := manifest.AggregateAt(records, manifest.SortByName, time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	fmt.Fprintf(c.out, "%s: %d plugins in %d categories\n", file, result.Total(), result.Len())
	return nil
}

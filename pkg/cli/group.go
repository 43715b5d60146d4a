package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/platinummonkey/neuronote/pkg/manifest"
)

func newGroupCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "group",
		Description: "Group a manifest file into categories",
		Flags:       newFlagSet("group", out),
		out:         out,
	}

	cmd.Flags.String("file", "plugins.json", "Manifest file (JSON or YAML)")
	cmd.Flags.String("sort", "name", "Sort within categories: name, usage or recent")
	cmd.Flags.String("format", "text", "Output format: text or json")
	cmd.Flags.String("now", "", "Reference time for the recently-used flag (RFC3339, default now)")

	cmd.Run = cmd.runGroup
	return cmd
}

func (c *Command) runGroup(args []string) error {
	flags := newGroupCommand(c.out).Flags
	if err := flags.Parse(args); err != nil {
		return err
	}

	file := flags.Lookup("file").Value.String()
	sortHint := flags.Lookup("sort").Value.String()
	format := flags.Lookup("format").Value.String()
	nowFlag := flags.Lookup("now").Value.String()

	sortBy, err := manifest.ParseSortKey(sortHint)
	if err != nil {
		return err
	}

	now := time.Now()
	if nowFlag != "" {
		if now, err = time.Parse(time.RFC3339, nowFlag); err != nil {
			return fmt.Errorf("invalid -now value: %w", err)
		}
	}

	records, err := manifest.DecodeFile(file)
	if err != nil {
		return err
	}

	result, err := manifest.AggregateAt(records, sortBy, now)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "text":
		return writeGroups(c.out, result)
	default:
		return fmt.Errorf("unknown format: %s (must be text or json)", format)
	}
}

func writeGroups(out io.Writer, result *manifest.GroupedResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	for _, group := range result.Groups {
		fmt.Fprintf(w, "%s (%d)\n", group.Category, len(group.Plugins))
		for _, p := range group.Plugins {
			recent := ""
			if p.RecentlyUsed {
				recent = "recent"
			}
			fmt.Fprintf(w, "  %s\t%d\t%.0f%%\t%s\t%s\n",
				p.Name, p.Usage, p.UsageRatio*100, recent, strings.Join(p.DerivedTags, ","))
		}
	}
	return w.Flush()
}

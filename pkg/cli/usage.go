package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/platinummonkey/neuronote/pkg/usage"
)

func newUsageCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "usage",
		Description: "Show persisted plugin usage counters",
		Flags:       newFlagSet("usage", out),
		out:         out,
	}

	cmd.Flags.String("backend", "sqlite", "Usage backend: redis, postgres or sqlite")
	cmd.Flags.String("dsn", "", "Redis URL or SQL DSN")
	cmd.Flags.String("prefix", "", "Redis key prefix")

	cmd.Run = cmd.runUsage
	return cmd
}

func (c *Command) runUsage(args []string) error {
	flags := newUsageCommand(c.out).Flags
	if err := flags.Parse(args); err != nil {
		return err
	}

	backend := flags.Lookup("backend").Value.String()
	dsn := flags.Lookup("dsn").Value.String()
	prefix := flags.Lookup("prefix").Value.String()

	if dsn == "" {
		return fmt.Errorf("dsn is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openUsageStore(ctx, backend, dsn, prefix)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PLUGIN\tCOUNT\tLAST USED")
	for _, stat := range usage.Sorted(stats) {
		last := "-"
		if stat.LastUsed != nil {
			last = stat.LastUsed.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", stat.Name, stat.Count, last)
	}
	return w.Flush()
}

func openUsageStore(ctx context.Context, backend, dsn, prefix string) (usage.Store, error) {
	switch backend {
	case "redis":
		return usage.NewRedisStore(ctx, usage.RedisConfig{URL: dsn, KeyPrefix: prefix})
	case "postgres":
		return usage.OpenSQLStore(ctx, usage.SQLConfig{Driver: usage.DialectPostgres, DSN: dsn})
	case "sqlite":
		return usage.OpenSQLStore(ctx, usage.SQLConfig{Driver: usage.DialectSQLite, DSN: dsn, MaxConns: 1})
	default:
		return nil, fmt.Errorf("unknown usage backend: %s (must be redis, postgres or sqlite)", backend)
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/neuronote/pkg/audit"
)

func newTraceCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "trace",
		Description: "Fetch a query trace from a running server",
		Flags:       newFlagSet("trace", out),
		out:         out,
	}

	cmd.Flags.String("server", "http://localhost:8080", "Server URL")
	cmd.Flags.String("id", "", "Trace ID")
	cmd.Flags.Duration("timeout", 10*time.Second, "Request timeout")

	cmd.Run = cmd.runTrace
	return cmd
}

func (c *Command) runTrace(args []string) error {
	flags := newTraceCommand(c.out).Flags
	if err := flags.Parse(args); err != nil {
		return err
	}

	server := strings.TrimRight(flags.Lookup("server").Value.String(), "/")
	id := flags.Lookup("id").Value.String()
	timeout, err := time.ParseDuration(flags.Lookup("timeout").Value.String())
	if err != nil {
		return err
	}

	if id == "" {
		return fmt.Errorf("trace id is required")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(fmt.Sprintf("%s/audit/%s", server, url.PathEscape(id)))
	if err != nil {
		return fmt.Errorf("failed to fetch trace: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("trace %s not found", id)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}

	var body audit.TraceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode trace: %w", err)
	}
	if body.Trace == nil {
		return fmt.Errorf("server returned an empty trace")
	}

	t := body.Trace
	fmt.Fprintf(c.out, "Trace:    %s\n", body.TraceID)
	fmt.Fprintf(c.out, "Executed: %s\n", t.ExecutedAt.Format(time.RFC3339))
	fmt.Fprintf(c.out, "Input:    %s\n", t.Input)
	for i, r := range t.Results {
		status := "ok"
		if !r.Success {
			status = "failed: " + r.Error
		}
		fmt.Fprintf(c.out, "  %d. %s [%s]\n", i+1, r.Plugin, status)
	}
	return nil
}

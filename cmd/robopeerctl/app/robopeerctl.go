package app

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/robopeer/internal/control"
	httpserver "github.com/autopeer-io/robopeer/internal/controlplane/server/http"
)

const defaultServer = "http://localhost:8080"

type ctlOptions struct {
	Server  string
	Output  string
	Timeout time.Duration
}

// NewRobopeerctlCommand returns the root command of the operator CLI.
func NewRobopeerctlCommand() *cobra.Command {
	opts := &ctlOptions{Server: defaultServer, Output: outputTable, Timeout: 30 * time.Second}
	if env := os.Getenv("ROBOPEER_SERVER"); env != "" {
		opts.Server = env
	}

	cmd := &cobra.Command{
		Use:           "robopeerctl",
		Short:         "Operate a Robopeer control plane",
		Long:          "robopeerctl submits, inspects and cancels robot commands through the Robopeer command API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains([]string{outputTable, outputJSON, outputYAML}, opts.Output) {
				return fmt.Errorf("--output must be one of table, json, yaml, got %q", opts.Output)
			}
			return nil
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.Server, "server", opts.Server, "Address of the robopeer command API. Defaults to $ROBOPEER_SERVER when set.")
	fs.StringVarP(&opts.Output, "output", "o", opts.Output, "Output format: table, json or yaml.")
	fs.DurationVar(&opts.Timeout, "request-timeout", opts.Timeout, "Timeout of each API request.")

	cmd.AddCommand(
		newQueueCommand(opts),
		newGetCommand(opts),
		newHealthCommand(opts),
		newSubmitCommand(opts),
		newCancelCommand(opts),
		newEmergencyStopCommand(opts),
		newResumeCommand(opts),
		newPruneCommand(opts),
	)
	return cmd
}

func (o *ctlOptions) client() *client {
	return newClient(o.Server, o.Timeout)
}

func (o *ctlOptions) printer(cmd *cobra.Command) *printer {
	return &printer{format: o.Output, out: cmd.OutOrStdout()}
}

func newQueueCommand(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show queued and executing commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var qs control.QueueStatus
			if err := opts.client().get(cmd.Context(), "/api/v1/queue", &qs); err != nil {
				return err
			}
			return opts.printer(cmd).print(qs, queueTable(qs))
		},
	}
}

func newGetCommand(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap control.Snapshot
			if err := opts.client().get(cmd.Context(), "/api/v1/commands/"+url.PathEscape(args[0]), &snap); err != nil {
				return err
			}
			return opts.printer(cmd).print(snap, snapshotTable(snap))
		},
	}
}

func newHealthCommand(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the health of the control plane and its robot link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var h control.Health
			if err := opts.client().get(cmd.Context(), "/api/v1/health", &h); err != nil {
				return err
			}
			return opts.printer(cmd).print(h, healthTable(h))
		},
	}
}

func newSubmitCommand(opts *ctlOptions) *cobra.Command {
	var (
		params   []string
		priority int
		session  string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit <name>",
		Short: "Submit a command to the robot",
		Example: `  robopeerctl submit move_forward --param distance=1.5 --param message="on my way"
  robopeerctl submit dock --priority 2 --timeout 2m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := parseParams(params)
			if err != nil {
				return err
			}
			req := httpserver.SubmitRequest{
				Name:       args[0],
				Parameters: parameters,
				SessionID:  session,
			}
			if cmd.Flags().Changed("priority") {
				req.Priority = &priority
			}
			if cmd.Flags().Changed("timeout") {
				req.Timeout = timeout.String()
			}

			var snap control.Snapshot
			if err := opts.client().post(cmd.Context(), "/api/v1/commands", req, &snap); err != nil {
				return err
			}
			return opts.printer(cmd).print(snap, snapshotTable(snap))
		},
	}

	fs := cmd.Flags()
	fs.StringArrayVar(&params, "param", nil, "Command parameter as key=value. Values that parse as JSON keep their type. Repeatable.")
	fs.IntVar(&priority, "priority", int(control.PriorityNormal), "Priority from 1 (emergency) to 4 (low).")
	fs.StringVar(&session, "session", "", "Session the command belongs to.")
	fs.DurationVar(&timeout, "timeout", 0, "Execution deadline. Negative disables it; unset uses the server default.")
	return cmd
}

func newCancelCommand(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or executing command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().delete(cmd.Context(), "/api/v1/commands/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "command %s cancelled\n", args[0])
			return nil
		},
	}
}

func newEmergencyStopCommand(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "estop",
		Aliases: []string{"emergency-stop"},
		Short:   "Cancel everything and stop the robot",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var snap control.Snapshot
			if err := opts.client().post(cmd.Context(), "/api/v1/emergency-stop", nil, &snap); err != nil {
				return err
			}
			return opts.printer(cmd).print(snap, snapshotTable(snap))
		},
	}
}

func newResumeCommand(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Clear the emergency stop and resume operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var snap control.Snapshot
			if err := opts.client().post(cmd.Context(), "/api/v1/resume", nil, &snap); err != nil {
				return err
			}
			return opts.printer(cmd).print(snap, snapshotTable(snap))
		},
	}
}

func newPruneCommand(opts *ctlOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove finished commands from the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/history/prune?older_than=" + url.QueryEscape(olderThan.String())
			var resp httpserver.PruneResponse
			if err := opts.client().post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return opts.printer(cmd).print(resp, func(t *uitable.Table) {
				t.AddRow("REMOVED:", resp.Removed)
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove commands finished longer ago than this.")
	return cmd
}

// parseParams turns key=value pairs into command parameters.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		params[key] = v
	}
	return params, nil
}

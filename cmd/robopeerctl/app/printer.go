package app

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"

	"github.com/autopeer-io/robopeer/internal/control"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

const maxColWidth = 60

type printer struct {
	format string
	out    io.Writer
}

// print writes v in the selected format. table renders the table format.
func (p *printer) print(v any, table func(t *uitable.Table)) error {
	switch p.format {
	case outputJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.out, string(b))
		return err
	case outputYAML:
		// Round trip through JSON so keys match the API field names.
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			return err
		}
		y, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = p.out.Write(y)
		return err
	default:
		t := uitable.New()
		t.MaxColWidth = maxColWidth
		table(t)
		_, err := fmt.Fprintln(p.out, t)
		return err
	}
}

func snapshotTable(snaps ...control.Snapshot) func(*uitable.Table) {
	return func(t *uitable.Table) {
		t.AddRow("ID", "NAME", "PRIORITY", "STATE", "QUEUED", "EXECUTED", "FINISHED", "MESSAGE")
		for _, s := range snaps {
			msg := ""
			if s.Outcome != nil {
				msg = s.Outcome.Message
			}
			t.AddRow(s.ID, s.Name, s.Priority, s.State, formatTime(&s.QueuedAt), formatTime(s.ExecutedAt), formatTime(s.FinishedAt), msg)
		}
	}
}

func queueTable(qs control.QueueStatus) func(*uitable.Table) {
	return func(t *uitable.Table) {
		t.AddRow("EMERGENCY STOP:", qs.EmergencyStop)
		t.AddRow("ACTIVE:", qs.InFlight)
		t.AddRow("QUEUED:", qs.Depth)
		t.AddRow("HISTORY:", qs.HistoryLength)
		t.AddRow("")
		t.AddRow("ID", "NAME", "PRIORITY", "STATE", "QUEUED")
		for _, id := range qs.InFlightIDs {
			t.AddRow(id, "", "", control.StateExecuting, "")
		}
		for _, c := range qs.Queued {
			t.AddRow(c.ID, c.Name, c.Priority, control.StateQueued, formatTime(&c.QueuedAt))
		}
	}
}

func healthTable(h control.Health) func(*uitable.Table) {
	return func(t *uitable.Table) {
		t.AddRow("STATUS", "QUEUE", "ACTIVE", "EMERGENCY STOP", "HISTORY", "EXECUTOR ERROR")
		t.AddRow(h.Status, h.QueueLength, h.ActiveCommands, h.EmergencyStop, h.HistoryLength, h.ExecutorError)
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

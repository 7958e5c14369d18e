// Package archive stores command history evicted from the control service.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autopeer-io/robopeer/internal/control"
)

// Archiver persists snapshots of pruned commands.
type Archiver interface {
	Archive(ctx context.Context, snaps []control.Snapshot) error
}

// Nop drops everything it is given.
type Nop struct{}

func (Nop) Archive(context.Context, []control.Snapshot) error { return nil }

// ObjectKey names the archive object of a prune run at t.
func ObjectKey(robotID string, t time.Time) string {
	return fmt.Sprintf("history/%s/%d.jsonl", robotID, t.UnixNano())
}

// encode writes one JSON document per line.
func encode(snaps []control.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, s := range snaps {
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.ID, err)
		}
	}
	return buf.Bytes(), nil
}

package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/robopeer/internal/control"
	"github.com/autopeer-io/robopeer/pkg/options"
)

func snapshots() []control.Snapshot {
	return []control.Snapshot{
		{ID: "cmd-1", Name: "move_forward", Priority: control.PriorityNormal, State: control.StateCompleted},
		{ID: "cmd-2", Name: "turn_left", Priority: control.PriorityHigh, State: control.StateCancelled},
	}
}

func TestObjectKey(t *testing.T) {
	at := time.Unix(0, 1700000000123456789)
	assert.Equal(t, "history/go2/1700000000123456789.jsonl", ObjectKey("go2", at))
}

func TestEncodeWritesOneLinePerSnapshot(t *testing.T) {
	data, err := encode(snapshots())
	require.NoError(t, err)

	sc := bufio.NewScanner(bytes.NewReader(data))
	var ids []string
	for sc.Scan() {
		var s control.Snapshot
		require.NoError(t, json.Unmarshal(sc.Bytes(), &s))
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"cmd-1", "cmd-2"}, ids)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Archive(t.Context(), snapshots()))
}

// fakeS3 accepts bucket probes and object uploads.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.objects[r.URL.Path] = body
		f.mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestMinIOArchive(t *testing.T) {
	s3 := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	opts := options.NewS3Options()
	opts.Endpoint = strings.TrimPrefix(srv.URL, "http://")
	opts.AccessKeyID = "test"
	opts.SecretAccessKey = "testsecret"

	m, err := NewMinIO(opts, "go2")
	require.NoError(t, err)
	m.clock = clocktesting.NewFakePassiveClock(time.Unix(0, 42))

	require.NoError(t, m.CheckBucket(t.Context()))
	require.NoError(t, m.Archive(t.Context(), snapshots()))
	require.NoError(t, m.Archive(t.Context(), nil))

	s3.mu.Lock()
	defer s3.mu.Unlock()
	require.Len(t, s3.objects, 1)
	body, ok := s3.objects["/robopeer-history/history/go2/42.jsonl"]
	require.True(t, ok)
	assert.True(t, bytes.Contains(body, []byte(`"id":"cmd-1"`)))
	assert.True(t, bytes.Contains(body, []byte(`"id":"cmd-2"`)))
}

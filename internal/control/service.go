package control

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/robopeer/internal/pkg/metrics"
	"github.com/autopeer-io/robopeer/pkg/log"
)

const (
	DefaultMaxInFlight    = 1
	DefaultCommandTimeout = 30 * time.Second
	DefaultControlTimeout = 10 * time.Second
)

// Option configures a Service.
type Option func(*Service)

// WithMaxInFlight bounds the number of commands executing at once.
// Values below one are ignored.
func WithMaxInFlight(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

// WithDefaultTimeout sets the deadline of commands submitted without one.
// Zero disables the default deadline.
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *Service) { s.defaultTimeout = d }
}

// WithControlTimeout bounds the cancel_command, emergency_stop and
// resume_operation calls.
func WithControlTimeout(d time.Duration) Option {
	return func(s *Service) { s.controlTimeout = d }
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l log.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service admits, orders, dispatches and tracks commands for one robot.
// All state lives behind mu; executor calls run without it.
type Service struct {
	exec Executor

	maxInFlight    int
	defaultTimeout time.Duration
	controlTimeout time.Duration
	clock          clock.Clock
	log            log.Logger

	mu        sync.Mutex
	queue     *Queue
	tracker   *Tracker
	history   *History
	emergency bool
	closed    bool
	seq       uint64

	// holds counts control calls in progress that keep the dispatch pass
	// from sending new work to the robot.
	holds int
	// calls holds dispatched commands whose executor call has not returned
	// yet, including ones already cancelled or timed out.
	calls map[*Command]struct{}
	// controls holds emergency_stop and resume_operation commands in progress.
	controls   map[string]*Command
	cancelling int
	stops      uint64
	// changed is closed and replaced whenever work leaves the robot.
	changed chan struct{}

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// New returns a Service that delivers commands through exec.
func New(exec Executor, opts ...Option) *Service {
	ctx, stop := context.WithCancel(context.Background())
	s := &Service{
		exec:           exec,
		maxInFlight:    DefaultMaxInFlight,
		defaultTimeout: DefaultCommandTimeout,
		controlTimeout: DefaultControlTimeout,
		clock:          clock.RealClock{},
		log:            log.WithName("control"),
		queue:          newQueue(),
		tracker:        newTracker(),
		history:        newHistory(),
		calls:          make(map[*Command]struct{}),
		controls:       make(map[string]*Command),
		changed:        make(chan struct{}),
		baseCtx:        ctx,
		stop:           stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle refers to a submitted command.
type Handle struct {
	ID  string
	svc *Service
}

// Status returns the current snapshot of the command.
func (h Handle) Status() (Snapshot, error) {
	return h.svc.Status(h.ID)
}

// Cancel cancels the command if it is still queued or executing.
func (h Handle) Cancel(ctx context.Context) error {
	return h.svc.Cancel(ctx, h.ID)
}

// Submit validates req and admits it into the queue. Exempt commands are
// executed right away through EmergencyStop or Resume.
func (s *Service) Submit(ctx context.Context, req Request) (Handle, error) {
	if err := validate(req); err != nil {
		metrics.CommandsRefused.WithLabelValues(refusalReason(err)).Inc()
		s.log.Debug("Refused submission", "name", req.Name, "priority", int(req.Priority), "reason", err.Error())
		return Handle{}, err
	}

	switch req.Name {
	case CommandEmergencyStop:
		snap, err := s.EmergencyStop(ctx)
		if err != nil {
			return Handle{}, err
		}
		return Handle{ID: snap.ID, svc: s}, nil
	case CommandResume:
		snap, err := s.Resume(ctx)
		if err != nil {
			return Handle{}, err
		}
		return Handle{ID: snap.ID, svc: s}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var refusal error
	switch {
	case s.closed:
		refusal = ErrServiceClosed
	case s.emergency:
		refusal = ErrEmergencyActive
	}
	if refusal != nil {
		metrics.CommandsRefused.WithLabelValues(refusalReason(refusal)).Inc()
		s.log.Info("Refused submission", "name", req.Name, "reason", refusal.Error())
		return Handle{}, refusal
	}

	cmd := s.newCommandLocked(req)
	s.queue.Enqueue(cmd)
	metrics.CommandsAdmitted.WithLabelValues(cmd.Priority.String()).Inc()
	s.log.Info("Admitted command", "id", cmd.ID, "name", cmd.Name, "priority", cmd.Priority.String(), "session", cmd.SessionID)

	s.dispatchLocked()
	return Handle{ID: cmd.ID, svc: s}, nil
}

func validate(req Request) error {
	if !req.Priority.Valid() {
		return fmt.Errorf("%w: %d is outside [%d,%d]", ErrInvalidPriority, req.Priority, PriorityEmergency, PriorityLow)
	}
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCommand)
	}
	for k := range req.Parameters {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty parameter name", ErrInvalidCommand)
		}
	}
	return nil
}

func (s *Service) newCommandLocked(req Request) *Command {
	s.seq++
	timeout := req.Timeout
	switch {
	case timeout == 0:
		timeout = s.defaultTimeout
	case timeout < 0:
		timeout = 0
	}
	cmd := &Command{
		ID:         "cmd-" + uuid.NewString(),
		Name:       req.Name,
		Parameters: maps.Clone(req.Parameters),
		Priority:   req.Priority,
		SessionID:  req.SessionID,
		Timeout:    timeout,
		QueuedAt:   s.clock.Now(),
		seq:        s.seq,
	}
	cmd.lifecycle = newLifecycle(cmd, s.clock.Now)
	return cmd
}

// dispatchLocked moves queued commands to the robot while capacity allows.
func (s *Service) dispatchLocked() {
	defer s.observeLocked()

	for !s.emergency && !s.closed && s.holds == 0 && s.tracker.Len() < s.maxInFlight {
		cmd, ok := s.queue.DequeueNext()
		if !ok {
			return
		}
		cmd.fire(eventDispatch, nil)

		ctx, cancel := context.WithCancel(s.baseCtx)
		cmd.cancel = cancel
		s.tracker.Track(cmd)
		s.calls[cmd] = struct{}{}
		s.log.Info("Dispatched command", "id", cmd.ID, "name", cmd.Name, "timeout", cmd.Timeout)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			event, outcome, ok := s.await(ctx, cmd)
			if ok {
				s.finish(cmd, event, outcome)
			}
		}()
	}
}

// await runs cmd on the executor and waits for its outcome, its deadline or
// ctx, whichever comes first. It reports false when ctx ended the wait.
func (s *Service) await(ctx context.Context, cmd *Command) (string, *Outcome, bool) {
	type result struct {
		event   string
		outcome *Outcome
	}
	done := make(chan result, 1)
	params := maps.Clone(cmd.Parameters)
	go func() {
		event, outcome := s.invoke(ctx, cmd.Name, params, cmd.SessionID)
		done <- result{event, outcome}
		s.returned(cmd)
	}()

	var deadline <-chan time.Time
	if cmd.Timeout > 0 {
		t := s.clock.NewTimer(cmd.Timeout)
		defer t.Stop()
		deadline = t.C()
	}

	select {
	case r := <-done:
		return r.event, r.outcome, true
	case <-deadline:
		return eventTimeout, &Outcome{Message: fmt.Sprintf("no result within %s", cmd.Timeout)}, true
	case <-ctx.Done():
		return "", nil, false
	}
}

// returned drops cmd from the set of calls still inside the executor.
func (s *Service) returned(cmd *Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calls[cmd]; ok {
		delete(s.calls, cmd)
		s.signalLocked()
	}
}

// invoke calls the executor and maps what it returns to a lifecycle event.
// Nothing is sent once ctx is done.
func (s *Service) invoke(ctx context.Context, name string, params map[string]any, sessionID string) (event string, outcome *Outcome) {
	if err := ctx.Err(); err != nil {
		return eventError, &Outcome{Message: fmt.Sprintf("not delivered: %v", err)}
	}
	defer func() {
		if r := recover(); r != nil {
			event, outcome = eventError, &Outcome{Message: fmt.Sprintf("executor panic: %v", r)}
		}
	}()

	res, err := s.exec.Execute(ctx, name, params, sessionID)
	switch {
	case err != nil:
		return eventFail, &Outcome{Message: err.Error()}
	case res == nil:
		return eventError, &Outcome{Message: "executor returned no result"}
	case !res.Success:
		return eventFail, res
	default:
		return eventComplete, res
	}
}

// finish applies the outcome of a dispatched command. Outcomes of commands
// that were cancelled in the meantime are dropped.
func (s *Service) finish(cmd *Command, event string, outcome *Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tracked, ok := s.tracker.Get(cmd.ID); !ok || tracked != cmd {
		s.log.Debug("Discarded outcome of untracked command", "id", cmd.ID, "event", event)
		return
	}
	s.tracker.Untrack(cmd.ID)
	cmd.abort()
	cmd.fire(event, outcome)
	s.recordLocked(cmd)
	s.signalLocked()
	s.dispatchLocked()
}

// signalLocked wakes every waitLocked caller.
func (s *Service) signalLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// waitLocked blocks until cond holds or ctx is done and reports whether cond
// holds. s.mu must be held; it is released while waiting.
func (s *Service) waitLocked(ctx context.Context, cond func() bool) bool {
	for !cond() {
		changed := s.changed
		s.mu.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
		}
		s.mu.Lock()
		if ctx.Err() != nil {
			return cond()
		}
	}
	return true
}

// idleLocked reports whether nothing is executing on the robot or on its way
// there or back.
func (s *Service) idleLocked() bool {
	return s.tracker.Len() == 0 && len(s.calls) == 0 && len(s.controls) == 0 && s.cancelling == 0
}

// recordLocked appends a terminal command to the history.
func (s *Service) recordLocked(cmd *Command) {
	s.history.Append(cmd)

	state := string(cmd.State())
	metrics.CommandsFinished.WithLabelValues(state).Inc()
	if !cmd.ExecutedAt.IsZero() {
		metrics.CommandDuration.WithLabelValues(state).Observe(cmd.FinishedAt.Sub(cmd.ExecutedAt).Seconds())
	}

	kv := []any{"id", cmd.ID, "name", cmd.Name, "state", state}
	if cmd.Outcome != nil && cmd.Outcome.Message != "" {
		kv = append(kv, "message", cmd.Outcome.Message)
	}
	if cmd.State() == StateCompleted {
		s.log.Info("Command finished", kv...)
	} else {
		s.log.Warn("Command finished", kv...)
	}
}

func (s *Service) observeLocked() {
	metrics.QueueDepth.Set(float64(s.queue.Len()))
	metrics.InFlight.Set(float64(s.tracker.Len()))
	if s.emergency {
		metrics.EmergencyStopActive.Set(1)
	} else {
		metrics.EmergencyStopActive.Set(0)
	}
}

// Cancel stops the command with the given id. A queued command is removed.
// An executing command is cancelled locally and the robot is asked to abort
// it; the remote request is best effort and its failure is only logged.
func (s *Service) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()

	if cmd, ok := s.queue.Remove(id); ok {
		cmd.fire(eventCancel, &Outcome{Message: "cancelled while queued"})
		s.recordLocked(cmd)
		s.observeLocked()
		s.mu.Unlock()
		return nil
	}

	cmd, ok := s.tracker.Untrack(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is not queued or executing", ErrNotFound, id)
	}
	cmd.abort()
	cmd.fire(eventCancel, &Outcome{Message: "cancelled while executing"})
	s.recordLocked(cmd)
	s.holds++
	s.cancelling++
	s.signalLocked()
	s.observeLocked()
	s.mu.Unlock()

	s.cancelRemote(ctx, id)

	s.mu.Lock()
	s.holds--
	s.cancelling--
	s.signalLocked()
	s.dispatchLocked()
	s.mu.Unlock()
	return nil
}

// cancelRemote asks the robot to abort the command with the given id.
func (s *Service) cancelRemote(ctx context.Context, id string) {
	ctx, cancel := s.controlContext(ctx)
	defer cancel()

	event, outcome := s.invoke(ctx, CommandCancel, map[string]any{"command_id": id}, "")
	if event != eventComplete {
		s.log.Warn("Remote cancel failed", "id", id, "message", outcome.Message)
	}
}

// controlContext derives the context of a control call. Control calls outlive
// the caller's cancellation but not the control timeout.
func (s *Service) controlContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.controlTimeout > 0 {
		return context.WithTimeout(ctx, s.controlTimeout)
	}
	return context.WithCancel(ctx)
}

// Status returns the snapshot of the command with the given id, wherever it is.
func (s *Service) Status(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd, ok := s.lookupLocked(id); ok {
		return cmd.snapshot(), nil
	}
	return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Service) lookupLocked(id string) (*Command, bool) {
	if cmd, ok := s.queue.Get(id); ok {
		return cmd, true
	}
	if cmd, ok := s.tracker.Get(id); ok {
		return cmd, true
	}
	if cmd, ok := s.controls[id]; ok {
		return cmd, true
	}
	return s.history.Get(id)
}

// QueueStatus is a point-in-time view of the service.
type QueueStatus struct {
	Depth         int       `json:"queue_length"`
	InFlight      int       `json:"active_commands"`
	InFlightIDs   []string  `json:"active_command_ids"`
	EmergencyStop bool      `json:"emergency_stop"`
	HistoryLength int       `json:"history_length"`
	Queued        []Summary `json:"queued_commands"`
}

func (s *Service) QueueStatus() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return QueueStatus{
		Depth:         s.queue.Len(),
		InFlight:      s.tracker.Len(),
		InFlightIDs:   s.tracker.IDs(),
		EmergencyStop: s.emergency,
		HistoryLength: s.history.Len(),
		Queued:        slices.Collect(s.queue.Snapshot()),
	}
}

// PruneHistory drops history entries that finished at or before
// now minus olderThan and returns how many were dropped.
func (s *Service) PruneHistory(olderThan time.Duration) int {
	return len(s.DrainHistory(olderThan))
}

// DrainHistory is PruneHistory returning the dropped entries, oldest first.
func (s *Service) DrainHistory(olderThan time.Duration) []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := s.history.Evict(s.clock.Now().Add(-olderThan))
	if len(evicted) == 0 {
		return nil
	}
	metrics.HistoryPruned.Add(float64(len(evicted)))
	s.log.Info("Pruned command history", "count", len(evicted), "olderThan", olderThan)

	snaps := make([]Snapshot, 0, len(evicted))
	for _, cmd := range evicted {
		snaps = append(snaps, cmd.snapshot())
	}
	return snaps
}

// Close refuses further submissions, cancels everything queued or executing
// and waits for dispatched executor calls to return.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.flushLocked("control service shutting down")
	s.observeLocked()
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()
}

// flushLocked cancels every executing and queued command and returns the ids
// of those that were executing.
func (s *Service) flushLocked(reason string) []string {
	ids := s.tracker.IDs()
	for _, id := range ids {
		cmd, _ := s.tracker.Untrack(id)
		cmd.abort()
		cmd.fire(eventCancel, &Outcome{Message: reason})
		s.recordLocked(cmd)
	}
	for {
		cmd, ok := s.queue.DequeueNext()
		if !ok {
			break
		}
		cmd.fire(eventCancel, &Outcome{Message: reason})
		s.recordLocked(cmd)
	}
	s.signalLocked()
	return ids
}

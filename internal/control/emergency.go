package control

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmergencyStop sets the emergency flag, cancels every executing and queued
// command and then sends emergency_stop to the robot. The stop is sent once
// every cancelled executor call has returned, or after the control timeout.
// The stop command is recorded in the history as a command of its own and
// its snapshot is returned. Calling it again while the flag is set only
// re-sends the stop.
func (s *Service) EmergencyStop(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	wasActive := s.emergency
	s.emergency = true
	s.stops++
	inFlight := s.flushLocked("cancelled by emergency stop")
	stop := s.startControlLocked(CommandEmergencyStop)
	s.mu.Unlock()

	if wasActive {
		s.log.Info("Emergency stop re-issued")
	} else {
		s.log.Warn("Emergency stop engaged", "cancelled", inFlight)
	}

	// Remote cancels are best effort and never delay the stop by more than
	// the control timeout.
	var g errgroup.Group
	for _, id := range inFlight {
		g.Go(func() error {
			s.cancelRemote(ctx, id)
			return nil
		})
	}
	g.Go(func() error {
		s.awaitReturned(ctx)
		return nil
	})
	_ = g.Wait()

	return s.runControl(ctx, stop), nil
}

// awaitReturned waits, at most for the control timeout, until no ordinary
// command is inside the executor.
func (s *Service) awaitReturned(ctx context.Context) {
	ctx, cancel := s.controlContext(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.waitLocked(ctx, func() bool { return len(s.calls) == 0 }) {
		s.log.Warn("Executor calls still running, sending emergency stop anyway", "count", len(s.calls))
	}
}

// Resume waits until nothing is executing on the robot, clears the emergency
// flag and sends resume_operation. Commands cancelled by the emergency stop
// stay cancelled. Resume fails if ctx ends first or an emergency stop is
// issued while it waits.
func (s *Service) Resume(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	stops := s.stops
	s.holds++
	idle := s.waitLocked(ctx, s.idleLocked)
	s.holds--

	var err error
	switch {
	case s.closed:
		err = ErrServiceClosed
	case s.stops != stops:
		err = fmt.Errorf("%w: emergency stop issued while resume was waiting", ErrEmergencyActive)
	case !idle:
		err = fmt.Errorf("resume: robot still busy: %w", context.Cause(ctx))
	}
	if err != nil {
		s.dispatchLocked()
		s.mu.Unlock()
		s.log.Warn("Resume abandoned", "reason", err.Error())
		return Snapshot{}, err
	}

	wasActive := s.emergency
	s.emergency = false
	resume := s.startControlLocked(CommandResume)
	s.mu.Unlock()

	s.log.Info("Resuming operation", "emergencyWasActive", wasActive)
	return s.runControl(ctx, resume), nil
}

// startControlLocked creates a control command and moves it straight to
// Executing. Control commands bypass the queue and the tracker and hold back
// dispatch until they finish.
func (s *Service) startControlLocked(name string) *Command {
	cmd := s.newCommandLocked(Request{
		Name:     name,
		Priority: PriorityEmergency,
		Timeout:  -1,
	})
	cmd.Timeout = s.controlTimeout
	cmd.fire(eventDispatch, nil)
	s.controls[cmd.ID] = cmd
	s.holds++
	s.observeLocked()
	return cmd
}

// runControl executes a control command started by startControlLocked,
// records it and runs a dispatch pass.
func (s *Service) runControl(ctx context.Context, cmd *Command) Snapshot {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	event, outcome, _ := s.await(ctx, cmd)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.controls, cmd.ID)
	cmd.fire(event, outcome)
	s.recordLocked(cmd)
	s.holds--
	s.signalLocked()
	s.dispatchLocked()
	return cmd.snapshot()
}

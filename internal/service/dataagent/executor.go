package dataagent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/credential"
	"github.com/zhouzirui/fabric-agent/backend/internal/service/session"
)

const cancelTimeout = 10 * time.Second

var errPollTimeout = errors.New("timeout")

// Refresher re-fetches the bearer token used by the Remote.
type Refresher interface {
	Refresh(ctx context.Context) (credential.Token, error)
}

// Options tunes the poll loop.
type Options struct {
	PollInterval    time.Duration
	CancelOnTimeout bool
}

// Executor runs one question end to end against the data agent.
type Executor struct {
	remote      Remote
	creds       Refresher
	sessions    session.Store
	assistantID string
	opts        Options
	now         func() time.Time
}

// NewExecutor wires an Executor. assistantID is the agent every run targets.
func NewExecutor(remote Remote, creds Refresher, sessions session.Store, assistantID string, opts Options) *Executor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Executor{
		remote:      remote,
		creds:       creds,
		sessions:    sessions,
		assistantID: assistantID,
		opts:        opts,
		now:         time.Now,
	}
}

// AssistantID returns the agent targeted by this executor.
func (e *Executor) AssistantID() string {
	return e.assistantID
}

// Execute asks question on the thread registered as threadName, creating the thread
// when needed, and waits up to timeout for the run to finish. Every outcome, including
// failures, is reported through the returned envelope.
func (e *Executor) Execute(ctx context.Context, question string, timeout time.Duration, threadName string) (env agent.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			env = failure(question, agent.ErrorKindRemote, fmt.Errorf("panic: %v", r))
			log.Printf("[executor] recovered from panic: %v", r)
		}
	}()

	if _, err := e.creds.Refresh(ctx); err != nil {
		log.Printf("[executor] token refresh failed: %v", err)
		return failure(question, agent.ErrorKindCredential, fmt.Errorf("token refresh failed: %w", err))
	}

	sess, _, err := e.sessions.GetOrCreate(ctx, threadName, e.remote.CreateThread)
	if err != nil {
		return e.remoteFailure(question, err)
	}

	if err := e.remote.PostMessage(ctx, sess.RemoteID, question); err != nil {
		return e.remoteFailure(question, fmt.Errorf("failed to post message: %w", err))
	}

	run, err := e.remote.CreateRun(ctx, sess.RemoteID, e.assistantID)
	if err != nil {
		return e.remoteFailure(question, fmt.Errorf("failed to create run: %w", err))
	}

	run, err = e.await(ctx, sess.RemoteID, run.ID, timeout)
	switch {
	case errors.Is(err, errPollTimeout):
		log.Printf("[executor] timeout after %s thread=%s run=%s", timeout, sess.Name, run.ID)
		if e.opts.CancelOnTimeout {
			e.cancel(ctx, sess.RemoteID, run.ID)
		}
		seconds := timeout.Seconds()
		return agent.Envelope{
			Question:  question,
			Success:   false,
			Error:     "Timeout",
			ErrorKind: agent.ErrorKindTimeout,
			Timeout:   &seconds,
		}
	case err != nil:
		return e.remoteFailure(question, fmt.Errorf("failed to poll run: %w", err))
	}

	if run.Status.Failed() {
		log.Printf("[executor] run failed with status: %s", run.Status)
		return agent.Envelope{
			Question:  question,
			Success:   false,
			RunStatus: run.Status,
			Error:     fmt.Sprintf("Run %s", run.Status),
			ErrorKind: agent.ErrorKindRunFailed,
		}
	}

	steps, err := e.remote.ListRunSteps(ctx, sess.RemoteID, run.ID)
	if err != nil {
		return e.remoteFailure(question, fmt.Errorf("failed to list run steps: %w", err))
	}

	messages, err := e.remote.ListMessages(ctx, sess.RemoteID)
	if err != nil {
		return e.remoteFailure(question, fmt.Errorf("failed to list messages: %w", err))
	}

	answer := FinalAnswer(messages)
	return agent.Envelope{
		Question:     question,
		Success:      true,
		RunStatus:    run.Status,
		Run:          run.Raw,
		Steps:        stepRecords(steps),
		Messages:     messageRecords(messages),
		FinalMessage: &answer,
		ThreadName:   sess.Name,
		ThreadID:     sess.RemoteID,
		Timestamp:    float64(e.now().UnixNano()) / float64(time.Second),
	}
}

// await polls the run until it reaches a terminal status. The returned run carries the
// id even on timeout.
func (e *Executor) await(ctx context.Context, threadID, runID string, timeout time.Duration) (Run, error) {
	start := e.now()
	for {
		if e.now().Sub(start) > timeout {
			return Run{ID: runID}, errPollTimeout
		}

		run, err := e.remote.GetRun(ctx, threadID, runID)
		if err != nil {
			return Run{ID: runID}, err
		}
		if run.Status.Terminal() {
			return run, nil
		}

		if err := wait(ctx, e.opts.PollInterval); err != nil {
			return Run{ID: runID}, err
		}
	}
}

// cancel asks the remote to stop a run that is no longer being waited on.
func (e *Executor) cancel(ctx context.Context, threadID, runID string) {
	cancelCtx, done := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer done()

	if err := e.remote.CancelRun(cancelCtx, threadID, runID); err != nil {
		log.Printf("[executor] failed to cancel run=%s: %v", runID, err)
		return
	}
	log.Printf("[executor] cancelled run=%s after timeout", runID)
}

func (e *Executor) remoteFailure(question string, err error) agent.Envelope {
	log.Printf("[executor] query failed: %v", err)
	return failure(question, agent.ErrorKindRemote, err)
}

func failure(question string, kind agent.ErrorKind, err error) agent.Envelope {
	return agent.Envelope{
		Question:  question,
		Success:   false,
		Error:     err.Error(),
		ErrorKind: kind,
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

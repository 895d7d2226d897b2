// Package orchestrator runs the supervisor's reason-act-summarize pipeline:
// classify the message's intent (internal/router), execute that intent's
// fixed tool plan against the specialist servers (internal/mcpclient), and
// render a reply — optionally reformatted by an LLM summarizer that falls
// back to the deterministic renderer on any error.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldnotes-dev/agentmesh/internal/mcpclient"
	"github.com/fieldnotes-dev/agentmesh/internal/router"
	"github.com/fieldnotes-dev/agentmesh/internal/session"
)

// Summarizer reformats a deterministic reply, e.g. via an LLM. It must
// return an error rather than a degraded reply so Orchestrator can fall
// back to the deterministic render.
type Summarizer interface {
	Summarize(ctx context.Context, intent string, deterministic string, data map[string]any) (string, error)
}

// Orchestrator wires the router, the tool-call client, and the session
// store into the three-stage Handle pipeline.
type Orchestrator struct {
	Client      *mcpclient.Manager
	Sessions    session.Store
	Summarizer  Summarizer // optional
	Concurrency int

	// TurnTimeout bounds a single Handle call end to end (0 disables the
	// bound, e.g. for tests driving a context deadline of their own).
	TurnTimeout time.Duration
}

// New builds an Orchestrator with the given concurrency bound for
// independent plan steps (0 or negative falls back to 4) and a per-turn
// timeout (0 or negative falls back to 120s, spec.md §5's default).
func New(client *mcpclient.Manager, sessions session.Store, summarizer Summarizer, concurrency int, turnTimeout time.Duration) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 4
	}
	if turnTimeout <= 0 {
		turnTimeout = 120 * time.Second
	}
	return &Orchestrator{Client: client, Sessions: sessions, Summarizer: summarizer, Concurrency: concurrency, TurnTimeout: turnTimeout}
}

// Result is what Handle returns: the rendered reply, the full trace, and
// the intent that was detected.
type Result struct {
	Intent router.Intent
	Reply  string
	Trace  []TraceEvent
}

type stepResult struct {
	index  int
	Server string
	Tool   string
	Data   map[string]any
	Err    error
}

// Handle runs Reason, Act, and Summarize for one inbound message and
// records the turn (plus any artifacts) to the session store.
func (o *Orchestrator) Handle(ctx context.Context, sessionID, message string) (Result, error) {
	if o.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.TurnTimeout)
		defer cancel()
	}

	match := router.Detect(message)
	trace := []TraceEvent{{Kind: TraceRoute, Timestamp: time.Now(), Data: map[string]any{
		"intent": string(match.Intent),
	}}}

	var (
		results   []stepResult
		artifacts []session.Artifact
	)

	if match.Intent == router.IntentSessionAnalysis {
		sess, err := o.Sessions.Get(ctx, sessionID)
		if err != nil {
			return Result{}, fmt.Errorf("load session: %w", err)
		}
		artifacts = sess.Artifacts
	} else if plan, ok := Plans[match.Intent]; ok {
		stepResults, stepTrace := o.act(ctx, sessionID, plan, match.Entities)
		results = stepResults
		trace = append(trace, stepTrace...)

		for _, r := range results {
			if r.Err != nil || r.Data == nil {
				continue
			}
			artifact := session.Artifact{
				Type:      r.Tool,
				SessionID: sessionID,
				Timestamp: time.Now(),
				Fields:    r.Data,
			}
			artifacts = append(artifacts, artifact)
			if err := o.Sessions.AppendArtifact(ctx, sessionID, artifact); err != nil {
				trace = append(trace, TraceEvent{Kind: TraceError, Timestamp: time.Now(), Error: err.Error()})
			}
		}
	}

	reply := render(match.Intent, match.Entities, results, artifacts)
	if o.Summarizer != nil {
		data := map[string]any{"entities": match.Entities}
		if summarized, err := o.Summarizer.Summarize(ctx, string(match.Intent), reply, data); err == nil && summarized != "" {
			reply = summarized
		}
	}
	trace = append(trace, TraceEvent{Kind: TraceReply, Timestamp: time.Now(), Data: map[string]any{"reply": reply}})

	if err := o.Sessions.AppendTurn(ctx, sessionID,
		session.Message{Role: "user", Content: message, Timestamp: time.Now()},
		session.Message{Role: "assistant", Content: reply, Timestamp: time.Now()},
	); err != nil {
		return Result{}, fmt.Errorf("append turn: %w", err)
	}

	return Result{Intent: match.Intent, Reply: reply, Trace: trace}, nil
}

// act runs a plan's steps with bounded concurrency, aborting remaining
// steps only when a Critical step fails. Steps are grouped into batches at
// every Sequential step (that step starts a new batch); each batch's steps
// run concurrently, but a batch only launches once the previous one has
// fully completed, so a Sequential step's BuildArgs always sees every
// earlier batch's output in priorData.
func (o *Orchestrator) act(ctx context.Context, sessionID string, plan Plan, entities router.Entities) ([]stepResult, []TraceEvent) {
	results := make([]stepResult, len(plan.Steps))
	sem := make(chan struct{}, o.Concurrency)
	var mu sync.Mutex
	var aborted bool

	for _, batch := range batchSteps(plan.Steps) {
		var wg sync.WaitGroup
		for _, i := range batch {
			step := plan.Steps[i]

			mu.Lock()
			stop := aborted
			mu.Unlock()
			if stop {
				results[i] = stepResult{index: i, Server: step.Server, Tool: step.Tool, Err: fmt.Errorf("skipped: prior critical step failed")}
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(i int, step Step) {
				defer wg.Done()
				defer func() { <-sem }()

				args := step.BuildArgs(entities, priorData(results))
				data, err := o.Client.CallTool(ctx, step.Server, sessionID, step.Tool, args, "")

				mu.Lock()
				results[i] = stepResult{index: i, Server: step.Server, Tool: step.Tool, Data: data, Err: err}
				if err != nil && step.Critical {
					aborted = true
				}
				mu.Unlock()
			}(i, step)
		}
		wg.Wait()
	}
	sortStepResults(results)

	trace := make([]TraceEvent, 0, len(results)*2)
	for _, r := range results {
		trace = append(trace, TraceEvent{Kind: TraceToolCall, Server: r.Server, Tool: r.Tool, Timestamp: time.Now()})
		// A tool server's Resolver reports the arguments it filled in under
		// "__resolution_events"; each becomes a parameter_resolved event.
		if events, ok := r.Data["__resolution_events"].([]any); ok {
			for _, raw := range events {
				ev, _ := raw.(map[string]any)
				arg, _ := ev["arg"].(string)
				trace = append(trace, TraceEvent{Kind: TraceParameterResolved, Server: r.Server, Tool: r.Tool, Arg: arg, Data: ev, Timestamp: time.Now()})
			}
		}
		if r.Err != nil {
			trace = append(trace, TraceEvent{Kind: TraceError, Server: r.Server, Tool: r.Tool, Error: r.Err.Error(), Timestamp: time.Now()})
			continue
		}
		trace = append(trace, TraceEvent{Kind: TraceToolResult, Server: r.Server, Tool: r.Tool, Data: r.Data, Timestamp: time.Now()})
	}
	return results, trace
}

// batchSteps groups a plan's step indices into ordered batches, starting a
// new batch at every Sequential step so it only dispatches once every
// earlier batch has fully completed.
func batchSteps(steps []Step) [][]int {
	var batches [][]int
	var current []int
	for i, step := range steps {
		if step.Sequential && len(current) > 0 {
			batches = append(batches, current)
			current = nil
		}
		current = append(current, i)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// priorData flattens the fields gathered so far into one map so a later
// step's BuildArgs can reference an earlier step's output (e.g. riskengine
// reading threatintel's CVSS score). Later steps overwrite earlier ones on
// key collision; steps run concurrently within a plan only when they don't
// depend on each other, so collisions in practice don't occur.
func priorData(results []stepResult) map[string]any {
	out := map[string]any{}
	for _, r := range results {
		for k, v := range r.Data {
			out[k] = v
		}
	}
	return out
}

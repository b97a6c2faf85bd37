package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/makeanavatar/api/internal/client"
	"github.com/makeanavatar/api/internal/model"
)

// ErrIdentityMissing is the configuration failure returned before any
// clip is touched when no locked avatar identity was supplied.
var ErrIdentityMissing = errors.New("avatar identity missing, cannot render")

// errRunCanceled aborts the in-flight scene without marking it failed
var errRunCanceled = errors.New("render canceled")

// nominalClipDuration is the fixed clip length the providers render, in seconds
const nominalClipDuration = 6.0

// CancelSignal is the cooperative cancellation flag. It is checked at
// the top of the loop and immediately before every sleep, never during
// one, so cancellation takes effect within one wait interval.
type CancelSignal interface {
	Canceled(ctx context.Context) bool
}

type neverCanceled struct{}

func (neverCanceled) Canceled(context.Context) bool { return false }

// NeverCanceled returns a signal that is never raised
func NeverCanceled() CancelSignal { return neverCanceled{} }

// ClipStore persists fetched clip bytes and returns a retrievable URL.
// A nil store keeps the provider's own result reference.
type ClipStore interface {
	SaveClip(ctx context.Context, sceneID int, body io.Reader) (string, error)
}

// Config holds the orchestrator's timing constants
type Config struct {
	SubmitAttempts  int
	BackoffCooldown time.Duration
	PollInterval    time.Duration
	InterClipDelay  time.Duration
	MaxClipWait     time.Duration
}

// Params wires an orchestrator run
type Params struct {
	Registry        *Registry
	Provider        client.VideoProvider
	Identity        *model.AvatarIdentity
	Prompts         []model.GeneratedPrompt
	Settings        model.RenderSettings
	TargetModel     model.TargetModel
	ReferenceImages []client.ReferenceImage
	Resolution      string
	AspectRatio     string
	Fallback        FallbackSubstituter
	Store           ClipStore
	Cancel          CancelSignal
	Config          Config
}

// Orchestrator drives every scene of one render session to a terminal
// state, strictly sequentially and in ascending scene order.
type Orchestrator struct {
	registry    *Registry
	provider    client.VideoProvider
	identity    *model.AvatarIdentity
	prompts     map[int]string
	settings    model.RenderSettings
	targetModel model.TargetModel
	refs        []client.ReferenceImage
	resolution  string
	aspectRatio string
	backoff     BackoffPolicy
	fallback    FallbackSubstituter
	store       ClipStore
	cancel      CancelSignal
	cfg         Config

	// sleep is injectable so tests run without real waits
	sleep func(time.Duration)
	now   func() time.Time
}

// NewOrchestrator builds the control loop for one session
func NewOrchestrator(p Params) *Orchestrator {
	prompts := make(map[int]string, len(p.Prompts))
	for _, gp := range p.Prompts {
		prompts[gp.SceneID] = gp.PromptContent
	}

	cancel := p.Cancel
	if cancel == nil {
		cancel = NeverCanceled()
	}

	return &Orchestrator{
		registry:    p.Registry,
		provider:    p.Provider,
		identity:    p.Identity,
		prompts:     prompts,
		settings:    p.Settings,
		targetModel: p.TargetModel,
		refs:        p.ReferenceImages,
		resolution:  p.Resolution,
		aspectRatio: p.AspectRatio,
		backoff:     BackoffPolicy{Attempts: p.Config.SubmitAttempts, Cooldown: p.Config.BackoffCooldown},
		fallback:    p.Fallback,
		store:       p.Store,
		cancel:      cancel,
		cfg:         p.Config,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// Run drives all clips to a terminal state. Clips already completed are
// skipped, so re-running after cancellation or a partial failure
// resumes from the first non-completed scene. Job-local errors are
// recorded on the clip record and never returned; only configuration
// failures surface as errors.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.identity == nil {
		return ErrIdentityMissing
	}

	total := o.registry.Len()
	for i := 0; i < total; i++ {
		if o.cancel.Canceled(ctx) {
			return nil
		}

		clip := o.registry.Clip(i)
		if clip.Status == model.RenderStatusCompleted {
			continue
		}

		o.registry.MarkRendering(i)

		err := o.renderScene(ctx, i, clip.SceneID)
		if errors.Is(err, errRunCanceled) {
			// Never leave the in-flight clip stuck on rendering; reset
			// it so a later resume re-drives it.
			o.registry.ResetPending(i, "canceled before completion")
			return nil
		}
		if err != nil {
			log.Printf("Scene %d render failed: %v", clip.SceneID, err)
			o.registry.Fail(i, err.Error())
		}

		clip = o.registry.Clip(i)
		if clip.Status == model.RenderStatusFailed && o.settings.Mode == model.RenderModeBatch {
			return nil
		}

		// Rate governor: after a genuine success, hold off before the
		// next submission to stay under the per-minute quota. Fallback
		// completions and failures consumed no quota and skip the wait.
		if clip.Status == model.RenderStatusCompleted && !clip.Fallback && i < total-1 {
			if o.cancel.Canceled(ctx) {
				return nil
			}
			o.registry.SetDiagnostic(i+1, fmt.Sprintf("Waiting %s to respect provider rate limit...", o.cfg.InterClipDelay))
			o.sleep(o.cfg.InterClipDelay)
			o.registry.SetDiagnostic(i+1, "")
		}
	}

	return nil
}

// renderScene takes one scene to completed or returns a job-local error.
// A nil return means the clip record already holds a terminal success
// (real or fallback).
func (o *Orchestrator) renderScene(ctx context.Context, idx, sceneID int) error {
	prompt, ok := o.prompts[sceneID]
	if !ok {
		return fmt.Errorf("no prompt generated for scene %d", sceneID)
	}

	req := &client.SubmitVideoRequest{
		Prompt:          prompt,
		ReferenceImages: o.refs,
		Resolution:      o.resolution,
		AspectRatio:     o.aspectRatio,
	}

	op, err := o.submitWithBackoff(ctx, idx, req)
	if err != nil {
		return err
	}
	if op == nil {
		// Submission budget exhausted while rate-limited: terminal
		// degraded completion, not a failure.
		res := o.fallback.Substitute()
		o.registry.CompleteFallback(idx, res.URL, res.Duration, o.provider.Name(), o.targetModel, res.Diagnostic)
		return nil
	}

	resultRef, err := o.pollUntilDone(ctx, idx, op)
	if err != nil {
		return err
	}

	return o.completeScene(ctx, idx, sceneID, resultRef)
}

// submitWithBackoff retries rate-limited submissions on the fixed
// cool-down. It returns (nil, nil) when the attempt budget is exhausted
// while still rate-limited.
func (o *Orchestrator) submitWithBackoff(ctx context.Context, idx int, req *client.SubmitVideoRequest) (*client.VideoOperation, error) {
	attempt := 0
	for {
		attempt++
		op, err := o.provider.Submit(ctx, req)
		if err == nil {
			o.registry.SetDiagnostic(idx, "")
			return op, nil
		}
		if !client.IsRateLimited(err) {
			return nil, err
		}

		decision := o.backoff.Next(attempt)
		if decision.GiveUp {
			log.Printf("Provider quota exhausted after %d attempts, substituting placeholder", attempt)
			return nil, nil
		}

		o.registry.SetDiagnostic(idx, fmt.Sprintf("Rate limit hit. Retrying in %s...", decision.Wait))
		if o.cancel.Canceled(ctx) {
			return nil, errRunCanceled
		}
		o.sleep(decision.Wait)
	}
}

// pollUntilDone polls the operation at the fixed interval until it
// finishes. Transient poll failures are logged and treated as "not yet
// done"; they never fail an otherwise-successful render.
func (o *Orchestrator) pollUntilDone(ctx context.Context, idx int, op *client.VideoOperation) (string, error) {
	deadline := o.now().Add(o.cfg.MaxClipWait)

	for {
		if o.cancel.Canceled(ctx) {
			return "", errRunCanceled
		}

		res, err := o.provider.Poll(ctx, op)
		switch {
		case err == nil && res.Done:
			return res.ResultRef, nil
		case err != nil && !client.IsTransient(err):
			return "", err
		case err != nil:
			log.Printf("Polling error (will retry next tick): %v", err)
		}

		if o.now().After(deadline) {
			return "", fmt.Errorf("render timed out after %s", o.cfg.MaxClipWait)
		}
		if o.cancel.Canceled(ctx) {
			return "", errRunCanceled
		}
		o.sleep(o.cfg.PollInterval)
	}
}

// completeScene fetches the rendered asset, persists it, and records
// the terminal result on the registry.
func (o *Orchestrator) completeScene(ctx context.Context, idx, sceneID int, resultRef string) error {
	body, err := o.provider.Fetch(ctx, resultRef)
	if err != nil {
		return err
	}
	defer body.Close()

	url := resultRef
	if o.store != nil {
		stored, err := o.store.SaveClip(ctx, sceneID, body)
		if err != nil {
			// Keep the provider reference rather than failing a render
			// that already succeeded.
			log.Printf("Failed to persist clip for scene %d, keeping provider URL: %v", sceneID, err)
		} else {
			url = stored
		}
	}

	o.registry.Complete(idx, url, nominalClipDuration, o.provider.Name(), o.targetModel)
	return nil
}

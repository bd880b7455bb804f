package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/netopscockpit/cockpit/internal/middleware"
	"github.com/netopscockpit/cockpit/internal/models"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/pkg/ulid"
)

// maxWorkers bounds concurrent host probes per job.
const maxWorkers = 10

// CredentialSource resolves and decrypts credentials for a scan run,
// preserving the requested order.
type CredentialSource interface {
	ResolveAll(ctx context.Context, ids []int64) ([]Credential, error)
}

// TemplateSource resolves TextFSM parser template bodies by id,
// preserving order.
type TemplateSource interface {
	ParserTemplates(ctx context.Context, ids []int64) ([]string, error)
}

// StartRequest describes one discovery run.
type StartRequest struct {
	CIDRs             []string
	CredentialIDs     []int64
	Mode              models.DiscoveryMode
	ParserTemplateIDs []int64
}

// Engine creates and supervises scan jobs.
type Engine struct {
	registry    *Registry
	pinger      Pinger
	credentials CredentialSource
	templates   TemplateSource
	clock       clockwork.Clock

	// newProber builds the per-job classification prober; overridable
	// in tests.
	newProber func(mode models.DiscoveryMode, textfsmTemplates []string) Prober
}

// NewEngine wires the production engine. sshTimeout bounds every SSH
// connect and driver attempt.
func NewEngine(registry *Registry, pinger Pinger, credentials CredentialSource, templates TemplateSource, sshTimeout time.Duration, clock clockwork.Clock) *Engine {
	dialer := NewSSHDialer()
	return &Engine{
		registry:    registry,
		pinger:      pinger,
		credentials: credentials,
		templates:   templates,
		clock:       clock,
		newProber: func(mode models.DiscoveryMode, textfsmTemplates []string) Prober {
			if mode == models.DiscoveryModeSSHLogin {
				return NewSSHLoginProber(dialer, sshTimeout, textfsmTemplates)
			}
			return NewNapalmProber(dialer, sshTimeout)
		},
	}
}

// Start validates the request, registers a job and launches its
// supervisor. The returned job is already visible in the registry.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*Job, error) {
	if len(req.CredentialIDs) == 0 {
		return nil, apierrors.NewValidationError("credential_ids", "at least one credential is required")
	}
	if !models.ValidDiscoveryMode(string(req.Mode)) {
		return nil, apierrors.NewValidationError("discovery_mode", fmt.Sprintf("unknown mode %q", req.Mode))
	}

	targets, err := ExpandCIDRs(req.CIDRs)
	if err != nil {
		return nil, err
	}

	job := newJob(ulid.New(), e.clock.Now(), req.CIDRs, req.CredentialIDs, req.Mode, len(targets))
	e.registry.Add(job)
	middleware.IncrementScansStarted()

	// The supervisor outlives the HTTP request that started it.
	go e.supervise(context.WithoutCancel(ctx), job, targets, req)

	return job, nil
}

// supervise resolves run inputs and fans host workers out over the
// bounded pool, finishing the job when every target was processed.
func (e *Engine) supervise(ctx context.Context, job *Job, targets []string, req StartRequest) {
	start := time.Now()

	creds, err := e.credentials.ResolveAll(ctx, req.CredentialIDs)
	if err != nil {
		slog.Error("scan aborted: credential resolution failed", "job_id", job.ID(), "error", err)
		job.finish(fmt.Sprintf("credential resolution failed: %v", err))
		return
	}

	var textfsmTemplates []string
	if req.Mode == models.DiscoveryModeSSHLogin && len(req.ParserTemplateIDs) > 0 {
		textfsmTemplates, err = e.templates.ParserTemplates(ctx, req.ParserTemplateIDs)
		if err != nil {
			slog.Error("scan aborted: parser template resolution failed", "job_id", job.ID(), "error", err)
			job.finish(fmt.Sprintf("parser template resolution failed: %v", err))
			return
		}
	}

	prober := e.newProber(req.Mode, textfsmTemplates)

	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	for _, ip := range targets {
		sem <- struct{}{}
		wg.Add(1)
		go func(ip string) {
			defer func() {
				<-sem
				wg.Done()
			}()
			e.probeHost(ctx, job, ip, creds, prober)
		}(ip)
	}
	wg.Wait()

	job.finish()
	status := job.Status()
	slog.Info("scan finished",
		"job_id", job.ID(),
		"total_targets", status.Progress.TotalTargets,
		"authenticated", status.Progress.Authenticated,
		"unreachable", status.Progress.Unreachable,
		"auth_failed", status.Progress.AuthFailed,
		"driver_not_supported", status.Progress.DriverNotSupported,
		"duration", time.Since(start))
}

// probeHost runs the sequential per-host pipeline: liveness first,
// then credential trials in order, stopping at the first success.
func (e *Engine) probeHost(ctx context.Context, job *Job, ip string, creds []Credential, prober Prober) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("host worker panic", "job_id", job.ID(), "ip", ip, "panic", r)
			job.markAuthFailed()
		}
	}()

	if !e.pinger.Ping(ctx, ip) {
		job.markUnreachable()
		middleware.RecordHostOutcome("unreachable")
		return
	}
	job.markAlive()

	start := time.Now()
	sawNotSupported := false
	for _, cred := range creds {
		outcome := prober.Probe(ctx, ip, cred)
		switch outcome.kind {
		case outcomeAuthenticated:
			job.markAuthenticated(models.ScanResult{
				IP:           ip,
				CredentialID: cred.ID,
				DeviceType:   models.DeviceType(outcome.deviceType),
				Hostname:     outcome.hostname,
				Platform:     outcome.platform,
			})
			slog.Info("host classified",
				"job_id", job.ID(), "ip", ip, "credential_id", cred.ID,
				"device_type", outcome.deviceType, "platform", outcome.platform,
				"duration", time.Since(start))
			middleware.RecordHostOutcome("authenticated")
			return
		case outcomeNotSupported:
			sawNotSupported = true
		}
	}

	if sawNotSupported {
		job.markDriverNotSupported()
		middleware.RecordHostOutcome("driver_not_supported")
	} else {
		job.markAuthFailed()
		middleware.RecordHostOutcome("auth_failed")
	}
}

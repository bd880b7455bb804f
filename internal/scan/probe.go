package scan

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Credential is a decrypted credential handed to the probers. It lives
// only for the duration of a scan job and never leaves the process.
type Credential struct {
	ID       int64
	Username string
	Password string
}

// Pinger answers whether a host responds to ICMP.
type Pinger interface {
	Ping(ctx context.Context, ip string) bool
}

// outcomeKind classifies one credential trial against one host.
type outcomeKind int

const (
	// outcomeAuthenticated: the credential opened the host and a
	// classification was produced.
	outcomeAuthenticated outcomeKind = iota
	// outcomeAuthFailed: the credential was rejected or the transport
	// could not be established.
	outcomeAuthFailed
	// outcomeNotSupported: the transport authenticated but no driver
	// and no fallback could classify the host.
	outcomeNotSupported
)

// probeOutcome is the result of one credential trial.
type probeOutcome struct {
	kind       outcomeKind
	deviceType string
	hostname   string
	platform   string
}

// Prober attempts to authenticate and classify one host with one
// credential.
type Prober interface {
	Probe(ctx context.Context, ip string, cred Credential) probeOutcome
}

// icmpPinger probes liveness with ICMP echo: up to `attempts` echoes of
// `timeout` each, succeeding on the first reply.
type icmpPinger struct {
	timeout    time.Duration
	attempts   int
	privileged bool
}

// NewICMPPinger builds the production liveness prober.
func NewICMPPinger(timeout time.Duration, attempts int, privileged bool) Pinger {
	return &icmpPinger{timeout: timeout, attempts: attempts, privileged: privileged}
}

func (p *icmpPinger) Ping(ctx context.Context, ip string) bool {
	for i := 0; i < p.attempts; i++ {
		if ctx.Err() != nil {
			return false
		}
		pinger, err := probing.NewPinger(ip)
		if err != nil {
			return false
		}
		pinger.SetPrivileged(p.privileged)
		pinger.Count = 1
		pinger.Timeout = p.timeout
		if err := pinger.RunWithContext(ctx); err != nil {
			continue
		}
		if pinger.Statistics().PacketsRecv > 0 {
			return true
		}
	}
	return false
}

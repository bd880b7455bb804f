package scan

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// ciscoDriver is one entry of the fixed driver priority list. Each
// driver issues its own hostname command and recognizes its own output
// shape; drivers are not dynamically discoverable.
type ciscoDriver struct {
	name     string
	command  string
	hostname func(stdout string) (string, bool)
}

var iosHostnameRe = regexp.MustCompile(`(?m)^(\S+)\s+uptime is`)

// ciscoDrivers is tried in fixed priority order.
var ciscoDrivers = []ciscoDriver{
	{
		name:    "ios",
		command: "show version",
		hostname: func(out string) (string, bool) {
			if !strings.Contains(out, "Cisco IOS") {
				return "", false
			}
			if m := iosHostnameRe.FindStringSubmatch(out); m != nil {
				return m[1], true
			}
			return "", false
		},
	},
	{
		name:    "nxos_ssh",
		command: "show hostname",
		hostname: func(out string) (string, bool) {
			line := strings.TrimSpace(out)
			if line == "" || strings.Contains(line, "Invalid") || strings.ContainsAny(line, " \t") {
				return "", false
			}
			return line, true
		},
	},
	{
		name:    "iosxr",
		command: "show running-config hostname",
		hostname: func(out string) (string, bool) {
			for _, line := range strings.Split(out, "\n") {
				fields := strings.Fields(line)
				if len(fields) == 2 && fields[0] == "hostname" {
					return fields[1], true
				}
			}
			return "", false
		},
	},
}

// napalmProber classifies hosts by walking the Cisco driver priority
// list, falling back to a Linux uname probe when the transport
// authenticates but no driver recognizes the host.
type napalmProber struct {
	dialer  Dialer
	timeout time.Duration
}

// NewNapalmProber builds the driver-walk prober.
func NewNapalmProber(dialer Dialer, timeout time.Duration) Prober {
	return &napalmProber{dialer: dialer, timeout: timeout}
}

func (p *napalmProber) Probe(ctx context.Context, ip string, cred Credential) probeOutcome {
	sess, err := p.dialer.Dial(ctx, ip, cred, p.timeout)
	if err != nil {
		if isAuthRejection(err) {
			slog.Debug("credential rejected", "ip", ip, "credential_id", cred.ID)
		} else {
			slog.Debug("transport failed", "ip", ip, "credential_id", cred.ID, "error", err)
		}
		return probeOutcome{kind: outcomeAuthFailed}
	}
	defer sess.Close()

	for _, drv := range ciscoDrivers {
		cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
		stdout, _, _, err := sess.Run(cmdCtx, drv.command)
		cancel()
		if err != nil {
			continue
		}
		if hostname, ok := drv.hostname(stdout); ok {
			return probeOutcome{
				kind:       outcomeAuthenticated,
				deviceType: "cisco",
				hostname:   hostname,
				platform:   drv.name,
			}
		}
	}

	// No Cisco driver matched; try the Linux probe on the same session.
	if out := p.linuxProbe(ctx, sess); out != nil {
		return *out
	}

	return probeOutcome{kind: outcomeNotSupported}
}

// linuxProbe classifies a generic host by its uname output.
func (p *napalmProber) linuxProbe(ctx context.Context, sess Session) *probeOutcome {
	cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	kernel, _, exitCode, err := sess.Run(cmdCtx, "uname -s")
	if err != nil || exitCode != 0 {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(kernel), "linux") {
		return nil
	}

	hostname := ""
	if out, _, code, err := sess.Run(cmdCtx, "uname -n"); err == nil && code == 0 {
		hostname = strings.TrimSpace(out)
	}
	return &probeOutcome{
		kind:       outcomeAuthenticated,
		deviceType: "linux",
		hostname:   hostname,
		platform:   "linux",
	}
}

package scan

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sirikothe/gotextfsm"
)

// showVersionMinLen is the threshold below which `show version` output
// is considered noise rather than a Cisco banner.
const showVersionMinLen = 50

// sshLoginProber classifies hosts through a plain SSH login: Cisco via
// `show version` (optionally parsed with operator-supplied TextFSM
// templates), Linux via `hostname` and `uname -a`, otherwise unknown
// but ssh-accessible.
type sshLoginProber struct {
	dialer    Dialer
	timeout   time.Duration
	templates []string
}

// NewSSHLoginProber builds the ssh-login prober. templates are TextFSM
// sources tried in order against `show version` output.
func NewSSHLoginProber(dialer Dialer, timeout time.Duration, templates []string) Prober {
	return &sshLoginProber{dialer: dialer, timeout: timeout, templates: templates}
}

func (p *sshLoginProber) Probe(ctx context.Context, ip string, cred Credential) probeOutcome {
	sess, err := p.dialer.Dial(ctx, ip, cred, p.timeout)
	if err != nil {
		return probeOutcome{kind: outcomeAuthFailed}
	}
	defer sess.Close()

	cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
	stdout, stderr, _, err := sess.Run(cmdCtx, "show version")
	cancel()
	if err == nil && len(strings.TrimSpace(stdout)) >= showVersionMinLen && strings.TrimSpace(stderr) == "" {
		hostname, platform := parseShowVersion(stdout, p.templates)
		return probeOutcome{
			kind:       outcomeAuthenticated,
			deviceType: "cisco",
			hostname:   hostname,
			platform:   platform,
		}
	}

	cmdCtx, cancel = context.WithTimeout(ctx, p.timeout)
	hostnameOut, _, exitCode, err := sess.Run(cmdCtx, "hostname")
	cancel()
	if err == nil && exitCode == 0 && strings.TrimSpace(hostnameOut) != "" {
		platform := "linux-unknown"
		cmdCtx, cancel = context.WithTimeout(ctx, p.timeout)
		if unameOut, _, code, uerr := sess.Run(cmdCtx, "uname -a"); uerr == nil && code == 0 && strings.TrimSpace(unameOut) != "" {
			platform = strings.TrimSpace(unameOut)
		}
		cancel()
		return probeOutcome{
			kind:       outcomeAuthenticated,
			deviceType: "linux",
			hostname:   strings.TrimSpace(hostnameOut),
			platform:   platform,
		}
	}

	return probeOutcome{
		kind:       outcomeAuthenticated,
		deviceType: "unknown",
		platform:   "ssh-accessible",
	}
}

// parseShowVersion extracts hostname and platform from `show version`
// output. Templates are tried in order; the first that yields a
// non-empty hostname wins. Without a match the raw classification
// stands with empty hostname and a generic platform.
func parseShowVersion(output string, templates []string) (hostname, platform string) {
	platform = "cisco"
	for _, tpl := range templates {
		h, p, ok := runTextFSM(tpl, output)
		if ok && h != "" {
			if p != "" {
				platform = p
			}
			return h, platform
		}
	}
	return "", platform
}

// runTextFSM applies one TextFSM template, reading HOSTNAME and
// PLATFORM from the first record that carries a hostname.
func runTextFSM(template, input string) (hostname, platform string, ok bool) {
	fsm := gotextfsm.TextFSM{}
	if err := fsm.ParseString(template); err != nil {
		slog.Warn("invalid textfsm template", "error", err)
		return "", "", false
	}
	parser := gotextfsm.ParserOutput{}
	if err := parser.ParseTextString(input, fsm, true); err != nil {
		return "", "", false
	}
	for _, record := range parser.Dict {
		if h := textFSMValue(record, "HOSTNAME"); h != "" {
			return h, textFSMValue(record, "PLATFORM"), true
		}
	}
	return "", "", false
}

func textFSMValue(record map[string]interface{}, key string) string {
	v, ok := record[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []string:
		if len(t) > 0 {
			return strings.TrimSpace(t[0])
		}
	}
	return ""
}

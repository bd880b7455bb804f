package scan

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Session is an authenticated command channel to one host.
type Session interface {
	// Run executes cmd and returns its output and exit code. A non-zero
	// exit is not an error; transport failures are.
	Run(ctx context.Context, cmd string) (stdout, stderr string, exitCode int, err error)
	Close() error
}

// Dialer opens authenticated sessions. The production implementation
// speaks SSH; tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, ip string, cred Credential, timeout time.Duration) (Session, error)
}

// isAuthRejection reports whether a dial failure was a credential
// rejection rather than a transport problem.
func isAuthRejection(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "unable to authenticate")
}

type sshDialer struct{}

// NewSSHDialer builds the production SSH transport.
func NewSSHDialer() Dialer {
	return &sshDialer{}
}

func (d *sshDialer) Dial(ctx context.Context, ip string, cred Credential, timeout time.Duration) (Session, error) {
	cfg := &ssh.ClientConfig{
		User: cred.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cred.Password),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = cred.Password
				}
				return answers, nil
			}),
		},
		// Scanned hosts are unknown by definition; host keys cannot be
		// pinned here.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, "22"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", ip, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, ip, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &sshSession{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

type sshSession struct {
	client *ssh.Client
}

func (s *sshSession) Run(ctx context.Context, cmd string) (string, string, int, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("failed to open session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	select {
	case <-ctx.Done():
		sess.Signal(ssh.SIGKILL)
		return stdout.String(), stderr.String(), -1, ctx.Err()
	case err := <-done:
		exitCode := 0
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				exitCode = exitErr.ExitStatus()
			} else {
				return stdout.String(), stderr.String(), -1, err
			}
		}
		return stdout.String(), stderr.String(), exitCode, nil
	}
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

package gitrepo

import (
	"os"
	"sync"
)

// sslEnvVars are the variables git consults for TLS behavior. They are
// process-global, so mutation is serialized and scoped: snapshot on
// entry, restore on every exit path.
var sslEnvVars = []string{"GIT_SSL_NO_VERIFY", "GIT_SSL_CAINFO", "GIT_SSL_CERT"}

var sslEnvMu sync.Mutex

// sslScope holds the SSL environment lock with the prior values saved.
type sslScope struct {
	saved map[string]*string
}

// enterSSLScope acquires the environment lock and applies the SSL
// variables for one repository. The caller must defer scope.exit().
func enterSSLScope(verifySSL bool, caInfo, cert string) *sslScope {
	sslEnvMu.Lock()

	s := &sslScope{saved: make(map[string]*string, len(sslEnvVars))}
	for _, name := range sslEnvVars {
		if v, ok := os.LookupEnv(name); ok {
			val := v
			s.saved[name] = &val
		} else {
			s.saved[name] = nil
		}
	}

	if !verifySSL {
		os.Setenv("GIT_SSL_NO_VERIFY", "1")
	} else {
		os.Unsetenv("GIT_SSL_NO_VERIFY")
	}
	if caInfo != "" {
		os.Setenv("GIT_SSL_CAINFO", caInfo)
	}
	if cert != "" {
		os.Setenv("GIT_SSL_CERT", cert)
	}

	return s
}

// exit restores the snapshot and releases the lock. Safe to call from
// a defer so panics also restore.
func (s *sslScope) exit() {
	for name, val := range s.saved {
		if val == nil {
			os.Unsetenv(name)
		} else {
			os.Setenv(name, *val)
		}
	}
	sslEnvMu.Unlock()
}

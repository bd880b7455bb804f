package gitrepo

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSSLScope_SetAndRestore(t *testing.T) {
	os.Unsetenv("GIT_SSL_NO_VERIFY")
	os.Setenv("GIT_SSL_CAINFO", "/etc/prior-ca.pem")
	defer os.Unsetenv("GIT_SSL_CAINFO")

	scope := enterSSLScope(false, "/etc/new-ca.pem", "/etc/cert.pem")

	assert.Equal(t, "1", os.Getenv("GIT_SSL_NO_VERIFY"))
	assert.Equal(t, "/etc/new-ca.pem", os.Getenv("GIT_SSL_CAINFO"))
	assert.Equal(t, "/etc/cert.pem", os.Getenv("GIT_SSL_CERT"))

	scope.exit()

	_, set := os.LookupEnv("GIT_SSL_NO_VERIFY")
	assert.False(t, set, "GIT_SSL_NO_VERIFY must not outlive the scope")
	assert.Equal(t, "/etc/prior-ca.pem", os.Getenv("GIT_SSL_CAINFO"))
	_, set = os.LookupEnv("GIT_SSL_CERT")
	assert.False(t, set)
}

func TestSSLScope_VerifyClearsNoVerify(t *testing.T) {
	os.Setenv("GIT_SSL_NO_VERIFY", "1")

	scope := enterSSLScope(true, "", "")
	_, set := os.LookupEnv("GIT_SSL_NO_VERIFY")
	assert.False(t, set, "verify_ssl repositories must not inherit a stale no-verify")
	scope.exit()

	assert.Equal(t, "1", os.Getenv("GIT_SSL_NO_VERIFY"), "prior value restored")
	os.Unsetenv("GIT_SSL_NO_VERIFY")
}

func TestSSLScope_RestoreOnPanic(t *testing.T) {
	os.Unsetenv("GIT_SSL_NO_VERIFY")

	func() {
		defer func() { recover() }()
		scope := enterSSLScope(false, "", "")
		defer scope.exit()
		panic("boom")
	}()

	_, set := os.LookupEnv("GIT_SSL_NO_VERIFY")
	assert.False(t, set, "scope must restore even when the caller panics")
}

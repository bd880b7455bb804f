package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/netopscockpit/cockpit/internal/cache"
)

func newTestCache() *cache.Cache {
	c := cache.New(10*time.Minute, clockwork.NewFakeClock())
	c.Set("repo:1:status", "cached", 0)
	c.Set("repo:1:commits:main", "cached", 0)
	c.Set("repo:2:status", "cached", 0)
	return c
}

func TestCacheHandler_Stats(t *testing.T) {
	h := NewCacheHandler(newTestCache())

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":3`)
	assert.Contains(t, rec.Body.String(), "repo:1:commits:main")
}

func TestCacheHandler_ClearNamespace(t *testing.T) {
	c := newTestCache()
	h := NewCacheHandler(c)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/clear", map[string]any{"namespace": "repo:1:"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cleared":2`)
	assert.Equal(t, 1, c.Stats().Items)
}

func TestCacheHandler_ClearAll(t *testing.T) {
	c := newTestCache()
	h := NewCacheHandler(c)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/clear", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cleared":3`)
	assert.Equal(t, 0, c.Stats().Items)
}

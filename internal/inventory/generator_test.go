package inventory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netopscockpit/cockpit/internal/models"
)

func sampleDevices() []map[string]any {
	return []map[string]any{
		{"name": "srv-1", "primary_ip4": "10.0.0.9", "platform": "linux"},
		{"name": "srv-2", "primary_ip4": "10.0.0.10", "platform": "linux"},
	}
}

func TestRender_TemplateContext(t *testing.T) {
	g := NewGenerator(nil, t.TempDir())

	tpl := `hosts: {{ .total_devices }}
{{- range .devices }}
{{ .name }}: {{ .primary_ip4 }}
{{- end }}`

	out := g.Render(tpl, sampleDevices())
	assert.Contains(t, out, "hosts: 2")
	assert.Contains(t, out, "srv-1: 10.0.0.9")
	assert.Contains(t, out, "srv-2: 10.0.0.10")
}

func TestRender_SprigFunctions(t *testing.T) {
	g := NewGenerator(nil, t.TempDir())

	out := g.Render(`{{ range .all_devices }}{{ .name | upper }} {{ end }}`, sampleDevices())
	assert.Contains(t, out, "SRV-1")
	assert.Contains(t, out, "SRV-2")
}

func TestRender_FallbackOnParseError(t *testing.T) {
	g := NewGenerator(nil, t.TempDir())

	out := g.Render(`{{ .devices `, sampleDevices())

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed), "fallback must be valid JSON")
	assert.Contains(t, parsed, "all_devices")
	assert.Contains(t, parsed, "devices")
}

func TestRender_FallbackOnExecError(t *testing.T) {
	g := NewGenerator(nil, t.TempDir())

	// Calling a missing method fails at execution time.
	out := g.Render(`{{ .devices.NoSuchMethod }}`, sampleDevices())

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
}

func TestCleansePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"inv/servers.yaml", "inv/servers.yaml"},
		{"/inv/servers.yaml", "inv/servers.yaml"},
		{"//inv//servers.yaml", "inv/servers.yaml"},
		{"../../etc/passwd", "__/__/etc/passwd"},
		{"inv/../servers.yaml", "inv/__/servers.yaml"},
		{"./inv/servers.yaml", "inv/servers.yaml"},
		{"  /inv/servers.yaml", "inv/servers.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleansePath(tt.in))
		})
	}
}

func TestWrite_FallbackDirectory(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(nil, dir)

	path, err := g.Write(t.Context(), WriteRequest{
		Filename: "inventory_job1.yaml",
		Content:  "srv-1: {}\n",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "inventory_job1.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "srv-1: {}\n", string(data))
}

func TestWrite_CreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(nil, dir)

	path, err := g.Write(t.Context(), WriteRequest{
		Filename: "inv/nested/servers.yaml",
		Content:  "x",
	})
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestWrite_NoPartialFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(nil, dir)

	_, err := g.Write(t.Context(), WriteRequest{Filename: "a.yaml", Content: "ok"})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, len(e.Name()) > 0 && e.Name()[0] == '.', "temp file leaked: %s", e.Name())
	}
}

func TestDeviceMaps_NilOptionals(t *testing.T) {
	loc := "dc1"
	maps := DeviceMaps([]models.Device{
		{ID: "d1", Name: "D1", Location: &loc},
		{ID: "d2", Name: "D2"},
	})

	assert.Equal(t, "dc1", maps[0]["location"])
	assert.Equal(t, "", maps[1]["location"], "nil optionals become empty strings")
	assert.Equal(t, "", maps[1]["primary_ip4"])
}

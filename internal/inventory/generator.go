// Package inventory renders device lists through operator templates
// and writes the artifacts into Git working trees.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/netopscockpit/cockpit/internal/gitrepo"
	"github.com/netopscockpit/cockpit/internal/models"
)

// Generator renders inventory artifacts and hands Git actions to the
// working-tree manager.
type Generator struct {
	manager     *gitrepo.Manager
	fallbackDir string
}

// NewGenerator creates a generator writing fallback artifacts (no
// repository chosen) under fallbackDir.
func NewGenerator(manager *gitrepo.Manager, fallbackDir string) *Generator {
	return &Generator{manager: manager, fallbackDir: fallbackDir}
}

// Render executes templateSrc against the device list. The context
// carries all_devices and devices (the same list) plus total_devices.
// Any render failure falls back to a JSON serialization; rendering
// never fails the caller.
func (g *Generator) Render(templateSrc string, devices []map[string]any) string {
	if strings.TrimSpace(templateSrc) == "" {
		return jsonFallback(devices)
	}

	data := map[string]any{
		"all_devices":   devices,
		"devices":       devices,
		"total_devices": len(devices),
	}

	tpl, err := template.New("inventory").Funcs(sprig.FuncMap()).Parse(templateSrc)
	if err != nil {
		slog.Warn("inventory template parse failed; falling back to JSON", "error", err)
		return jsonFallback(devices)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		slog.Warn("inventory template render failed; falling back to JSON", "error", err)
		return jsonFallback(devices)
	}
	return buf.String()
}

// jsonFallback serializes the device list when the template cannot.
func jsonFallback(devices []map[string]any) string {
	out, err := json.MarshalIndent(map[string]any{
		"all_devices": devices,
		"devices":     devices,
	}, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

// CleansePath normalizes an operator-supplied destination path:
// leading separators are stripped and every ".." segment is replaced
// so joins cannot escape the working tree.
func CleansePath(p string) string {
	p = strings.TrimLeft(strings.TrimSpace(p), "/\\")
	parts := strings.Split(filepath.ToSlash(p), "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			out = append(out, "__")
		default:
			out = append(out, part)
		}
	}
	return strings.Join(out, "/")
}

// WriteRequest describes one inventory write.
type WriteRequest struct {
	Repository    *models.GitRepository // nil writes to the fallback directory
	Filename      string
	Content       string
	AutoCommit    bool
	AutoPush      bool
	CommitMessage string
}

// Write renders the artifact to disk and performs the requested Git
// actions. Commit and push failures are logged, not returned; the file
// stays on disk. The returned path is absolute.
func (g *Generator) Write(ctx context.Context, req WriteRequest) (string, error) {
	relPath := CleansePath(req.Filename)
	if relPath == "" {
		relPath = "inventory.yaml"
	}

	var absPath string
	if req.Repository != nil {
		root, err := g.manager.OpenOrClone(ctx, req.Repository)
		if err != nil {
			return "", err
		}
		absPath = filepath.Join(root, filepath.FromSlash(relPath))
	} else {
		absPath = filepath.Join(g.fallbackDir, filepath.FromSlash(relPath))
	}

	if err := writeFileAtomic(absPath, []byte(req.Content)); err != nil {
		return "", err
	}
	slog.Info("inventory written", "path", absPath, "bytes", len(req.Content))

	if req.Repository != nil && (req.AutoCommit || req.AutoPush) {
		err := g.manager.CommitAndPush(ctx, req.Repository, relPath, req.CommitMessage, req.AutoPush)
		if err != nil {
			slog.Error("inventory git action failed",
				"repo", req.Repository.Name, "path", relPath,
				"auto_push", req.AutoPush, "error", err)
		}
	}

	return absPath, nil
}

// writeFileAtomic writes via a temp file and rename so no partial file
// is visible under the destination name.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create inventory directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".inventory-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write inventory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close inventory file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move inventory into place: %w", err)
	}
	return nil
}

// DeviceMaps converts query-engine devices to the loosely-typed shape
// templates consume. Nil optionals become empty strings.
func DeviceMaps(devices []models.Device) []map[string]any {
	out := make([]map[string]any, len(devices))
	for i, d := range devices {
		out[i] = map[string]any{
			"id":           d.ID,
			"name":         d.Name,
			"primary_ip4":  deref(d.PrimaryIP4),
			"status":       deref(d.Status),
			"device_type":  deref(d.DeviceType),
			"manufacturer": deref(d.Manufacturer),
			"role":         deref(d.Role),
			"location":     deref(d.Location),
			"platform":     deref(d.Platform),
			"tags":         d.Tags,
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

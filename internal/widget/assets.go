package widget

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vthunder/todo-mcp/internal/logging"
)

const (
	// FallbackUnavailable is served when the assets directory does not exist
	FallbackUnavailable = "<div>Todo widget not available - assets not built</div>"
	// FallbackLoading is served when the directory exists but holds no widget HTML
	FallbackLoading = "<div>Todo widget loading...</div>"
)

var (
	// ErrNotFound is returned for assets that resolve to no file
	ErrNotFound = errors.New("asset not found")
	// ErrInvalidName is returned for names that would escape the assets directory
	ErrInvalidName = errors.New("invalid asset name")
)

var mimeTypes = map[string]string{
	".js":   "application/javascript",
	".css":  "text/css",
	".json": "application/json",
	".html": "text/html",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

// MIMEType maps a file name to the MIME type served for it
func MIMEType(name string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}

// Asset is a resolved static file
type Asset struct {
	Name     string // requested name
	Path     string // file actually read, possibly a versioned build
	MIMEType string
	Content  []byte
}

// Assets serves built widget files from one directory
type Assets struct {
	dir string
}

// New creates an asset server rooted at dir
func New(dir string) *Assets {
	return &Assets{dir: dir}
}

// Dir returns the assets directory
func (a *Assets) Dir() string {
	return a.dir
}

// Available reports whether the assets directory exists
func (a *Assets) Available() bool {
	info, err := os.Stat(a.dir)
	return err == nil && info.IsDir()
}

// WidgetHTML returns <name>.html, or the newest <name>-*.html build, or a
// placeholder when neither exists.
func (a *Assets) WidgetHTML(name string) string {
	if !a.Available() {
		logging.Warn("widget", "Widget assets not found at %s, widget functionality will be limited", a.dir)
		return FallbackUnavailable
	}
	asset, err := a.Read(name + ".html")
	if err != nil {
		logging.Warn("widget", "Widget HTML for %q not found in %s, using fallback", name, a.dir)
		return FallbackLoading
	}
	return string(asset.Content)
}

// Read resolves filename to a direct or versioned file in the assets
// directory. todo.js matches todo.js first, then the last of todo-*.js.
func (a *Assets) Read(filename string) (Asset, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	if !a.Available() {
		return Asset{}, fmt.Errorf("%w: assets directory %s missing", ErrNotFound, a.dir)
	}

	path, err := a.resolve(filename)
	if err != nil {
		return Asset{}, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to read asset %s: %w", filename, err)
	}

	logging.Debug("widget", "Serving %s from %s", filename, path)
	return Asset{
		Name:     filename,
		Path:     path,
		MIMEType: MIMEType(path),
		Content:  content,
	}, nil
}

func (a *Assets) resolve(filename string) (string, error) {
	direct := filepath.Join(a.dir, filename)
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, nil
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	candidates, err := filepath.Glob(filepath.Join(a.dir, globEscape(stem)+"-*"+globEscape(ext)))
	if err != nil {
		return "", fmt.Errorf("failed to search assets: %w", err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, filename, a.dir)
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1], nil
}

// globEscape quotes the pattern metacharacters filepath.Match understands
func globEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`).Replace(s)
}

package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/vthunder/todo-mcp/internal/logging"
	"github.com/vthunder/todo-mcp/internal/mcp"
	"github.com/vthunder/todo-mcp/internal/todo"
	"github.com/vthunder/todo-mcp/internal/widget"
)

const (
	dataURI          = "ui://data/todos.json"
	assetURIPrefix   = "ui://assets/"
	assetURITemplate = assetURIPrefix + "{filename}"

	// widgetMIMEType marks HTML the chat client renders as a widget
	widgetMIMEType = "text/html+skybridge"
)

// HydrationData is the document served at ui://data/todos.json
type HydrationData struct {
	Todos     []TodoView `json:"todos"`
	Stats     todo.Stats `json:"stats"`
	Timestamp string     `json:"timestamp"`
}

func registerResources(server *mcp.Server, deps *Dependencies) {
	server.RegisterResource(mcpgo.NewResource(deps.Widget.TemplateURI, deps.Widget.Title,
		mcpgo.WithResourceDescription("Todo widget HTML template"),
		mcpgo.WithMIMEType(widgetMIMEType),
	), func(ctx context.Context, req mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		html := widget.FallbackUnavailable
		if deps.Assets != nil {
			html = deps.Assets.WidgetHTML(deps.Widget.Name)
		}
		return []mcpgo.ResourceContents{mcpgo.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: widgetMIMEType,
			Text:     html,
		}}, nil
	})

	server.RegisterResource(mcpgo.NewResource(dataURI, "Todo data",
		mcpgo.WithResourceDescription("Current todos and stats for widget hydration"),
		mcpgo.WithMIMEType("application/json"),
	), func(ctx context.Context, req mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		return []mcpgo.ResourceContents{mcpgo.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     deps.hydrationJSON(),
		}}, nil
	})

	server.RegisterResource(mcpgo.NewResource(assetURIPrefix+"todo.js", "Todo widget script",
		mcpgo.WithResourceDescription("Todo widget JavaScript bundle"),
		mcpgo.WithMIMEType("application/javascript"),
	), func(ctx context.Context, req mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		return deps.readAsset(req.Params.URI, "todo.js", "Todo JavaScript bundle not found")
	})

	server.RegisterResource(mcpgo.NewResource(assetURIPrefix+"todo.css", "Todo widget styles",
		mcpgo.WithResourceDescription("Todo widget CSS styles"),
		mcpgo.WithMIMEType("text/css"),
	), func(ctx context.Context, req mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		return deps.readAsset(req.Params.URI, "todo.css", "Todo CSS styles not found")
	})

	server.RegisterResourceTemplate(mcpgo.NewResourceTemplate(assetURITemplate, "Widget assets",
		mcpgo.WithTemplateDescription("Any built widget asset by file name"),
	), func(ctx context.Context, req mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
		filename := templateArg(req.Params.Arguments, "filename")
		if filename == "" {
			filename = strings.TrimPrefix(req.Params.URI, assetURIPrefix)
		}
		return deps.readAsset(req.Params.URI, filename, fmt.Sprintf("Static asset %q not found", filename))
	})
}

// hydrationJSON renders the current list, or an error document when the
// store cannot be read
func (d *Dependencies) hydrationJSON() string {
	all, err := d.Store.GetAllTodos()
	if err != nil {
		logging.Warn("mcp", "Error serving todo data: %v", err)
		data, _ := json.Marshal(map[string]string{"error": "Failed to load todo data: " + err.Error()})
		return string(data)
	}
	now := d.now()
	doc := HydrationData{
		Todos:     todoViews(all, now),
		Stats:     todo.ComputeStats(all, now),
		Timestamp: todo.NewTimestamp(now).String(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "Failed to load todo data: %s"}`, err)
	}
	return string(data)
}

// readAsset serves a text asset as text and anything else base64-encoded
func (d *Dependencies) readAsset(uri, filename, notFound string) ([]mcpgo.ResourceContents, error) {
	if d.Assets == nil {
		return nil, fmt.Errorf("%s: no assets directory configured", notFound)
	}
	asset, err := d.Assets.Read(filename)
	if err != nil {
		logging.Warn("widget", "%s: %v", notFound, err)
		return nil, fmt.Errorf("%s: %w", notFound, err)
	}
	if isTextMIME(asset.MIMEType) {
		return []mcpgo.ResourceContents{mcpgo.TextResourceContents{
			URI:      uri,
			MIMEType: asset.MIMEType,
			Text:     string(asset.Content),
		}}, nil
	}
	return []mcpgo.ResourceContents{mcpgo.BlobResourceContents{
		URI:      uri,
		MIMEType: asset.MIMEType,
		Blob:     base64.StdEncoding.EncodeToString(asset.Content),
	}}, nil
}

func isTextMIME(mime string) bool {
	switch mime {
	case "application/javascript", "application/json", "image/svg+xml":
		return true
	}
	return strings.HasPrefix(mime, "text/")
}

// templateArg extracts a URI template variable, which mcp-go may deliver as
// a string or a single-element slice
func templateArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case []any:
		if len(v) > 0 {
			s, _ := v[0].(string)
			return s
		}
	}
	return ""
}

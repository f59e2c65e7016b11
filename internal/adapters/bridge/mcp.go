package bridge

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	"sns-ingest/internal/infra/metrics"
)

const (
	clientName     = "sns-ingest"
	clientVersion  = "dev"
	toolsCacheTTL  = time.Minute
	defaultTimeout = 2 * time.Minute
)

// MCP вызывает инструменты провайдеров через MCP-сессию.
type MCP struct {
	session *mcp.ClientSession
	log     zerolog.Logger
	timeout time.Duration

	mu       sync.Mutex
	tools    map[string]struct{}
	loadedAt time.Time
}

var _ domain.Bridge = (*MCP)(nil)

// Connect подключается к MCP-серверу по спецификации:
// "http(s)://..." — streamable HTTP, "sse://host/path" — SSE, иначе команда stdio.
func Connect(ctx context.Context, target string, logger zerolog.Logger) (*MCP, error) {
	transport, err := buildTransport(target)
	if err != nil {
		return nil, err
	}
	return ConnectTransport(ctx, transport, logger)
}

// ConnectTransport подключается через готовый транспорт.
func ConnectTransport(ctx context.Context, transport mcp.Transport, logger zerolog.Logger) (*MCP, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: clientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect: %w", err)
	}
	return &MCP{session: session, log: logger, timeout: defaultTimeout}, nil
}

// Close закрывает сессию.
func (b *MCP) Close() error {
	if b == nil || b.session == nil {
		return nil
	}
	return b.session.Close()
}

// HasTool сообщает, объявлен ли инструмент на сервере.
func (b *MCP) HasTool(ctx context.Context, tool string) bool {
	tools, err := b.listTools(ctx)
	if err != nil {
		b.log.Warn().Err(err).Str("tool", tool).Msg("bridge: не удалось получить список инструментов")
		return false
	}
	_, ok := tools[tool]
	return ok
}

// Invoke вызывает инструмент и склеивает текстовые блоки ответа.
func (b *MCP) Invoke(ctx context.Context, tool string, params map[string]any) (string, error) {
	if !b.HasTool(ctx, tool) {
		return "", fmt.Errorf("%s: %w", tool, domain.ErrToolNotFound)
	}
	if params == nil {
		params = map[string]any{}
	}
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	res, err := b.session.CallTool(callCtx, &mcp.CallToolParams{Name: tool, Arguments: params})
	metrics.ObserveNetworkRequest("bridge", "call_tool", tool, start, err)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", tool, err)
	}
	if res == nil {
		return "", errors.New("bridge: empty result")
	}
	text := joinText(res.Content)
	if res.IsError {
		return "", fmt.Errorf("call %s: %s", tool, truncate(text, 200))
	}
	return text, nil
}

func (b *MCP) listTools(ctx context.Context) (map[string]struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tools != nil && time.Since(b.loadedAt) < toolsCacheTTL {
		return b.tools, nil
	}
	start := time.Now()
	tools := make(map[string]struct{})
	var listErr error
	for tool, err := range b.session.Tools(ctx, nil) {
		if err != nil {
			listErr = err
			break
		}
		if tool != nil {
			tools[tool.Name] = struct{}{}
		}
	}
	metrics.ObserveNetworkRequest("bridge", "list_tools", "", start, listErr)
	if listErr != nil {
		return nil, listErr
	}
	b.tools = tools
	b.loadedAt = time.Now()
	return tools, nil
}

func joinText(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func buildTransport(target string) (mcp.Transport, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("bridge: empty transport address")
	}
	lowered := strings.ToLower(target)
	switch {
	case strings.HasPrefix(lowered, "sse://"):
		return &mcp.SSEClientTransport{Endpoint: "http://" + target[len("sse://"):]}, nil
	case strings.HasPrefix(lowered, "http://"), strings.HasPrefix(lowered, "https://"):
		return &mcp.StreamableClientTransport{Endpoint: target}, nil
	}
	parts := strings.Fields(strings.TrimPrefix(target, "stdio://"))
	if len(parts) == 0 {
		return nil, errors.New("bridge: empty stdio command")
	}
	return &mcp.CommandTransport{Command: exec.Command(parts[0], parts[1:]...)}, nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

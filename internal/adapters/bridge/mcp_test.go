package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sns-ingest/internal/domain"
)

func newTestBridge(t *testing.T) *MCP {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(&mcp.Implementation{Name: "provider", Version: "test"}, nil)
	server.AddTool(&mcp.Tool{
		Name:        "demo_list_feeds",
		Description: "list",
		InputSchema: map[string]any{"type": "object"},
	}, func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: `{"items":[{"id":"1"}]}`}}}, nil
	})
	server.AddTool(&mcp.Tool{
		Name:        "demo_get_feed_detail",
		Description: "detail",
		InputSchema: map[string]any{"type": "object"},
	}, func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "boom"}},
		}, nil
	})

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	b, err := ConnectTransport(ctx, clientTransport, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestMCPInvoke(t *testing.T) {
	b := newTestBridge(t)
	ctx := context.Background()

	require.True(t, b.HasTool(ctx, "demo_list_feeds"))
	require.False(t, b.HasTool(ctx, "demo_search_feeds"))

	out, err := b.Invoke(ctx, "demo_list_feeds", nil)
	require.NoError(t, err)
	require.Equal(t, `{"items":[{"id":"1"}]}`, out)
}

func TestMCPMissingTool(t *testing.T) {
	b := newTestBridge(t)
	_, err := b.Invoke(context.Background(), "demo_search_feeds", map[string]any{"keyword": "x"})
	require.True(t, errors.Is(err, domain.ErrToolNotFound))
}

func TestMCPToolError(t *testing.T) {
	b := newTestBridge(t)
	_, err := b.Invoke(context.Background(), "demo_get_feed_detail", map[string]any{"feed_id": "1"})
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrToolNotFound))
}

func TestBuildTransport(t *testing.T) {
	tr, err := buildTransport("https://bridge.local/mcp")
	require.NoError(t, err)
	require.IsType(t, &mcp.StreamableClientTransport{}, tr)

	tr, err = buildTransport("sse://bridge.local/sse")
	require.NoError(t, err)
	require.IsType(t, &mcp.SSEClientTransport{}, tr)

	tr, err = buildTransport("stdio://xhs-mcp --port 1")
	require.NoError(t, err)
	require.IsType(t, &mcp.CommandTransport{}, tr)

	_, err = buildTransport(" ")
	require.Error(t, err)
}

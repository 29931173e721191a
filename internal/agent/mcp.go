package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

// MCPKindPrefix routes agent kinds to remote MCP tools: the kind
// mcp:read-sensor calls the tool read-sensor.
const MCPKindPrefix = "mcp:"

const defaultMCPTimeout = 30 * time.Second

// MCPConfig describes the MCP server connection.
type MCPConfig struct {
	Transport string // stdio | sse
	Command   string
	Args      []string
	Env       map[string]string
	URL       string
	Timeout   time.Duration
}

// MCPInvoker calls tools on a remote MCP server. The connection is
// established lazily on first use and reused after.
type MCPInvoker struct {
	cfg MCPConfig

	mu     sync.Mutex
	client *client.Client
}

// NewMCPInvoker creates an invoker for cfg without connecting yet.
func NewMCPInvoker(cfg MCPConfig) *MCPInvoker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultMCPTimeout
	}
	return &MCPInvoker{cfg: cfg}
}

// Invoke calls the MCP tool named by the kind's suffix with the input
// payload as arguments.
func (m *MCPInvoker) Invoke(ctx context.Context, kind string, input, _, _ map[string]any) (*Result, error) {
	tool := strings.TrimPrefix(kind, MCPKindPrefix)
	if tool == "" || tool == kind {
		return nil, types.NewConfigurationError("mcp agent kind must look like mcp:<tool>: " + kind)
	}

	c, err := m.connection(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = tool
	callReq.Params.Arguments = input

	result, err := c.CallTool(ctx, callReq)
	if err != nil {
		return nil, err
	}

	content := flattenToolContent(result)
	if result.IsError {
		return failure(content), nil
	}
	return &Result{Success: true, Output: map[string]any{"content": content}}, nil
}

// connection returns the shared client, dialing and initializing it on
// first use.
func (m *MCPInvoker) connection(ctx context.Context) (*client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}

	c, err := m.dial(ctx)
	if err != nil {
		return nil, err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "manufacturing-workflow-engine",
		Version: "1.0.0",
	}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp initialize: %w", err)
	}

	m.client = c
	return c, nil
}

func (m *MCPInvoker) dial(ctx context.Context) (*client.Client, error) {
	switch m.cfg.Transport {
	case "stdio":
		if m.cfg.Command == "" {
			return nil, types.NewConfigurationError("mcp agent: stdio transport requires command")
		}
		return client.NewStdioMCPClient(m.cfg.Command, envSlice(m.cfg.Env), m.cfg.Args...)
	case "sse":
		if m.cfg.URL == "" {
			return nil, types.NewConfigurationError("mcp agent: sse transport requires url")
		}
		c, err := client.NewSSEMCPClient(m.cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("mcp sse start: %w", err)
		}
		return c, nil
	default:
		return nil, types.NewConfigurationError("mcp agent: unsupported transport: " + m.cfg.Transport)
	}
}

// Close shuts the client down if it was ever opened.
func (m *MCPInvoker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}

// flattenToolContent joins the text parts of a tool result, falling
// back to JSON for non-text content.
func flattenToolContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 && len(result.Content) > 0 {
		if raw, err := sonic.MarshalString(result.Content); err == nil {
			return raw
		}
	}
	return strings.Join(parts, "\n")
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

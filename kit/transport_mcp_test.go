package kit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}

type echoReq struct {
	Word string `json:"word"`
}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)

	echo := func(ctx context.Context, req any) (any, error) {
		r := req.(*echoReq)
		if r.Word == "" {
			return nil, errors.New("word is required")
		}
		return map[string]string{"word": r.Word, "transport": GetTransport(ctx)}, nil
	}
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		Description: "Echo a word.",
		InputSchema: InputSchema(map[string]any{
			"word": map[string]any{"type": "string"},
		}, nil),
	}, echo, DecodeJSON(func() *echoReq { return &echoReq{} }))

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestRegisterMCPTool_Success(t *testing.T) {
	session := mcpSession(t)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"word": "hello"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(tc.Text), &got); err != nil {
		t.Fatal(err)
	}
	if got["word"] != "hello" || got["transport"] != "mcp" {
		t.Fatalf("got %v", got)
	}
}

func TestRegisterMCPTool_EndpointError(t *testing.T) {
	// WHAT: Endpoint errors come back as tool errors.
	// WHY: A protocol error would hide the message from the client.
	session := mcpSession(t)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error")
	}
	tc := result.Content[0].(*mcp.TextContent)
	if !strings.Contains(tc.Text, "word is required") {
		t.Fatalf("error text = %q", tc.Text)
	}
}

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/DraftForge/services/drafter/datatypes"
)

// OllamaClient is a CompletionClient backed by a local Ollama server.
// Streaming uses the /api/chat NDJSON protocol; tool calling uses the
// same endpoint with stream disabled.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

var _ CompletionClient = (*OllamaClient)(nil)

// --- Ollama /api/chat wire types ---

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error"`
}

func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	model := os.Getenv("OLLAMA_MODEL")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	if model == "" {
		model = "gpt-oss"
		slog.Warn("OLLAMA_MODEL not set, defaulting to gpt-oss")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
	}, nil
}

// NewOllamaClientWithURL builds a client against an explicit server URL.
// Used by tests to point the client at a local stand-in server.
func NewOllamaClientWithURL(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}
}

// ChatStream implements CompletionClient. Ollama streams one JSON object
// per line; each carries a content delta until the final object sets done.
func (o *OllamaClient) ChatStream(ctx context.Context, system string, messages []datatypes.Message, params GenerationParams, onChunk StreamCallback) error {
	slog.Debug("Streaming completion via Ollama", "model", o.model, "messages", len(messages))

	body, err := o.postChat(ctx, o.buildRequest(system, messages, nil, params, true))
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			slog.Error("Failed to parse Ollama stream chunk", "error", err)
			return fmt.Errorf("parse Ollama stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("Ollama stream error: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			if err := onChunk(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read Ollama stream: %w", err)
	}
	return nil
}

// Respond implements CompletionClient. Ollama returns tool arguments as a
// decoded object; they are re-serialized so callers see the same raw JSON
// string contract every provider upholds.
func (o *OllamaClient) Respond(ctx context.Context, system string, messages []datatypes.Message, tools []ToolDefinition, params GenerationParams) (*ToolResponse, error) {
	slog.Debug("Requesting completion via Ollama", "model", o.model, "tools", len(tools))

	body, err := o.postChat(ctx, o.buildRequest(system, messages, tools, params, false))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	respBody, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read Ollama response: %w", err)
	}
	var resp ollamaChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		slog.Error("Failed to parse Ollama chat response", "error", err, "response", string(respBody))
		return nil, fmt.Errorf("parse Ollama response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("Ollama error: %s", resp.Error)
	}
	if resp.Message.Role != "" && resp.Message.Role != datatypes.RoleAssistant {
		slog.Warn("Ollama response message role was not assistant", "role", resp.Message.Role)
	}

	result := &ToolResponse{Output: decodeOutput(resp.Message.Content)}
	for _, call := range resp.Message.ToolCalls {
		args, err := json.Marshal(call.Function.Arguments)
		if err != nil {
			// Keep the pairing intact; the dispatcher treats bad
			// arguments as an empty object.
			args = []byte("{}")
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			Name:      call.Function.Name,
			Arguments: string(args),
		})
	}
	slog.Debug("Received response from Ollama", "tool_calls", len(result.ToolCalls))
	return result, nil
}

// postChat sends the request to /api/chat and returns the body on 200.
func (o *OllamaClient) postChat(ctx context.Context, payload ollamaChatRequest) (io.ReadCloser, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal Ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create Ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		slog.Error("Ollama API call failed", "error", err)
		return nil, fmt.Errorf("Ollama API call failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			var errResp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(respBody, &errResp); err == nil &&
				strings.Contains(errResp.Error, "model") && strings.Contains(errResp.Error, "not found") {
				slog.Warn("Ollama model not found", "model", o.model)
				return nil, fmt.Errorf("model '%s' not found. Please run: 'ollama pull %s'", o.model, o.model)
			}
		}
		slog.Error("Ollama returned an error", "status_code", resp.StatusCode, "response", string(respBody))
		return nil, fmt.Errorf("Ollama failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp.Body, nil
}

func (o *OllamaClient) buildRequest(system string, messages []datatypes.Message, tools []ToolDefinition, params GenerationParams, stream bool) ollamaChatRequest {
	converted := make([]ollamaChatMessage, 0, len(messages)+1)
	if system != "" {
		converted = append(converted, ollamaChatMessage{Role: "system", Content: system})
	}
	for _, msg := range messages {
		converted = append(converted, ollamaChatMessage{Role: msg.Role, Content: msg.Content})
	}

	options := make(map[string]any)
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}
	if len(options) == 0 {
		options = nil
	}

	req := ollamaChatRequest{
		Model:    o.model,
		Messages: converted,
		Stream:   stream,
		Options:  options,
	}
	for _, tool := range tools {
		var t ollamaTool
		t.Type = "function"
		t.Function.Name = tool.Name
		t.Function.Description = tool.Description
		t.Function.Parameters = tool.Parameters
		req.Tools = append(req.Tools, t)
	}
	return req
}

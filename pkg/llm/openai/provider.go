package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"onbrand-chat-be/pkg/llm"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	BaseURL   string
	APIKey    string
	ModelName string
	Client    *http.Client
}

// Ensure OpenAIProvider implements LLMProvider
var _ llm.LLMProvider = &OpenAIProvider{}

func NewOpenAIProvider(baseURL, apiKey, modelName string) *OpenAIProvider {
	return &OpenAIProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		APIKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			// No overall timeout: a streamed response may legitimately run long.
			// The caller's context (or Cancel on the handle) ends the request.
			Timeout: 0,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`

	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	WebSearch   *json.RawMessage `json:"web_search_options,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or content parts for image attachments
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// --- Interface Implementation ---

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.do(ctx, history, false, opts...)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	content, _ := parsed.Choices[0].Message.Content.(string)
	return content, nil
}

func (p *OpenAIProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.StreamHandle, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := p.do(streamCtx, history, true, opts...)
	if err != nil {
		cancel()
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &sseStream{
		body:    resp.Body,
		scanner: scanner,
		cancel:  cancel,
	}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// do issues the request and surfaces non-2xx answers as *llm.ProviderError
// with the parsed error body when present.
func (p *OpenAIProvider) do(ctx context.Context, history []llm.Message, stream bool, opts ...llm.Option) (*http.Response, error) {
	options := &llm.Options{
		Temperature: 0.7, // Default
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]chatMessage, 0, len(history)+1)
	if options.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: options.SystemPrompt})
	}
	for _, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		if len(msg.Images) == 0 {
			messages = append(messages, chatMessage{Role: role, Content: msg.Content})
			continue
		}
		parts := []contentPart{{Type: "text", Text: msg.Content}}
		for _, img := range msg.Images {
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURLPart{URL: img}})
		}
		messages = append(messages, chatMessage{Role: role, Content: parts})
	}

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      stream,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
	}
	if options.WebSearch {
		empty := json.RawMessage(`{}`)
		reqPayload.WebSearch = &empty
	}
	if options.DeepResearch || len(options.ToolServers) > 0 {
		reqPayload.Metadata = map[string]any{}
		if options.DeepResearch {
			reqPayload.Metadata["deep_research"] = "true"
		}
		if len(options.ToolServers) > 0 {
			reqPayload.Metadata["tool_servers"] = strings.Join(options.ToolServers, ",")
		}
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := p.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Error responses are plain JSON, never a stream. Read the body here
		// and hand back a structured failure.
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		provErr := &llm.ProviderError{
			StatusCode: resp.StatusCode,
			Raw:        strings.TrimSpace(string(bodyBytes)),
		}
		if provErr.Raw == "" {
			provErr.Raw = resp.Status
		}
		var parsed errorBody
		if err := json.Unmarshal(bodyBytes, &parsed); err == nil {
			provErr.Message = parsed.Error.Message
			provErr.Code = parsed.Error.Code
			if provErr.Code == "" {
				provErr.Code = parsed.Error.Type
			}
		}
		return nil, provErr
	}

	return resp, nil
}

// sseStream reads "data:" lines from a server-sent-events body.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	closed  bool
}

func (s *sseStream) Recv() (string, error) {
	if s.closed {
		return "", io.EOF
	}
	for {
		if !s.scanner.Scan() {
			err := s.scanner.Err()
			s.close()
			if err == nil || errors.Is(err, context.Canceled) {
				// Natural end of stream, or our own Cancel tearing the
				// connection down. Both are normal completions.
				return "", io.EOF
			}
			return "", fmt.Errorf("read stream: %w", err)
		}

		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.close()
			return "", io.EOF
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // keep-alives and vendor extensions are skipped
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
}

func (s *sseStream) Cancel() {
	s.cancel()
}

func (s *sseStream) close() {
	if !s.closed {
		s.closed = true
		s.body.Close()
		s.cancel()
	}
}

// internal/backend/ollama.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/numleak/internal/appconfig"
	"github.com/mwiater/numleak/internal/logging"
	"github.com/mwiater/numleak/internal/transcript"
)

// HostTypeGenerate marks a host without chat templating; its requests go
// through /api/generate with the plain-text fallback format. Any other host
// type uses the native chat endpoint.
const HostTypeGenerate = "generate"

// Client implements Completer against an Ollama-compatible HTTP endpoint.
type Client struct {
	client    *http.Client
	host      appconfig.Host
	timeout   time.Duration
	formatter ChatFormatter
}

// New constructs a Client for the configured host. Hosts of type "generate"
// get the plain-text formatting strategy; everything else uses native chat.
func New(cfg *appconfig.Config) *Client {
	timeout := cfg.RequestTimeout()
	c := &Client{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		host:    cfg.Host,
		timeout: timeout,
	}
	if cfg.Host.Type == HostTypeGenerate {
		c.formatter = PlainFormatter{}
	}
	return c
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete issues one request per chat, in order, and blocks until all have
// returned. The batch is data-level only; any request failure is fatal to
// the whole batch with no partial results.
func (c *Client) Complete(ctx context.Context, chats [][]transcript.Turn, maxNewTokens int, temperature float64) ([]string, error) {
	outputs := make([]string, len(chats))
	for i, chat := range chats {
		text, err := c.completeOne(ctx, chat, maxNewTokens, temperature)
		if err != nil {
			return nil, fmt.Errorf("backend completion for batch item %d: %w", i, err)
		}
		outputs[i] = text
	}
	return outputs, nil
}

func (c *Client) completeOne(ctx context.Context, chat []transcript.Turn, maxNewTokens int, temperature float64) (string, error) {
	options := map[string]any{
		"temperature": temperature,
	}
	if maxNewTokens > 0 {
		options["num_predict"] = maxNewTokens
	}

	var endpoint string
	var payload map[string]any
	if c.formatter != nil {
		endpoint = c.host.URL + "/api/generate"
		payload = map[string]any{
			"model":   c.host.Model,
			"prompt":  c.formatter.Format(chat),
			"options": options,
			"stream":  false,
		}
	} else {
		endpoint = c.host.URL + "/api/chat"
		payload = map[string]any{
			"model":    c.host.Model,
			"messages": chat,
			"options":  options,
			"stream":   false,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	logging.LogRequest("NUMLEAK->LLM", c.host.Name, c.host.Model, body)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	logging.LogRequest("LLM->NUMLEAK", c.host.Name, c.host.Model, respBody)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if c.formatter != nil {
		var gen generateResponse
		if err := json.Unmarshal(respBody, &gen); err != nil {
			return "", fmt.Errorf("decode generate response: %w", err)
		}
		return strings.TrimSpace(gen.Response), nil
	}
	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return strings.TrimSpace(chatResp.Message.Content), nil
}

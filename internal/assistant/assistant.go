// Package assistant proxies chat prompts to a local inference server that
// speaks the Ollama generate API and relays the streamed answer as plain text.
package assistant

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var ErrUpstream = errors.New("inference server error")

const systemPrompt = "You are CycleChain's assistant. Help riders with renting e-bikes, " +
	"unlock codes, ride costs, loyalty points, the accessory shop and bike ownership certificates. " +
	"Answer briefly."

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system"`
	Stream bool   `json:"stream"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Flusher is implemented by writers that can push buffered bytes to the client.
type Flusher interface {
	Flush()
}

// Stream sends prompt upstream and writes each answer fragment to w as it arrives.
func (c *Client) Stream(ctx context.Context, prompt string, w io.Writer) error {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	flusher, _ := w.(Flusher)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("%w: decode chunk: %v", ErrUpstream, err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("%w: %s", ErrUpstream, chunk.Error)
		}
		if chunk.Response != "" {
			if _, err := io.WriteString(w, chunk.Response); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

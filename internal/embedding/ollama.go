package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultModel is the default embedding model (Snowflake Arctic Embed XS).
	DefaultModel = "snowflake-arctic-embed:22m"

	// DefaultDimensions is the output dimension of the default model.
	DefaultDimensions = 384

	// DefaultTimeout is the timeout for one embedding request.
	DefaultTimeout = 2 * time.Minute

	// apiPathTags is the Ollama API endpoint for listing models.
	apiPathTags = "/api/tags"

	// apiPathEmbed is the Ollama batch embedding endpoint.
	apiPathEmbed = "/api/embed"
)

// OllamaProvider generates embeddings using the Ollama API.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithModel sets the embedding model.
func WithModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithDimensions sets the expected vector dimensions.
func WithDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) {
		if dims > 0 {
			p.dimensions = dims
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		p.client.Timeout = timeout
	}
}

// NewOllamaProvider creates a new Ollama embedding provider.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:    DefaultOllamaURL,
		model:      DefaultModel,
		dimensions: DefaultDimensions,
		client:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// doGet performs a GET request to the specified path and returns the response.
// The caller is responsible for closing the response body.
func (p *OllamaProvider) doGet(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	return resp, nil
}

// formatErrorBody reads and formats the response body for error messages.
func formatErrorBody(body io.Reader) string {
	respBody, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	return string(respBody)
}

// EmbedBatch embeds texts in a single request. Any backend failure is a
// ModelError; no partial result is returned.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+apiPathEmbed, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, arxiv.Wrap(arxiv.KindModel, "ollama.embed", fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, arxiv.Errorf(arxiv.KindModel, "ollama.embed",
			"ollama returned status %d: %s", resp.StatusCode, formatErrorBody(resp.Body))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, arxiv.Wrap(arxiv.KindModel, "ollama.embed", fmt.Errorf("decoding response: %w", err))
	}
	if len(result.Embeddings) != len(texts) {
		return nil, arxiv.Errorf(arxiv.KindModel, "ollama.embed",
			"got %d embeddings for %d inputs", len(result.Embeddings), len(texts))
	}

	out := make([]Embedding, len(result.Embeddings))
	for i, v := range result.Embeddings {
		if len(v) != p.dimensions {
			return nil, arxiv.Errorf(arxiv.KindModel, "ollama.embed",
				"unexpected embedding dimensions: got %d, want %d", len(v), p.dimensions)
		}
		out[i] = Embedding{Vector: v}
	}
	return out, nil
}

// ModelName returns the name of the embedding model.
func (p *OllamaProvider) ModelName() string {
	return p.model
}

// Dimensions returns the expected vector dimensions.
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}

// IsAvailable checks if Ollama is running and accessible.
func (p *OllamaProvider) IsAvailable(ctx context.Context) error {
	resp, err := p.doGet(ctx, apiPathTags)
	if err != nil {
		return arxiv.Wrap(arxiv.KindModel, "ollama", fmt.Errorf("ollama is not running: %w", err))
	}
	resp.Body.Close()
	return nil
}

// HasModel checks if the required model is available in Ollama.
func (p *OllamaProvider) HasModel(ctx context.Context) (bool, error) {
	resp, err := p.doGet(ctx, apiPathTags)
	if err != nil {
		return false, fmt.Errorf("checking models: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decoding response: %w", err)
	}

	for _, m := range result.Models {
		if m.Name == p.model {
			return true, nil
		}
	}

	return false, nil
}

// ollamaEmbedRequest is the request body for the Ollama embed API.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the response from the Ollama embed API.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// ollamaTagsResponse is the response from the Ollama tags API.
type ollamaTagsResponse struct {
	Models []ollamaModel `json:"models"`
}

// ollamaModel represents a model in the Ollama tags response.
type ollamaModel struct {
	Name string `json:"name"`
}

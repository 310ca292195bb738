package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/angelmondragon/testhub-backend/internal/rasterizer"
	"github.com/angelmondragon/testhub-backend/pkg/config"
	"github.com/angelmondragon/testhub-backend/pkg/gcp"
	"github.com/angelmondragon/testhub-backend/pkg/logger"
)

var (
	// ErrFormat means the service answered but the payload did not match the schema.
	ErrFormat = errors.New("extraction response malformed")
	// ErrService means the call itself failed or returned nothing usable.
	ErrService = errors.New("extraction service failed")
)

// Prompt is sent alongside every page image.
const Prompt = `Extract structured question data from the input image. For each question, include:
- The full question text.
- A boolean flag indicating whether the question or any of its options contains a figure or diagram (e.g., images, graphs, or illustrations).
- A list of answer options, where each option is represented by its text.

Please ensure that the response is structured according to the provided schema and includes all necessary details, such as the question text, any figures/diagrams, and all answer options.`

// Extractor turns a page image into question records.
type Extractor interface {
	Extract(ctx context.Context, page rasterizer.Page) ([]QuestionRecord, error)
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client calls a Vertex AI generative model configured for JSON output.
type Client struct {
	model generator
	base  *genai.Client
	name  string
	logg  *logger.Logger
}

// NewVertexClient configures the extraction model from cfg.
func NewVertexClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.ExtractionConfig, logg *logger.Logger) (*Client, error) {
	if gcpCfg.ProjectID == "" || gcpCfg.Location == "" {
		return nil, fmt.Errorf("vertex client requires project id and location")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("extraction model is required")
	}

	base, err := genai.NewClient(ctx, gcpCfg.ProjectID, gcpCfg.Location, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := base.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(cfg.Temperature),
		ResponseSchema:   responseSchema(),
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"model": cfg.Model, "location": gcpCfg.Location})
		logg.Info(ctx, "extraction model configured")
	}

	return &Client{model: model, base: base, name: cfg.Model, logg: logg}, nil
}

func newClient(model generator, logg *logger.Logger) *Client {
	return &Client{model: model, name: "stub", logg: logg}
}

// Extract sends one page to the model and returns the validated records.
func (c *Client) Extract(ctx context.Context, page rasterizer.Page) ([]QuestionRecord, error) {
	if c == nil || c.model == nil {
		return nil, fmt.Errorf("%w: client not initialized", ErrService)
	}
	if len(page.Data) == 0 {
		return nil, fmt.Errorf("%w: page %d has no image data", ErrService, page.Number)
	}

	format := strings.TrimPrefix(page.MimeType, "image/")
	if format == "" {
		format = "png"
	}

	resp, err := c.model.GenerateContent(ctx, genai.ImageData(format, page.Data), genai.Text(Prompt))
	if err != nil {
		return nil, fmt.Errorf("%w: generate content: %w", ErrService, err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	records, err := parseResponse(text)
	if err != nil {
		return nil, err
	}

	if c.logg != nil {
		ctx = c.logg.WithFields(ctx, map[string]any{"page": page.Number, "questions": len(records), "model": c.name})
		c.logg.Debug(ctx, "extraction.page.complete")
	}
	return records, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c == nil || c.base == nil {
		return nil
	}
	return c.base.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", ErrService)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("%w: prompt blocked: %s", ErrService, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates", ErrService)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

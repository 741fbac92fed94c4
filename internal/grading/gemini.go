package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.5-flash"

	// DefaultLanguage is the language feedback is written in.
	DefaultLanguage = "English"

	// DefaultTimeout bounds a single grading call.
	DefaultTimeout = 2 * time.Minute

	temperature = 0.4
)

// Config holds the credentials and options of a Client.
type Config struct {
	APIKey   string
	Model    string
	Language string
	// Timeout bounds each Grade call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client grades submissions with Gemini. It is safe for concurrent use.
type Client struct {
	mu  sync.RWMutex
	cfg Config

	generate func(ctx context.Context, cfg Config, parts []genai.Part) (*genai.GenerateContentResponse, error)
}

// NewClient returns a Client for cfg. An empty APIKey is allowed; Grade
// fails until Reconfigure supplies one.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults(), generate: generateContent}
}

func (c Config) withDefaults() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if strings.TrimSpace(c.Language) == "" {
		c.Language = DefaultLanguage
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Reconfigure replaces the credentials. An empty model keeps the current
// one.
func (c *Client) Reconfigure(apiKey, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cfg
	next.APIKey = apiKey
	if strings.TrimSpace(model) != "" {
		next.Model = model
	}
	c.cfg = next.withDefaults()
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.config().APIKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config().Model
}

func (c *Client) config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Grade sends the pages and answer key in a single request. Any error is
// returned as *Failure.
func (c *Client) Grade(ctx context.Context, req Request) (Result, error) {
	cfg := c.config()
	if cfg.APIKey == "" {
		return Result{}, &Failure{
			Message: "The grading service is not configured. Provide an API key first.",
			Err:     errors.New("GEMINI_API_KEY is empty"),
		}
	}
	if len(req.Pages) == 0 {
		return Result{}, fail(errors.New("no pages to grade"))
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp, err := c.generate(ctx, cfg, buildParts(req, cfg.Language))
	if err != nil {
		return Result{}, fail(fmt.Errorf("gemini: %w", err))
	}

	res, err := ParseResult(firstText(resp))
	if err != nil {
		return Result{}, fail(fmt.Errorf("gemini: %w", err))
	}
	return res, nil
}

func generateContent(ctx context.Context, cfg Config, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(cfg.Model)
	if m == nil {
		return nil, errors.New("model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   resultSchema(),
	}
	m.SetTemperature(temperature)

	return m.GenerateContent(ctx, parts...)
}

// buildParts orders the request as the model expects it: student pages,
// then the answer key file, then the instructions.
func buildParts(req Request, language string) []genai.Part {
	parts := make([]genai.Part, 0, len(req.Pages)+2)
	for _, p := range req.Pages {
		mime := p.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, &genai.Blob{MIMEType: mime, Data: p.Data})
	}
	if req.AnswerKeyFile != nil && len(req.AnswerKeyFile.Data) > 0 {
		parts = append(parts, &genai.Blob{MIMEType: req.AnswerKeyFile.MIMEType, Data: req.AnswerKeyFile.Data})
	}
	parts = append(parts, genai.Text(buildPrompt(req, language)))
	return parts
}

func buildPrompt(req Request, language string) string {
	var b strings.Builder
	n := len(req.Pages)

	b.WriteString("You are a strict but fair teacher.\n")
	if n == 1 {
		b.WriteString("Your task is to grade the student's work (the first image) against the answer key.\n")
	} else {
		fmt.Fprintf(&b, "Your task is to grade the student's work (the first %d images, one per page, in order) against the answer key.\n", n)
	}

	if req.AnswerKeyFile != nil && len(req.AnswerKeyFile.Data) > 0 {
		fmt.Fprintf(&b, "\nNOTE: The answer key is the attachment after the student's pages (image %d, an image or a PDF). Read it carefully to obtain the grading criteria.\n", n+1)
	}
	if key := strings.TrimSpace(req.AnswerKeyText); key != "" {
		fmt.Fprintf(&b, "\nANSWER KEY / ADDITIONAL NOTES FROM THE TEACHER:\n%q\n", key)
	}

	b.WriteString("\nRequirements:\n")
	b.WriteString("1. Analyse the student's work carefully.\n")
	b.WriteString("2. Compare it against the answer key (from the attachment or the text).\n")
	b.WriteString("3. Point out specific mistakes (spelling, grammar, calculation, logic).\n")
	b.WriteString("4. Score the work out of 100.\n")
	b.WriteString("5. For every detail give x and y as percentages (0-100) of the page width and height where it appears, and pageIndex as the 0-based page number.\n")
	b.WriteString("6. If visible, report the class name, the grade level and the subject.\n")
	fmt.Fprintf(&b, "7. Write all feedback in %s.\n", language)
	return b.String()
}

func resultSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	num := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeNumber, Description: desc}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score":              num("Score out of maxScore"),
			"maxScore":           num("Maximum score, normally 100"),
			"letterGrade":        str("Letter grade (A, B, C, D, F)"),
			"summary":            str("Short overall comment on the work"),
			"className":          str("Class name if written on the page, e.g. 5A"),
			"detectedGradeLevel": str("Detected school level"),
			"detectedSubject":    str("Detected subject"),
			"details": {
				Type:        genai.TypeArray,
				Description: "Mistakes and correct points, in reading order",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"original":    str("Original content on the page"),
						"correction":  str("Corrected content"),
						"explanation": str("Why it is wrong, or praise if correct"),
						"isCorrect":   {Type: genai.TypeBoolean, Description: "True if this part is correct"},
						"x":           num("Horizontal position, percent of page width"),
						"y":           num("Vertical position, percent of page height"),
						"pageIndex":   {Type: genai.TypeInteger, Description: "0-based page number"},
					},
					Required: []string{"original", "correction", "explanation", "isCorrect"},
				},
			},
		},
		Required: []string{"score", "letterGrade", "summary", "details"},
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

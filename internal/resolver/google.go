package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/franckalain/grocerylens/internal/health"
	"github.com/franckalain/grocerylens/internal/models"
)

// GoogleConfig holds configuration for the Vertex AI resolver
type GoogleConfig struct {
	ProjectID       string
	Location        string
	CredentialsFile string
	Model           string
}

func (c *GoogleConfig) fillFromEnv() {
	if c.ProjectID == "" {
		c.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.Location == "" {
		c.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
}

// GoogleFactory creates Vertex AI resolvers.
type GoogleFactory struct {
	config GoogleConfig
	logger *zap.SugaredLogger
}

// NewGoogleFactory creates a new Google resolver factory
func NewGoogleFactory(config GoogleConfig, logger *zap.SugaredLogger) *GoogleFactory {
	return &GoogleFactory{config: config, logger: logger}
}

// CreateResolver creates the Vertex AI client and model.
func (f *GoogleFactory) CreateResolver(ctx context.Context) (Resolver, error) {
	cfg := f.config
	cfg.fillFromEnv()
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("google resolver: project id is not set")
	}

	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	return &Google{client: client, model: model, logger: f.logger}, nil
}

// Google asks a Gemini model on Vertex AI to identify a barcode.
type Google struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *zap.SugaredLogger
}

const productPrompt = `You are a grocery product database. Identify the retail product with barcode %q.
Only answer if you know this exact barcode. Never guess.

Respond with a single JSON object:
{
	"found": boolean,
	"product": {
		"name": "string",
		"brand": "string",
		"serving_size": "string",
		"nutrition": {
			"calories": number,
			"protein_g": number,
			"carbs_g": number,
			"fats_g": number,
			"fiber_g": number,
			"sugar_g": number,
			"sodium_mg": number,
			"cholesterol_mg": number,
			"saturated_fat_g": number,
			"trans_fat_g": number
		},
		"ingredients": ["string", ...in printed order],
		"allergens": ["string"]
	}
}
Values are per serving. If you do not know the barcode, respond {"found": false}.`

// FetchProductByBarcode queries the model. A "found": false answer is nil, nil.
func (g *Google) FetchProductByBarcode(ctx context.Context, barcode string) (*models.ProductRecord, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(productPrompt, barcode)))
	if err != nil {
		return nil, fmt.Errorf("failed to call ai: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no response generated")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return ParseGeneratedProduct(barcode, text.String())
}

// Close releases the Vertex AI client.
func (g *Google) Close() error {
	return g.client.Close()
}

// ParseGeneratedProduct decodes the model's JSON answer into a record.
func ParseGeneratedProduct(barcode, text string) (*models.ProductRecord, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var output struct {
		Found   bool `json:"found"`
		Product struct {
			Name        string           `json:"name"`
			Brand       string           `json:"brand"`
			ServingSize string           `json:"serving_size"`
			Nutrition   models.Nutrition `json:"nutrition"`
			Ingredients []string         `json:"ingredients"`
			Allergens   []string         `json:"allergens"`
		} `json:"product"`
	}
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	if !output.Found || strings.TrimSpace(output.Product.Name) == "" {
		return nil, nil
	}

	p := output.Product
	rec := &models.ProductRecord{
		Barcode:            barcode,
		Name:               strings.TrimSpace(p.Name),
		Brand:              strings.TrimSpace(p.Brand),
		ServingSize:        strings.TrimSpace(p.ServingSize),
		Nutrition:          p.Nutrition.Clamp(),
		Ingredients:        []string{},
		HarmfulIngredients: []string{},
		Allergens:          []string{},
	}
	for _, ing := range p.Ingredients {
		if ing = strings.TrimSpace(ing); ing == "" {
			continue
		}
		rec.Ingredients = append(rec.Ingredients, ing)
		if health.IsKnownAdditive(ing) {
			rec.HarmfulIngredients = append(rec.HarmfulIngredients, ing)
		}
	}
	for _, a := range p.Allergens {
		if a = strings.TrimSpace(a); a != "" {
			rec.Allergens = append(rec.Allergens, a)
		}
	}
	return rec, nil
}

package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/franckalain/grocerylens/internal/health"
	"github.com/franckalain/grocerylens/internal/models"
)

// OpenFoodFactsConfig configures the Open Food Facts client.
type OpenFoodFactsConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	// RetryInterval is the first back-off delay; it doubles per attempt.
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

// OpenFoodFactsFactory creates OpenFoodFacts resolvers.
type OpenFoodFactsFactory struct {
	config OpenFoodFactsConfig
	logger *zap.SugaredLogger
}

// NewOpenFoodFactsFactory creates a new Open Food Facts resolver factory
func NewOpenFoodFactsFactory(config OpenFoodFactsConfig, logger *zap.SugaredLogger) *OpenFoodFactsFactory {
	return &OpenFoodFactsFactory{config: config, logger: logger}
}

// CreateResolver creates a new Open Food Facts resolver
func (f *OpenFoodFactsFactory) CreateResolver(context.Context) (Resolver, error) {
	return NewOpenFoodFacts(f.config, f.logger)
}

// OpenFoodFacts resolves barcodes against the Open Food Facts product API.
type OpenFoodFacts struct {
	baseURL       string
	maxRetries    int
	userAgent     string
	retryInterval time.Duration
	client        *http.Client
	logger        *zap.SugaredLogger
}

// NewOpenFoodFacts validates cfg and returns a ready client.
func NewOpenFoodFacts(cfg OpenFoodFactsConfig, logger *zap.SugaredLogger) (*OpenFoodFacts, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid Open Food Facts base URL %q", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &OpenFoodFacts{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries:    max(cfg.MaxRetries, 0),
		userAgent:     cfg.UserAgent,
		retryInterval: interval,
		client:        client,
		logger:        logger,
	}, nil
}

type offResponse struct {
	Code    string     `json:"code"`
	Status  int        `json:"status"`
	Product offProduct `json:"product"`
}

type offProduct struct {
	ProductName     string                     `json:"product_name"`
	GenericName     string                     `json:"generic_name"`
	Brands          string                     `json:"brands"`
	ServingSize     string                     `json:"serving_size"`
	IngredientsText string                     `json:"ingredients_text"`
	AllergensTags   []string                   `json:"allergens_tags"`
	Nutriments      map[string]json.RawMessage `json:"nutriments"`
}

// FetchProductByBarcode looks barcode up. Unknown products are nil, nil.
// Server errors and transport failures are retried with exponential back-off.
func (o *OpenFoodFacts) FetchProductByBarcode(ctx context.Context, barcode string) (*models.ProductRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", o.baseURL, url.PathEscape(barcode))

	attempt := 0
	operation := func() (*offResponse, error) {
		attempt++
		body, err := o.get(ctx, endpoint)
		if err != nil {
			o.logger.Debugw("Open Food Facts request failed", "barcode", barcode, "attempt", attempt, "error", err)
		}
		return body, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retryInterval
	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(o.maxRetries+1)),
	)
	if err != nil {
		return nil, fmt.Errorf("open food facts lookup %s: %w", barcode, err)
	}
	if body == nil || body.Status != 1 {
		return nil, nil
	}
	return toRecord(barcode, &body.Product), nil
}

var errRetryable = errors.New("retryable status")

func (o *OpenFoodFacts) get(ctx context.Context, endpoint string) (*offResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if o.userAgent != "" {
		req.Header.Set("User-Agent", o.userAgent)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %d", errRetryable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body offResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	return &body, nil
}

func toRecord(barcode string, p *offProduct) *models.ProductRecord {
	name := strings.TrimSpace(p.ProductName)
	if name == "" {
		name = strings.TrimSpace(p.GenericName)
	}

	rec := &models.ProductRecord{
		Barcode:            barcode,
		Name:               name,
		Brand:              firstBrand(p.Brands),
		ServingSize:        strings.TrimSpace(p.ServingSize),
		Ingredients:        SplitIngredients(p.IngredientsText),
		HarmfulIngredients: []string{},
		Allergens:          []string{},
	}
	for _, ing := range rec.Ingredients {
		if health.IsKnownAdditive(ing) {
			rec.HarmfulIngredients = append(rec.HarmfulIngredients, ing)
		}
	}
	for _, tag := range p.AllergensTags {
		if a := stripLanguage(tag); a != "" {
			rec.Allergens = append(rec.Allergens, a)
		}
	}

	n := nutriments(p.Nutriments)
	rec.Nutrition = models.Nutrition{
		Calories:      n.get("energy-kcal"),
		ProteinG:      n.get("proteins"),
		CarbsG:        n.get("carbohydrates"),
		FatsG:         n.get("fat"),
		FiberG:        n.get("fiber"),
		SugarG:        n.get("sugars"),
		SodiumMg:      n.get("sodium") * 1000,
		CholesterolMg: n.get("cholesterol") * 1000,
		SaturatedFatG: n.get("saturated-fat"),
		TransFatG:     n.get("trans-fat"),
	}.Clamp()
	return rec
}

type nutriments map[string]json.RawMessage

// get prefers the per-serving value and falls back to per 100g. Open Food
// Facts sometimes encodes numbers as strings.
func (n nutriments) get(name string) float64 {
	for _, key := range []string{name + "_serving", name + "_100g"} {
		raw, ok := n[key]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// SplitIngredients splits a printed ingredient list on top-level commas and
// semicolons, keeping parenthesised sub-ingredients with their parent.
func SplitIngredients(text string) []string {
	out := []string{}
	var (
		b     strings.Builder
		depth int
	)
	flush := func() {
		s := strings.TrimSpace(b.String())
		s = strings.TrimRight(s, ". ")
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	for _, r := range text {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',', ';':
			if depth == 0 {
				flush()
				continue
			}
		}
		b.WriteRune(r)
	}
	flush()
	return out
}

func firstBrand(brands string) string {
	first, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(first)
}

// stripLanguage turns "en:milk" into "Milk".
func stripLanguage(tag string) string {
	if _, rest, ok := strings.Cut(tag, ":"); ok {
		tag = rest
	}
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "-", " "))
	if tag == "" {
		return ""
	}
	return strings.ToUpper(tag[:1]) + tag[1:]
}

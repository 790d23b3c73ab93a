package health

import (
	"slices"
	"strings"
)

// Per-serving nutrition thresholds.
const (
	HighSugarG        = 10.0
	LowSugarG         = 5.0
	HighSodiumMg      = 400.0
	LowFiberG         = 1.0
	GoodFiberG        = 3.0
	HighProteinG      = 10.0
	HighSaturatedFatG = 5.0
)

// Score weights. Every red flag and warning costs points, every positive earns them.
const (
	BaseScore      = 55
	PositiveWeight = 6
	WarningWeight  = 8
	RedFlagWeight  = 10

	// MinApprovedScore is the lowest score an approved product can have.
	// Approval additionally requires zero red flags.
	MinApprovedScore = 65
)

// Processing tiers.
const (
	minimalMaxIngredients     = 5
	ultraProcessedIngredients = 15
	ultraProcessedRedFlags    = 3
)

const organicMarker = "organic"

const defaultRedFlagReason = "flagged as a harmful additive"

// additiveConcerns maps known problem additives (lower case) to the concern shown to the user.
var additiveConcerns = map[string]string{
	"acesulfame potassium":       "artificial sweetener with limited long-term safety data",
	"artificial flavors":         "synthetic flavoring with undisclosed components",
	"artificial colors":          "synthetic dyes linked to hyperactivity in children",
	"aspartame":                  "artificial sweetener classified as a possible carcinogen",
	"bha":                        "preservative listed as a possible carcinogen",
	"bht":                        "preservative suspected of endocrine disruption",
	"carrageenan":                "thickener associated with gut inflammation",
	"high fructose corn syrup":   "highly refined sweetener linked to metabolic disease",
	"maltitol syrup":             "sugar alcohol that can cause digestive distress",
	"monosodium glutamate":       "flavor enhancer some people are sensitive to",
	"palm kernel oil":            "highly saturated tropical oil",
	"partially hydrogenated oil": "source of artificial trans fat",
	"potassium bromate":          "dough conditioner banned in many countries",
	"red 40":                     "synthetic dye linked to hyperactivity in children",
	"sodium benzoate":            "preservative that can form benzene with vitamin C",
	"sodium nitrite":             "curing agent linked to colorectal cancer",
	"sucralose":                  "artificial sweetener that may disrupt gut bacteria",
	"titanium dioxide":           "whitening agent banned as a food additive in the EU",
	"yellow 5":                   "synthetic dye linked to hyperactivity in children",
	"yellow 6":                   "synthetic dye linked to hyperactivity in children",
}

// additiveNames lists the additive keys longest first, so substring lookups
// prefer the most specific name.
var additiveNames = func() []string {
	names := make([]string, 0, len(additiveConcerns))
	for name := range additiveConcerns {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return names
}()

// concernFor returns the reason an ingredient is flagged.
func concernFor(ingredient string) string {
	key := strings.ToLower(strings.TrimSpace(ingredient))
	if reason, ok := additiveConcerns[key]; ok {
		return reason
	}
	for _, name := range additiveNames {
		if strings.Contains(key, name) {
			return additiveConcerns[name]
		}
	}
	return defaultRedFlagReason
}

// IsKnownAdditive reports whether ingredient names one of the additives the
// classifier knows a concern for. Remote resolvers use it to populate
// HarmfulIngredients for sources that do not flag additives themselves.
func IsKnownAdditive(ingredient string) bool {
	return concernFor(ingredient) != defaultRedFlagReason
}

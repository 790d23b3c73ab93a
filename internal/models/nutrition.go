package models

// Nutrition holds the nutrition facts printed on a product label, per serving.
type Nutrition struct {
	Calories      float64 `json:"calories"`       // kcal
	ProteinG      float64 `json:"protein_g"`      // grams
	CarbsG        float64 `json:"carbs_g"`        // grams
	FatsG         float64 `json:"fats_g"`         // grams
	FiberG        float64 `json:"fiber_g"`        // grams
	SugarG        float64 `json:"sugar_g"`        // grams
	SodiumMg      float64 `json:"sodium_mg"`      // milligrams
	CholesterolMg float64 `json:"cholesterol_mg"` // milligrams
	SaturatedFatG float64 `json:"saturated_fat_g"`
	TransFatG     float64 `json:"trans_fat_g"`
}

// Clamp replaces negative values (typically parse noise from remote data) with zero.
func (n Nutrition) Clamp() Nutrition {
	for _, v := range []*float64{
		&n.Calories, &n.ProteinG, &n.CarbsG, &n.FatsG, &n.FiberG, &n.SugarG,
		&n.SodiumMg, &n.CholesterolMg, &n.SaturatedFatG, &n.TransFatG,
	} {
		if *v < 0 {
			*v = 0
		}
	}
	return n
}

// ProcessingLevel tiers how heavily a product has been processed.
type ProcessingLevel string

const (
	ProcessingMinimal        ProcessingLevel = "minimal"
	ProcessingProcessed      ProcessingLevel = "processed"
	ProcessingUltraProcessed ProcessingLevel = "ultra-processed"
)

// HealthAnalysis is the verdict derived from a ProductRecord. It is never stored
// on its own; it is recomputed from the record whenever it is needed.
type HealthAnalysis struct {
	Approved        bool            `json:"approved"`
	HealthScore     int             `json:"health_score"`
	ProcessingLevel ProcessingLevel `json:"processing_level"`
	Warnings        []string        `json:"warnings"`
	RedFlags        []string        `json:"red_flags"`
	Positives       []string        `json:"positives"`
}

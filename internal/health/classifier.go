// Package health classifies products into a health verdict. Classification is a
// pure function of the ProductRecord: same record, same analysis.
package health

import (
	"fmt"
	"strings"

	"github.com/franckalain/grocerylens/internal/models"
)

// Classify derives the HealthAnalysis for a product.
func Classify(p *models.ProductRecord) models.HealthAnalysis {
	if p == nil {
		return models.HealthAnalysis{
			ProcessingLevel: models.ProcessingProcessed,
			Warnings:        []string{},
			RedFlags:        []string{},
			Positives:       []string{},
		}
	}

	n := p.Nutrition.Clamp()
	redFlags := redFlagsFor(p)
	level := processingLevel(len(redFlags), len(p.Ingredients))

	warnings := []string{}
	if n.SugarG > HighSugarG {
		warnings = append(warnings, fmt.Sprintf("High sugar (%sg per serving)", formatAmount(n.SugarG)))
	}
	if n.SodiumMg > HighSodiumMg {
		warnings = append(warnings, fmt.Sprintf("High sodium (%smg per serving)", formatAmount(n.SodiumMg)))
	}
	if n.FiberG < LowFiberG {
		warnings = append(warnings, "Low fiber")
	}
	if n.SaturatedFatG > HighSaturatedFatG {
		warnings = append(warnings, fmt.Sprintf("High saturated fat (%sg per serving)", formatAmount(n.SaturatedFatG)))
	}
	if n.TransFatG > 0 {
		warnings = append(warnings, "Contains trans fat")
	}

	positives := []string{}
	if n.ProteinG >= HighProteinG {
		positives = append(positives, fmt.Sprintf("Good source of protein (%sg)", formatAmount(n.ProteinG)))
	}
	if n.SugarG <= LowSugarG {
		positives = append(positives, "Low sugar")
	}
	if n.FiberG >= GoodFiberG {
		positives = append(positives, fmt.Sprintf("Good source of fiber (%sg)", formatAmount(n.FiberG)))
	}
	if len(redFlags) == 0 {
		positives = append(positives, "No harmful additives")
	}
	if hasOrganicIngredients(p) {
		positives = append(positives, "Made with organic ingredients")
	}
	if level == models.ProcessingMinimal {
		positives = append(positives, "Minimally processed")
	}

	score := Score(len(positives), len(warnings), len(redFlags))
	return models.HealthAnalysis{
		Approved:        score >= MinApprovedScore && len(redFlags) == 0,
		HealthScore:     score,
		ProcessingLevel: level,
		Warnings:        warnings,
		RedFlags:        redFlags,
		Positives:       positives,
	}
}

// Score combines signal counts into a 0-100 score. It never increases with
// warnings or red flags and never decreases with positives.
func Score(positives, warnings, redFlags int) int {
	score := BaseScore + positives*PositiveWeight - warnings*WarningWeight - redFlags*RedFlagWeight
	return min(max(score, 0), 100)
}

// redFlagsFor walks the ingredients in printed order and reports each harmful one once.
func redFlagsFor(p *models.ProductRecord) []string {
	flags := []string{}
	seen := make(map[string]struct{})
	for _, ing := range p.Ingredients {
		key := models.NormalizeName(ing)
		if _, dup := seen[key]; dup || !p.IsHarmful(ing) {
			continue
		}
		seen[key] = struct{}{}
		flags = append(flags, fmt.Sprintf("%s: %s", strings.TrimSpace(ing), concernFor(ing)))
	}
	return flags
}

func processingLevel(redFlags, ingredients int) models.ProcessingLevel {
	switch {
	case redFlags >= ultraProcessedRedFlags || ingredients > ultraProcessedIngredients:
		return models.ProcessingUltraProcessed
	case redFlags > 0 || ingredients > minimalMaxIngredients:
		return models.ProcessingProcessed
	default:
		return models.ProcessingMinimal
	}
}

// hasOrganicIngredients ignores harmful ingredients so that adding one can never earn a positive.
func hasOrganicIngredients(p *models.ProductRecord) bool {
	for _, ing := range p.Ingredients {
		if strings.Contains(models.NormalizeName(ing), organicMarker) && !p.IsHarmful(ing) {
			return true
		}
	}
	return false
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

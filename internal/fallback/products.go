// Package fallback holds the fixed offline product table consulted when neither
// the cache nor the remote resolver knows a barcode.
package fallback

import "github.com/franckalain/grocerylens/internal/models"

var products = []models.ProductRecord{
	{
		Barcode:     "123456789",
		Name:        "Organic Protein Bar",
		Brand:       "Wholesome Harvest",
		ServingSize: "1 bar (50g)",
		Nutrition: models.Nutrition{
			Calories:      190,
			ProteinG:      12,
			CarbsG:        22,
			FatsG:         8,
			FiberG:        5,
			SugarG:        5,
			SodiumMg:      95,
			CholesterolMg: 0,
			SaturatedFatG: 1.5,
			TransFatG:     0,
		},
		Ingredients: []string{
			"Organic Dates",
			"Organic Almonds",
			"Organic Pea Protein",
			"Organic Cashews",
			"Organic Vanilla Extract",
			"Sea Salt",
		},
		HarmfulIngredients: []string{},
		Allergens:          []string{"Tree Nuts"},
	},
	{
		Barcode:     "987654321",
		Name:        "Chocolate Protein Bar",
		Brand:       "MaxMuscle",
		ServingSize: "1 bar (60g)",
		Nutrition: models.Nutrition{
			Calories:      210,
			ProteinG:      20,
			CarbsG:        23,
			FatsG:         7,
			FiberG:        1,
			SugarG:        1,
			SodiumMg:      200,
			CholesterolMg: 10,
			SaturatedFatG: 3.5,
			TransFatG:     0,
		},
		Ingredients: []string{
			"Protein Blend (Milk Protein Isolate, Whey Protein Isolate)",
			"Maltitol Syrup",
			"Palm Kernel Oil",
			"Cocoa Powder",
			"Soluble Corn Fiber",
			"Carrageenan",
			"Artificial Flavors",
			"Salt",
			"Sucralose",
			"Natural Flavors",
		},
		HarmfulIngredients: []string{
			"Maltitol Syrup",
			"Palm Kernel Oil",
			"Carrageenan",
			"Artificial Flavors",
			"Sucralose",
		},
		Allergens: []string{"Milk", "Soy"},
		Alternatives: []models.Alternative{
			{Name: "Organic Protein Bar", Brand: "Wholesome Harvest", HealthScore: 85, PriceDiff: 0.50},
			{Name: "Peanut Butter Protein Bar", Brand: "Simple Pantry", HealthScore: 78, PriceDiff: 0.25},
		},
	},
	{
		Barcode:     "111222333",
		Name:        "Greek Yogurt",
		Brand:       "Chobani",
		ServingSize: "1 cup (170g)",
		Nutrition: models.Nutrition{
			Calories:      100,
			ProteinG:      16,
			CarbsG:        6,
			FatsG:         0,
			FiberG:        0,
			SugarG:        4,
			SodiumMg:      60,
			CholesterolMg: 5,
			SaturatedFatG: 0,
			TransFatG:     0,
		},
		Ingredients:        []string{"Nonfat Yogurt (Cultured Nonfat Milk)", "Live and Active Cultures"},
		HarmfulIngredients: []string{},
		Allergens:          []string{"Milk"},
	},
}

var byBarcode = func() map[string]int {
	idx := make(map[string]int, len(products))
	for i, p := range products {
		idx[p.Barcode] = i
	}
	return idx
}()

// Lookup returns a copy of the fallback product for barcode, if there is one.
func Lookup(barcode string) (*models.ProductRecord, bool) {
	i, ok := byBarcode[barcode]
	if !ok {
		return nil, false
	}
	return products[i].Clone(), true
}

// All returns copies of every fallback product in table order.
func All() []*models.ProductRecord {
	out := make([]*models.ProductRecord, 0, len(products))
	for i := range products {
		out = append(out, products[i].Clone())
	}
	return out
}

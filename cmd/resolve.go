package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franckalain/grocerylens/internal/health"
	"github.com/franckalain/grocerylens/internal/models"
	"github.com/franckalain/grocerylens/internal/pipeline"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <barcode>",
	Short: "Resolve a barcode and print the product with its health analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := scanner.Resolve(cmd.Context(), args[0])
		if errors.Is(err, pipeline.ErrNotFound) {
			return fmt.Errorf("no product found for barcode %s", args[0])
		}
		if err != nil {
			return err
		}

		analysis := health.Classify(res.Product)
		out := struct {
			Product  *models.ProductRecord `json:"product"`
			Source   models.Source         `json:"source"`
			Analysis models.HealthAnalysis `json:"analysis"`
		}{res.Product, res.Source, analysis}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

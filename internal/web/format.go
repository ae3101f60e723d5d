// Package web renders the HTML pages of the predictor. Pages are templ
// components; run `templ generate` after editing a .templ file.
package web

import (
	"strconv"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// metricOrder is the display order of the models on the home page.
var metricOrder = []string{"xgb", "stacking"}

type metricRow struct {
	Name    string
	Metrics models.Metrics
}

func metricRows(info *models.ModelInfo) []metricRow {
	rows := make([]metricRow, 0, len(metricOrder))
	for _, name := range metricOrder {
		if m, ok := info.Metrics[name]; ok {
			rows = append(rows, metricRow{Name: name, Metrics: m})
		}
	}
	return rows
}

func trainedAt(info *models.ModelInfo) string {
	return info.TrainedAt.Format("2006-01-02 15:04 MST")
}

func decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// inputStep keeps the integer-valued features on whole-number inputs.
func inputStep(name string) string {
	switch name {
	case "Down", "Distance", "DefendersInTheBox":
		return "1"
	}
	return "any"
}

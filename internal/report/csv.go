// Package report renders the opportunity feed as a CSV export.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/slabwatch/slabwatch/internal/model"
)

// escapeCell protects against CSV formula injection by escaping cells that
// start with characters spreadsheets treat as formula indicators.
func escapeCell(value string) string {
	if value == "" {
		return value
	}

	switch value[0] {
	case '=', '+', '-', '@', '|', '%', '\t', '\r', '\n':
		return "'" + value
	}
	return value
}

func escapeRow(row []string) []string {
	escaped := make([]string, len(row))
	for i, cell := range row {
		escaped[i] = escapeCell(cell)
	}
	return escaped
}

var csvHeaders = []string{
	"player", "year", "brand", "set", "grade", "listing_type",
	"current_price", "fair_value", "percent_below", "confidence",
	"uses_real_data", "alert_reason", "seller", "url",
}

// WriteOpportunitiesCSV streams the ranked feed as CSV. Title and seller
// fields are attacker-controlled listing text, so every cell is escaped.
func WriteOpportunitiesCSV(w io.Writer, opps []model.Opportunity) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(escapeRow(csvHeaders)); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, opp := range opps {
		row := []string{
			opp.Card.Player,
			fmt.Sprintf("%d", opp.Card.Year),
			opp.Card.Brand,
			opp.Card.SetName,
			opp.Grade,
			string(opp.Channel),
			fmt.Sprintf("%.2f", opp.CurrentPrice),
			fmt.Sprintf("%.2f", opp.FairValue),
			fmt.Sprintf("%.1f", opp.PercentBelow),
			fmt.Sprintf("%.0f", opp.Confidence),
			fmt.Sprintf("%t", opp.UsesRealData),
			opp.AlertReason,
			opp.SellerUsername,
			opp.URL,
		}
		if err := cw.Write(escapeRow(row)); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Filename suggests a download name for an export taken now.
func Filename(date string) string {
	return "opportunities-" + strings.ReplaceAll(date, " ", "-") + ".csv"
}

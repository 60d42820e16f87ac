// Package export renders a batch's generated test cases into flat file
// formats for hand-off to test management tools.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/caseforge/backend/internal/dto"
)

var csvHeader = []string{
	"feature", "test_scenario", "test_description", "pre_condition",
	"test_data", "test_steps", "expected_result", "dimension",
}

// WriteBatchCSV renders every completed feature's cases in batch order.
// Features still running or failed contribute no rows.
func WriteBatchCSV(w io.Writer, batch dto.BatchStatusResponse) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, feature := range batch.Features {
		for _, item := range feature.Items {
			record := []string{
				feature.FeatureName,
				item.Scenario,
				item.Description,
				item.Precondition,
				item.TestData,
				strings.Join(item.Steps, "\n"),
				item.ExpectedResult,
				item.Dimension,
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wonny/fleetcast/internal/audit"
	"github.com/wonny/fleetcast/internal/brain"
	"github.com/wonny/fleetcast/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// printReport prints v as indented JSON under --json, otherwise calls text
func printReport(v interface{}, text func()) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

// PrintHeader prints a formatted section header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)
	total := 0
	for i, w := range widths {
		total += w
		if i < len(widths)-1 {
			total += 2
		}
	}
	fmt.Println(strings.Repeat("─", total))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

func printFailure(f *contracts.Failure) {
	if f == nil {
		return
	}
	PrintError(fmt.Sprintf("%s at %s: %s", f.Kind, f.Stage, f.Message))
}

func printBuildReport(r *contracts.BuildReport) {
	PrintHeader(fmt.Sprintf("Feature Store Build · tenant %d", r.TenantID))
	PrintKeyValue("Run ID", r.RunID, 12)
	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", r.StartDate.Format(contracts.DateLayout), r.EndDate.Format(contracts.DateLayout)), 12)
	PrintKeyValue("Stage", string(r.Stage), 12)
	PrintKeyValue("Duration", r.Duration.String(), 12)
	PrintSeparator()
	PrintKeyValue("Inserted", fmt.Sprint(r.RowsInserted), 12)
	PrintKeyValue("Updated", fmt.Sprint(r.RowsUpdated), 12)
	PrintKeyValue("Weather", fmt.Sprint(r.WeatherUpdated), 12)
	PrintKeyValue("Calendar", fmt.Sprint(r.CalendarUpdated), 12)
	PrintKeyValue("Events", fmt.Sprint(r.EventsUpdated), 12)
	PrintKeyValue("Lags", fmt.Sprintf("%d (+%d refreshed)", r.LagsUpdated, r.LagsRefreshed), 12)
	PrintKeyValue("Splits", fmt.Sprintf("train %d / validation %d / unassigned %d", r.Splits.Train, r.Splits.Validation, r.Splits.Unassigned), 12)
	PrintKeyValue("Relabeled", fmt.Sprint(r.RowsRelabeled), 12)
	PrintKeyValue("Coverage", fmt.Sprintf("%d/%d cells", r.Coverage.MaterializedCells, r.Coverage.ExpectedCells), 12)
	printCompleteness(r.FeatureCompleteness)

	for _, w := range r.Warnings {
		PrintWarning(fmt.Sprintf("%s (%s, branch %d, %d cells): %s", w.Kind, w.Signal, w.BranchID, w.CellsAffected, w.Message))
	}
	if r.Validation != nil {
		printValidation(r.Validation)
	}
	printFailure(r.Failure)
}

func printCompleteness(fc []contracts.FeatureCompleteness) {
	if len(fc) == 0 {
		return
	}
	fmt.Println()
	widths := []int{28, 10, 10, 8}
	PrintTableHeader([]string{"Feature", "Non-null", "Total", "%"}, widths)
	for _, f := range fc {
		PrintTableRow([]string{f.Feature, fmt.Sprint(f.NonNull), fmt.Sprint(f.Total), fmt.Sprintf("%.1f", f.Percent)}, widths)
	}
}

func printValidation(v *contracts.ValidationReport) {
	fmt.Println()
	widths := []int{28, 6, 12, 12}
	PrintTableHeader([]string{"Check", "Pass", "Observed", "Threshold"}, widths)
	for _, c := range v.Checks {
		pass := "✓"
		if !c.Passed {
			pass = "✗"
		}
		threshold := "-"
		if c.Threshold != nil {
			threshold = fmt.Sprintf("%.2f", *c.Threshold)
		}
		PrintTableRow([]string{c.Name, pass, fmt.Sprintf("%.2f", c.Observed), threshold}, widths)
	}
	if v.Passed {
		PrintSuccess("Validation passed")
	} else {
		PrintWarning("Validation failed: " + strings.Join(v.FailedChecks(), ", "))
	}
}

func printStats(s *contracts.FeatureStoreStats) {
	PrintHeader(fmt.Sprintf("Feature Store Stats · tenant %d", s.TenantID))
	PrintKeyValue("Rows", fmt.Sprint(s.TotalRows), 12)
	if s.FirstDate != nil && s.LastDate != nil {
		PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", s.FirstDate.Format(contracts.DateLayout), s.LastDate.Format(contracts.DateLayout)), 12)
	}
	PrintKeyValue("Branches", fmt.Sprint(s.Branches), 12)
	PrintKeyValue("Categories", fmt.Sprint(s.Categories), 12)
	PrintKeyValue("Splits", fmt.Sprintf("train %d / validation %d / unassigned %d", s.Splits.Train, s.Splits.Validation, s.Splits.Unassigned), 12)
	PrintKeyValue("Target", fmt.Sprintf("mean %.2f · std %.2f · min %.0f · max %.0f", s.Target.Mean, s.Target.Std, s.Target.Min, s.Target.Max), 12)
	printCompleteness(s.FeatureCompleteness)
}

func printTrainingResult(r *contracts.TrainingResult) {
	PrintHeader(fmt.Sprintf("Forecast Training · tenant %d · run %s", r.TenantID, r.RunDate.Format(contracts.DateLayout)))
	PrintKeyValue("Run ID", r.RunID, 12)
	PrintKeyValue("Stage", string(r.Stage), 12)
	PrintKeyValue("Rows", fmt.Sprintf("train %d / validation %d", r.TrainRows, r.ValidationRows), 12)
	PrintKeyValue("Duration", r.Duration.String(), 12)

	if len(r.ModelRuns) > 0 {
		fmt.Println()
		widths := []int{20, 10, 10, 10, 10, 10}
		PrintTableHeader([]string{"Model", "MAE", "RMSE", "sMAPE", "Seconds", "Status"}, widths)
		for _, m := range r.ModelRuns {
			row := []string{m.ModelName, "-", "-", "-", "-", "failed"}
			if m.Metrics != nil {
				row[1] = fmt.Sprintf("%.3f", m.Metrics.MAE)
				row[2] = fmt.Sprintf("%.3f", m.Metrics.RMSE)
				row[3] = fmt.Sprintf("%.1f", m.Metrics.SMAPE)
				row[5] = "ok"
			}
			if m.TrainingSeconds != nil {
				row[4] = fmt.Sprintf("%.2f", *m.TrainingSeconds)
			}
			if m.ModelName == r.Champion {
				row[5] = "champion"
			}
			PrintTableRow(row, widths)
		}
	}

	if r.Champion != "" {
		fmt.Println()
		PrintKeyValue("Champion", r.Champion, 12)
		if r.ChampionMAE != nil && r.BaselineMAE != nil {
			PrintKeyValue("MAE", fmt.Sprintf("%.3f (baseline %.3f)", *r.ChampionMAE, *r.BaselineMAE), 12)
		}
		PrintKeyValue("Forecasts", fmt.Sprintf("%d rows · %d days", r.ForecastsGenerated, r.Horizon), 12)
	}
	for _, w := range r.Warnings {
		PrintWarning(w)
	}
	printFailure(r.Failure)
}

func printRunResult(r *brain.RunResult) {
	if r.Build != nil {
		printBuildReport(r.Build)
	}
	if r.Training != nil {
		printTrainingResult(r.Training)
	}
	fmt.Println()
	PrintDoubleSeparator()
	if r.Success {
		PrintSuccess(fmt.Sprintf("Pipeline %s completed in %s (%s)", r.RunID, r.Duration, strings.Join(r.CompletedStages, " → ")))
	} else {
		PrintError(fmt.Sprintf("Pipeline %s failed: %s", r.RunID, r.Error))
	}
}

func printForecasts(tenantID int64, runDate string, rows []contracts.ForecastRecord) {
	PrintHeader(fmt.Sprintf("Published Forecasts · tenant %d · run %s", tenantID, runDate))
	widths := []int{8, 9, 4, 11, 9, 9, 9, 18}
	PrintTableHeader([]string{"Branch", "Category", "H", "Date", "Demand", "Lower", "Upper", "Model"}, widths)
	for _, f := range rows {
		lower, upper := "-", "-"
		if f.LowerBound != nil {
			lower = fmt.Sprintf("%.1f", *f.LowerBound)
		}
		if f.UpperBound != nil {
			upper = fmt.Sprintf("%.1f", *f.UpperBound)
		}
		PrintTableRow([]string{
			fmt.Sprint(f.BranchID), fmt.Sprint(f.CategoryID), fmt.Sprint(f.HorizonDay),
			f.ForecastDate.Format(contracts.DateLayout), fmt.Sprintf("%.1f", f.ForecastDemand),
			lower, upper, f.ModelName,
		}, widths)
	}
}

func printAccuracy(r *audit.AccuracyReport) {
	PrintHeader(fmt.Sprintf("Forecast Accuracy · tenant %d · run %s", r.TenantID, r.RunDate.Format(contracts.DateLayout)))
	PrintKeyValue("Model", r.ModelName, 12)
	PrintKeyValue("Evaluated", fmt.Sprintf("%d / %d (pending %d)", r.Evaluated, r.Forecasts, r.Pending), 12)
	if r.Metrics == nil {
		PrintWarning("실측 데이터 없음 - feature store build 이후 다시 실행")
		return
	}
	PrintKeyValue("MAE", fmt.Sprintf("%.3f", r.Metrics.MAE), 12)
	PrintKeyValue("MAPE", fmt.Sprintf("%.2f%%", r.Metrics.MAPE), 12)
	PrintKeyValue("sMAPE", fmt.Sprintf("%.2f%%", r.Metrics.SMAPE), 12)
	PrintKeyValue("RMSE", fmt.Sprintf("%.3f", r.Metrics.RMSE), 12)
	PrintKeyValue("Bias", fmt.Sprintf("%+.3f", r.Bias), 12)
	if r.IntervalCoverage != nil {
		PrintKeyValue("Coverage", fmt.Sprintf("%.1f%%", *r.IntervalCoverage*100), 12)
	}

	fmt.Println()
	widths := []int{8, 9, 9, 9}
	PrintTableHeader([]string{"Branch", "Category", "MAE", "Bias"}, widths)
	for _, s := range r.BySeries {
		PrintTableRow([]string{
			fmt.Sprint(s.BranchID), fmt.Sprint(s.CategoryID),
			fmt.Sprintf("%.2f", s.MAE), fmt.Sprintf("%+.2f", s.Bias),
		}, widths)
	}
}

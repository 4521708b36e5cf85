package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"conserva/ingest"
	"conserva/internal/memstore"
	"conserva/report"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		pavedFile     string
		unpavedFile   string
		pavedCharts   string
		unpavedCharts string
		region        int
		year          int
		month         int
		clear         bool
		dryRun        bool
		operator      string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "import section spreadsheets for one region and period",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pavedFile == "" && unpavedFile == "" && pavedCharts == "" && unpavedCharts == "" {
				return fmt.Errorf("nothing to import, pass at least one workbook flag")
			}

			store := memstore.New()
			imp := ingest.New(store, store, ingest.WithLogger(a.log))
			scope := ingest.Scope{Region: region, Year: year, Month: month}

			runs := []struct {
				file   string
				charts string
				source ingest.SourceType
			}{
				{pavedFile, pavedCharts, ingest.SourcePaved},
				{unpavedFile, unpavedCharts, ingest.SourceUnpaved},
			}
			for _, run := range runs {
				if run.file != "" {
					req := ingest.Request{
						Scope:       scope,
						SourceType:  run.source,
						Origin:      filepath.Base(run.file),
						Operator:    operator,
						ClearBefore: clear,
						DryRun:      dryRun,
					}
					batch, err := imp.RunFile(cmd.Context(), req, run.file)
					if err != nil {
						return err
					}
					printBatch(cmd, batch)

					rowErrs, err := imp.Errors(cmd.Context(), batch.ID)
					if err != nil {
						return err
					}
					for _, re := range rowErrs {
						cmd.Printf("  row %d: %s %s (%s=%q)\n", re.Row, re.Code, re.Message, re.Column, re.Value)
					}
				}

				if run.charts != "" {
					req := ingest.Request{
						Scope:      scope,
						SourceType: run.source,
						Origin:     filepath.Base(run.charts),
						Operator:   operator,
						DryRun:     dryRun,
					}
					batch, err := importCharts(cmd, a, imp, req, run.charts)
					if err != nil {
						return err
					}
					printBatch(cmd, batch)
				}
			}

			summary, err := imp.Summary(cmd.Context(), scope)
			if err != nil {
				return err
			}
			cmd.Printf("scope %s region %d: paved=%d unpaved=%d section(s)\n",
				scope.PeriodKey(), scope.Region,
				summary[ingest.SourcePaved], summary[ingest.SourceUnpaved])
			return nil
		},
	}

	cmd.Flags().StringVar(&pavedFile, "paved", "", "paved sections workbook (.xlsx)")
	cmd.Flags().StringVar(&unpavedFile, "unpaved", "", "unpaved sections workbook (.xlsx)")
	cmd.Flags().StringVar(&pavedCharts, "paved-charts", "", "paved complementary charts workbook (.xlsx)")
	cmd.Flags().StringVar(&unpavedCharts, "unpaved-charts", "", "unpaved complementary charts workbook (.xlsx)")
	cmd.Flags().IntVar(&region, "region", 0, "conservation region code (1-99)")
	cmd.Flags().IntVar(&year, "year", 0, "reporting year")
	cmd.Flags().IntVar(&month, "month", 0, "reporting month (1-12)")
	cmd.Flags().BoolVar(&clear, "clear", true, "delete previous records for the scope before inserting")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify only, persist nothing")
	cmd.Flags().StringVar(&operator, "operator", "", "operator name for the audit trail")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

// importCharts harvests a complementary workbook and persists its chart
// series and TT evaluations under their own batch.
func importCharts(cmd *cobra.Command, a *app, imp *ingest.Importer, req ingest.Request, file string) (*ingest.ImportBatch, error) {
	harvest, err := report.NewHarvester(report.HarvesterLogger(a.log)).HarvestFile(file)
	if err != nil {
		return nil, err
	}
	for _, alert := range harvest.Alerts {
		cmd.Printf("  alert: %s: %s\n", alert.Context, alert.Message)
	}

	var data ingest.ComplementaryData
	for _, group := range harvest.Groups {
		for _, chart := range group.Charts {
			data.Charts = append(data.Charts, ingest.ChartSeries{
				Sheet:   group.Sheet,
				Order:   len(data.Charts) + 1,
				Section: group.Section,
				Title:   chart.Title,
				Type:    chart.Type,
				Labels:  chart.Labels,
				Values:  chart.Values,
			})
		}
	}
	if data.Evaluations, err = ingest.ReadEvaluations(file); err != nil {
		return nil, err
	}

	return imp.ImportComplementary(cmd.Context(), req, data)
}

func printBatch(cmd *cobra.Command, batch *ingest.ImportBatch) {
	cmd.Printf("%s %s [%s] status=%s received=%d valid=%d ignored=%d errors=%d persisted=%d\n",
		batch.ID, batch.Origin, batch.SourceType, batch.Status,
		batch.Received, batch.Valid, batch.Ignored, batch.Errored, batch.Persisted)
	if batch.FatalMessage != "" {
		cmd.Printf("  fatal: %s\n", batch.FatalMessage)
	}
}

func newAuditCmd(a *app) *cobra.Command {
	var (
		dir  string
		year int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "inspect a directory of workbooks without importing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := ingest.AuditDir(dir, year)
			if err != nil {
				return err
			}
			for _, r := range reports {
				if r.Problem != "" {
					cmd.Printf("%-40s PROBLEM %s (guessed %s region %d)\n",
						r.File, r.Problem, r.GuessedSource, r.GuessedRegion)
					continue
				}
				cmd.Printf("%-40s ok header@%d rows=%d %s region=%d keys=%v\n",
					r.File, r.HeaderRow, r.DataRows, r.GuessedSource, r.GuessedRegion, r.Keys)
			}
			cmd.Printf("%d file(s) inspected\n", len(reports))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory holding .xlsx files")
	cmd.Flags().IntVar(&year, "year", 0, "reporting year used for month column mapping")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/postcall-cli/internal/model"
	"github.com/sells-group/postcall-cli/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to an XLSX workbook",
	Long:  "Writes past pipeline runs, including extracted insights and CRM write status, to an Excel file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		out, _ := cmd.Flags().GetString("out")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "export: list runs")
		}

		if err := writeRunsXLSX(out, runs); err != nil {
			return err
		}

		zap.L().Info("exported runs", zap.Int("count", len(runs)), zap.String("path", out))
		fmt.Printf("Exported %d runs to %s\n", len(runs), out)
		return nil
	},
}

var exportHeader = []string{
	"Run ID", "Status", "Prospect Name", "Company", "Summary",
	"Sentiment Score", "Call Quality", "CRM Status", "Created At",
}

func writeRunsXLSX(path string, runs []model.Run) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Runs")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range runs {
		row := sheet.AddRow()
		for _, v := range runExportValues(r) {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func runExportValues(r model.Run) []string {
	prospect, company, summary, sentiment, quality, crm := "", "", "", "", "", ""
	if r.Result != nil {
		if r.Result.Insights != nil {
			prospect = r.Result.Insights.ProspectName
			company = r.Result.Insights.CompanyName
			summary = r.Result.Insights.Summary
			sentiment = strconv.Itoa(r.Result.Insights.SentimentScore)
		}
		if r.Result.Quality != nil {
			quality = strconv.Itoa(r.Result.Quality.QualityScore)
		}
		switch {
		case r.Result.CRM.Written:
			crm = "written"
		case r.Result.CRM.Error != "":
			crm = "failed"
		}
	}
	return []string{
		r.ID, string(r.Status), prospect, company, summary,
		sentiment, quality, crm,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func init() {
	exportCmd.Flags().String("out", "runs.xlsx", "output file path")
	exportCmd.Flags().String("status", "", "filter by run status")
	exportCmd.Flags().Int("limit", 500, "maximum runs to export")
	rootCmd.AddCommand(exportCmd)
}

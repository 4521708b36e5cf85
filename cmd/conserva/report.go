package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"conserva/internal/chartimg"
	"conserva/internal/chartxml"
	"conserva/internal/docscan"
	"conserva/internal/ooxmlpkg"
	"conserva/internal/postflight"
	"conserva/report"
)

func newHarvestCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "list the charts a complementary workbook carries",
		RunE: func(cmd *cobra.Command, args []string) error {
			harvest, err := report.NewHarvester(report.HarvesterLogger(a.log)).HarvestFile(file)
			if err != nil {
				return err
			}

			for _, group := range harvest.Groups {
				cmd.Printf("sheet %q (#%d) section %q\n", group.Sheet, group.Ordinal, group.Section)
				for _, chart := range group.Charts {
					cmd.Printf("  %-9s %-40q %d point(s)\n", chart.Type, chart.Title, len(chart.Values))
				}
			}
			for _, alert := range harvest.Alerts {
				cmd.Printf("alert: %s: %s\n", alert.Context, alert.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "workbook to scan (.xlsx)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRenderCmd(a *app) *cobra.Command {
	var (
		template string
		paved    string
		unpaved  string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "inject harvested charts into the report template",
		RunE: func(cmd *cobra.Command, args []string) error {
			harvester := report.NewHarvester(report.HarvesterLogger(a.log))

			pavedGroups, err := harvestOptional(harvester, paved)
			if err != nil {
				return err
			}
			unpavedGroups, err := harvestOptional(harvester, unpaved)
			if err != nil {
				return err
			}
			if pavedGroups == nil && unpavedGroups == nil {
				return fmt.Errorf("at least one of --paved or --unpaved is required")
			}

			templateBytes, err := os.ReadFile(template)
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}

			charts := a.cfg.Charts
			renderer := report.RendererFunc(func(chart chartxml.Chart) ([]byte, error) {
				return chartimg.RenderPNG(chartimg.Spec{
					Type:   chart.Type,
					Title:  chart.Title,
					Labels: chart.Labels,
					Values: chart.Values,
					Width:  charts.PixelWidth,
					Height: charts.PixelHeight,
				})
			})

			inj := report.NewInjector(renderer,
				report.WithSizeCm(charts.WidthCm, charts.HeightCm),
				report.InjectorLogger(a.log),
			)
			rendered, result, err := inj.Render(templateBytes, pavedGroups, unpavedGroups)
			if err != nil {
				return err
			}

			outPkg, err := ooxmlpkg.OpenBytes(rendered)
			if err != nil {
				return err
			}
			if issues := postflight.Check(outPkg); len(issues) > 0 {
				for _, issue := range issues {
					a.log.Error("postflight issue", "part", issue.Part, "detail", issue.Detail)
				}
				return fmt.Errorf("rendered package failed postflight with %d issue(s)", len(issues))
			}

			if out == "" {
				out = derivedOutputName(template, a.cfg.Output.Suffix)
			}
			if err := os.WriteFile(out, rendered, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			cmd.Printf("replaced %d placeholder(s), %d chart(s) unconsumed -> %s\n",
				result.Replaced, result.Unconsumed, out)
			for _, miss := range result.Missing {
				cmd.Printf("missing: [%s] %s\n", miss.Source, miss.Heading)
			}
			for _, fb := range result.Fallbacks {
				cmd.Printf("fallback: %s -> %s for %q (matched %q)\n", fb.From, fb.To, fb.Heading, fb.MatchedKey)
			}
			for _, alert := range result.Alerts {
				cmd.Printf("alert: %s: %s\n", alert.Context, alert.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&template, "template", "", "report template (.docx)")
	cmd.Flags().StringVar(&paved, "paved", "", "paved charts workbook (.xlsx)")
	cmd.Flags().StringVar(&unpaved, "unpaved", "", "unpaved charts workbook (.xlsx)")
	cmd.Flags().StringVar(&out, "out", "", "output path (default: template name + suffix)")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func harvestOptional(h *report.Harvester, path string) ([]report.ChartGroup, error) {
	if path == "" {
		return nil, nil
	}
	harvest, err := h.HarvestFile(path)
	if err != nil {
		return nil, err
	}
	return harvest.Groups, nil
}

func derivedOutputName(template, suffix string) string {
	ext := filepath.Ext(template)
	return strings.TrimSuffix(template, ext) + suffix + ext
}

func newInspectCmd(a *app) *cobra.Command {
	var template string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "print the heading skeleton of a report template",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := ooxmlpkg.OpenFile(template)
			if err != nil {
				return err
			}
			doc, err := pkg.ReadPart("word/document.xml")
			if err != nil {
				return err
			}
			paras, err := docscan.Scan(doc)
			if err != nil {
				return err
			}

			for _, h := range docscan.Headings(paras) {
				cmd.Printf("%s%s (paragraph %d)\n", strings.Repeat("  ", h.Level-1), h.Text, h.Index)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&template, "template", "", "report template (.docx)")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

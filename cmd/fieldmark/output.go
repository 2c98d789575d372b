package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ashita-ai/fieldmark"
)

func newTable(out io.Writer) table.Writer {
	w := table.NewWriter()
	w.SetOutputMirror(out)
	w.SetStyle(table.StyleLight)
	return w
}

func printSurveyReport(out io.Writer, r fieldmark.SurveyReport) {
	printState(out, r.State)

	if r.Bundle != nil {
		s := r.Bundle.Statistics
		w := newTable(out)
		w.SetTitle("Export")
		w.AppendHeader(table.Row{"Placemarks", "Clusters", "Coverage km²", "From", "To"})
		w.AppendRow(table.Row{s.PlacemarkCount, s.ClusterCount, fmt.Sprintf("%.3f", s.CoverageAreaKm2),
			formatTimePtr(s.DateRange.Start), formatTimePtr(s.DateRange.End)})
		w.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, Align: text.AlignRight},
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
		})
		w.Render()
	}
	if r.ArchivePath != "" {
		fmt.Fprintf(out, "Archive:        %s\n", r.ArchivePath)
	}
	if r.EvidenceRoot != "" {
		fmt.Fprintf(out, "Evidence root:  %s (%d records)\n", r.EvidenceRoot, len(r.Evidence))
	}

	if len(r.Errors) > 0 {
		w := newTable(out)
		w.SetTitle("Rejected files")
		w.AppendHeader(table.Row{"File", "Kind", "Message"})
		for _, e := range r.Errors {
			w.AppendRow(table.Row{e.FileName, e.Kind, e.Message})
		}
		w.Render()
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warn)
	}
}

func printState(out io.Writer, st fieldmark.State) {
	w := newTable(out)
	w.SetTitle(fmt.Sprintf("Workflow %s: %s", st.Workflow.Name, st.Status))
	w.AppendHeader(table.Row{"Step", "Result", "Summary"})
	for i, results := range st.StepResults {
		for _, res := range results {
			outcome := "ok"
			if !res.Success {
				outcome = "FAILED"
			}
			w.AppendRow(table.Row{i + 1, outcome, res.Summary})
		}
	}
	if !st.FinishedAt.IsZero() {
		w.AppendFooter(table.Row{"", "", "took " + st.FinishedAt.Sub(st.StartedAt).Round(time.Millisecond).String()})
	}
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	w.Render()
}

func printResult(out io.Writer, name string, res fieldmark.Result) error {
	status := "ok"
	if !res.Success {
		status = "FAILED"
	}
	fmt.Fprintf(out, "%s: %s: %s\n", name, status, res.Summary)
	if len(res.Data) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(res.Data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result data: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func printEvidence(out io.Writer, rec fieldmark.EvidenceRecord) {
	fmt.Fprintf(out, "Record:     %s\n", rec.ID)
	fmt.Fprintf(out, "File:       %s\n", rec.FileName)
	fmt.Fprintf(out, "Analyst:    %s\n", rec.Analyst)
	fmt.Fprintf(out, "Content:    %s\n", rec.ContentHash)
	fmt.Fprintf(out, "Head:       %s\n", rec.AssetHash)
	if len(rec.Inference.Labels) > 0 {
		fmt.Fprintf(out, "Inference:  %s (risk %s, confidence %.2f)\n",
			strings.Join(rec.Inference.Labels, ", "), orDash(rec.Inference.RiskLevel), rec.Inference.Confidence)
	}

	w := newTable(out)
	w.AppendHeader(table.Row{"#", "Action", "Actor", "At", "Hash after"})
	for i, p := range rec.Provenance {
		w.AppendRow(table.Row{i, p.Action, p.Actor, p.Timestamp.Format(time.RFC3339), shortHash(p.HashAfter)})
	}
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	w.Render()
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

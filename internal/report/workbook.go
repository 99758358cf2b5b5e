// Package report exports a finished analysis as an .xlsx workbook and reads
// such workbooks back.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"sales-coach-go/internal/aggregator"
	"sales-coach-go/internal/types"
)

const (
	SheetSummary    = "Summary"
	SheetTranscript = "Transcript"
	SheetSentiment  = "Sentiment"
	SheetCoaching   = "Coaching"

	ProcessedBy = "Processed by Sales Coach AI"
)

// Input is everything a report shows.
type Input struct {
	DisplayName string
	AnalyzedAt  time.Time
	Result      types.AnalysisResult
}

// FromSnapshot builds an Input from a completed snapshot.
func FromSnapshot(snap types.Snapshot) (Input, error) {
	if snap.State != types.StateComplete || snap.Result == nil {
		return Input{}, fmt.Errorf("report: analysis is %s, not complete", snap.State)
	}
	at := snap.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}
	return Input{DisplayName: snap.DisplayName, AnalyzedAt: at, Result: *snap.Result}, nil
}

// Build lays out the workbook. The caller owns the returned file and must
// Close it.
func Build(in Input) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetTranscript, SheetSentiment, SheetCoaching} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("add sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("new style: %w", err)
	}

	steps := []func(*excelize.File, Input, int) error{
		writeSummary, writeTranscript, writeSentiment, writeCoaching,
	}
	for _, step := range steps {
		if err := step(f, in, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, in Input) error {
	f, err := Build(in)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteFile saves the workbook at path.
func WriteFile(path string, in Input) error {
	f, err := Build(in)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeSummary(f *excelize.File, in Input, bold int) error {
	st := aggregator.Summarize(in.Result)
	rows := [][]any{
		{"Sales Call Analysis"},
		{"File", in.DisplayName},
		{"Analyzed", in.AnalyzedAt.Format("January 2, 2006 15:04")},
		{ProcessedBy},
		{},
		{"Summary", in.Result.Summary},
		{"Average engagement", round1(st.AverageEngagement)},
		{"Peak engagement", st.PeakEngagement, st.PeakAt},
		{"Lowest engagement", st.LowestEngagement, st.LowestAt},
		{"Salesperson talk share", round1(st.SalespersonTalkRate * 100)},
		{"Transcript segments", len(in.Result.Transcript)},
	}
	if err := setRows(f, SheetSummary, 1, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "A11", bold); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 24); err != nil {
		return fmt.Errorf("size summary: %w", err)
	}
	return f.SetColWidth(SheetSummary, "B", "B", 80)
}

func writeTranscript(f *excelize.File, in Input, bold int) error {
	rows := [][]any{{"Timestamp", "Speaker", "Role", "Text"}}
	for _, seg := range in.Result.Transcript {
		role := "Prospect"
		if aggregator.IsSalesperson(seg.Speaker) {
			role = "Salesperson"
		}
		rows = append(rows, []any{seg.Timestamp, seg.Speaker, role, seg.Text})
	}
	if err := setRows(f, SheetTranscript, 1, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetTranscript, "A1", "D1", bold); err != nil {
		return fmt.Errorf("style transcript: %w", err)
	}
	return f.SetColWidth(SheetTranscript, "D", "D", 100)
}

func writeSentiment(f *excelize.File, in Input, bold int) error {
	rows := [][]any{{"Time", "Engagement", "Label"}}
	for _, p := range in.Result.SentimentGraph {
		rows = append(rows, []any{p.Time, p.Engagement, p.Label})
	}
	if err := setRows(f, SheetSentiment, 1, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSentiment, "A1", "C1", bold); err != nil {
		return fmt.Errorf("style sentiment: %w", err)
	}

	n := len(in.Result.SentimentGraph)
	if n == 0 {
		return nil
	}
	last := n + 1
	err := f.AddChart(SheetSentiment, "E2", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", SheetSentiment),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", SheetSentiment, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", SheetSentiment, last),
		}},
		Title: []excelize.RichTextRun{{Text: "Engagement over the call"}},
	})
	if err != nil {
		return fmt.Errorf("add sentiment chart: %w", err)
	}
	return nil
}

func writeCoaching(f *excelize.File, in Input, bold int) error {
	rows := [][]any{{"Strengths", "Missed opportunities"}}
	strengths, missed := in.Result.Coaching.Strengths, in.Result.Coaching.MissedOpportunities
	for i := 0; i < max(len(strengths), len(missed)); i++ {
		row := []any{"", ""}
		if i < len(strengths) {
			row[0] = strengths[i]
		}
		if i < len(missed) {
			row[1] = missed[i]
		}
		rows = append(rows, row)
	}
	if err := setRows(f, SheetCoaching, 1, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetCoaching, "A1", "B1", bold); err != nil {
		return fmt.Errorf("style coaching: %w", err)
	}
	return f.SetColWidth(SheetCoaching, "A", "B", 60)
}

func setRows(f *excelize.File, sheet string, firstRow int, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, firstRow+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, firstRow+i, err)
		}
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"sales-coach-go/internal/types"
)

func sampleInput() Input {
	return Input{
		DisplayName: "call.mp3",
		AnalyzedAt:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Result: types.AnalysisResult{
			Summary: "Good call.",
			Transcript: []types.TranscriptSegment{
				{Speaker: "Salesperson", Text: "Hi", Timestamp: "00:00"},
				{Speaker: "Prospect", Text: "Hello there", Timestamp: "00:04"},
			},
			SentimentGraph: []types.SentimentPoint{
				{Time: "Start", Engagement: 70},
				{Time: "Closing", Engagement: 55, Label: "drop"},
			},
			Coaching: types.CoachingInsights{
				Strengths:           []string{"Good opener", "Clear pricing"},
				MissedOpportunities: []string{"No clear CTA"},
			},
		},
	}
}

func TestWriteProducesExpectedSheets(t *testing.T) {
	t.Parallel()

	f, err := Build(sampleInput())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer f.Close()

	want := []string{SheetSummary, SheetTranscript, SheetSentiment, SheetCoaching}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("unexpected sheets %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected sheets %v", got)
		}
	}

	rows, err := f.GetRows(SheetSummary)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if rows[1][1] != "call.mp3" || rows[3][0] != ProcessedBy {
		t.Fatalf("unexpected header rows %v", rows[:4])
	}

	rows, err = f.GetRows(SheetTranscript)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if len(rows) != 3 || rows[1][2] != "Salesperson" || rows[2][2] != "Prospect" {
		t.Fatalf("unexpected transcript rows %v", rows)
	}
}

func TestRoundTripThroughBytes(t *testing.T) {
	t.Parallel()

	in := sampleInput()
	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	out, err := Read(&buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.DisplayName != "call.mp3" || out.Result.Summary != "Good call." {
		t.Fatalf("unexpected header %+v", out)
	}
	if len(out.Result.Transcript) != 2 || out.Result.Transcript[1].Text != "Hello there" || out.Result.Transcript[1].Timestamp != "00:04" {
		t.Fatalf("unexpected transcript %+v", out.Result.Transcript)
	}
	if len(out.Result.SentimentGraph) != 2 || out.Result.SentimentGraph[1].Engagement != 55 || out.Result.SentimentGraph[1].Label != "drop" {
		t.Fatalf("unexpected sentiment %+v", out.Result.SentimentGraph)
	}
	if len(out.Result.Coaching.Strengths) != 2 || len(out.Result.Coaching.MissedOpportunities) != 1 {
		t.Fatalf("unexpected coaching %+v", out.Result.Coaching)
	}
	if out.AnalyzedAt.Format("2006-01-02 15:04") != "2025-03-14 09:30" {
		t.Fatalf("unexpected analysis date %v", out.AnalyzedAt)
	}
}

func TestWriteFileAndLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := WriteFile(path, sampleInput()); err != nil {
		t.Fatalf("write file failed: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out.Result.Coaching.MissedOpportunities[0] != "No clear CTA" {
		t.Fatalf("unexpected coaching %+v", out.Result.Coaching)
	}
}

func TestEmptyResultStillExports(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, Input{DisplayName: "empty.wav", AnalyzedAt: time.Now()}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out, err := Read(&buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(out.Result.Transcript) != 0 || len(out.Result.SentimentGraph) != 0 {
		t.Fatalf("expected empty result, got %+v", out.Result)
	}
}

func TestFromSnapshot(t *testing.T) {
	t.Parallel()

	if _, err := FromSnapshot(types.Snapshot{State: types.StateAnalyzing}); err == nil {
		t.Fatalf("expected error for incomplete analysis")
	}
	res := sampleInput().Result
	finished := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	in, err := FromSnapshot(types.Snapshot{State: types.StateComplete, DisplayName: "a.wav", Result: &res, FinishedAt: finished})
	if err != nil {
		t.Fatalf("from snapshot failed: %v", err)
	}
	if in.DisplayName != "a.wav" || !in.AnalyzedAt.Equal(finished) || in.Result.Summary != "Good call." {
		t.Fatalf("unexpected input %+v", in)
	}
}

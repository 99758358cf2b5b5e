package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sales-coach-go/internal/types"
)

// Load reads a workbook previously written by WriteFile.
func Load(path string) (Input, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return read(f)
}

// Read is Load for an in-memory workbook.
func Read(r io.Reader) (Input, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Input{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return read(f)
}

func read(f *excelize.File) (Input, error) {
	var in Input
	if err := readSummary(f, &in); err != nil {
		return Input{}, err
	}
	if err := readTranscript(f, &in.Result); err != nil {
		return Input{}, err
	}
	if err := readSentiment(f, &in.Result); err != nil {
		return Input{}, err
	}
	if err := readCoaching(f, &in.Result); err != nil {
		return Input{}, err
	}
	return in, nil
}

func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: no rows", sheet)
	}
	return rows, nil
}

func readSummary(f *excelize.File, in *Input) error {
	rows, err := sheetRows(f, SheetSummary)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(r[0])) {
		case "file":
			in.DisplayName = r[1]
		case "analyzed":
			if t, err := time.ParseInLocation("January 2, 2006 15:04", r[1], time.Local); err == nil {
				in.AnalyzedAt = t
			}
		case "summary":
			in.Result.Summary = r[1]
		}
	}
	return nil
}

// columns finds header positions by name so older exports with extra or
// reordered columns still load.
func columns(header []string, names ...string) []int {
	idx := make([]int, len(names))
	for i := range idx {
		idx[i] = -1
	}
	for col, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		for i, name := range names {
			if idx[i] == -1 && strings.Contains(l, name) {
				idx[i] = col
			}
		}
	}
	return idx
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

func readTranscript(f *excelize.File, res *types.AnalysisResult) error {
	rows, err := sheetRows(f, SheetTranscript)
	if err != nil {
		return err
	}
	cols := columns(rows[0], "time", "speaker", "text")
	if cols[1] == -1 || cols[2] == -1 {
		return fmt.Errorf("read %s: speaker or text column missing", SheetTranscript)
	}
	res.Transcript = []types.TranscriptSegment{}
	for _, r := range rows[1:] {
		res.Transcript = append(res.Transcript, types.TranscriptSegment{
			Timestamp: cell(r, cols[0]),
			Speaker:   cell(r, cols[1]),
			Text:      cell(r, cols[2]),
		})
	}
	return nil
}

func readSentiment(f *excelize.File, res *types.AnalysisResult) error {
	rows, err := sheetRows(f, SheetSentiment)
	if err != nil {
		return err
	}
	cols := columns(rows[0], "time", "engagement", "label")
	if cols[1] == -1 {
		return fmt.Errorf("read %s: engagement column missing", SheetSentiment)
	}
	res.SentimentGraph = []types.SentimentPoint{}
	for i, r := range rows[1:] {
		raw := strings.TrimSpace(cell(r, cols[1]))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("read %s row %d: engagement %q: %w", SheetSentiment, i+2, raw, err)
		}
		res.SentimentGraph = append(res.SentimentGraph, types.SentimentPoint{
			Time:       cell(r, cols[0]),
			Engagement: v,
			Label:      cell(r, cols[2]),
		})
	}
	return nil
}

func readCoaching(f *excelize.File, res *types.AnalysisResult) error {
	rows, err := sheetRows(f, SheetCoaching)
	if err != nil {
		return err
	}
	cols := columns(rows[0], "strength", "missed")
	res.Coaching = types.CoachingInsights{Strengths: []string{}, MissedOpportunities: []string{}}
	for _, r := range rows[1:] {
		if s := cell(r, cols[0]); s != "" {
			res.Coaching.Strengths = append(res.Coaching.Strengths, s)
		}
		if s := cell(r, cols[1]); s != "" {
			res.Coaching.MissedOpportunities = append(res.Coaching.MissedOpportunities, s)
		}
	}
	return nil
}

package aggregator

import (
	"strings"

	"sales-coach-go/internal/types"
)

// Stats are figures derived from one analysis for the report and the state
// endpoint. They never feed back into the result.
type Stats struct {
	AverageEngagement   float64        `json:"average_engagement"`
	PeakEngagement      int            `json:"peak_engagement"`
	PeakAt              string         `json:"peak_at"`
	LowestEngagement    int            `json:"lowest_engagement"`
	LowestAt            string         `json:"lowest_at"`
	SegmentsBySpeaker   map[string]int `json:"segments_by_speaker"`
	SalespersonTalkRate float64        `json:"salesperson_talk_rate"`
	Strengths           int            `json:"strengths"`
	MissedOpportunities int            `json:"missed_opportunities"`
}

// IsSalesperson reports whether a speaker label names the salesperson. Any
// label containing "sales" counts, ignoring case.
func IsSalesperson(speaker string) bool {
	return strings.Contains(strings.ToLower(speaker), "sales")
}

func Summarize(res types.AnalysisResult) Stats {
	st := Stats{
		SegmentsBySpeaker:   map[string]int{},
		Strengths:           len(res.Coaching.Strengths),
		MissedOpportunities: len(res.Coaching.MissedOpportunities),
	}

	if len(res.SentimentGraph) > 0 {
		total := 0
		peak, low := res.SentimentGraph[0], res.SentimentGraph[0]
		for _, p := range res.SentimentGraph {
			total += p.Engagement
			if p.Engagement > peak.Engagement {
				peak = p
			}
			if p.Engagement < low.Engagement {
				low = p
			}
		}
		st.AverageEngagement = float64(total) / float64(len(res.SentimentGraph))
		st.PeakEngagement, st.PeakAt = peak.Engagement, peak.Time
		st.LowestEngagement, st.LowestAt = low.Engagement, low.Time
	}

	// talk rate by characters spoken, not by turns
	sales, all := 0, 0
	for _, seg := range res.Transcript {
		st.SegmentsBySpeaker[seg.Speaker]++
		n := len([]rune(seg.Text))
		all += n
		if IsSalesperson(seg.Speaker) {
			sales += n
		}
	}
	if all > 0 {
		st.SalespersonTalkRate = float64(sales) / float64(all)
	}
	return st
}

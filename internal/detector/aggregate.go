package detector

import (
	"sort"

	"github.com/rewired-gh/argus/internal/models"
)

type userStats struct {
	userID     int64
	suspicious int
	total      int
	patterns   map[string]struct{}
}

// AnalyzeUserBehavior aggregates detection results per username. Patterns are
// collected from the user's suspicious comments only. The result is sorted by
// suspicion score descending, ties broken by username ascending. SessionID is
// left empty for the caller to fill.
func AnalyzeUserBehavior(comments []models.Comment, res Result) []models.UserBehavior {
	stats := make(map[string]*userStats)
	var order []string

	for i, c := range comments {
		st, exists := stats[c.Username]
		if !exists {
			st = &userStats{userID: c.UserID, patterns: make(map[string]struct{})}
			stats[c.Username] = st
			order = append(order, c.Username)
		}
		st.total++
		if i < len(res.Predictions) && res.Predictions[i] {
			st.suspicious++
			for _, p := range res.Patterns[i] {
				st.patterns[p] = struct{}{}
			}
		}
	}

	behaviors := make([]models.UserBehavior, 0, len(order))
	for _, username := range order {
		st := stats[username]
		patterns := make([]string, 0, len(st.patterns))
		for p := range st.patterns {
			patterns = append(patterns, p)
		}
		sort.Strings(patterns)

		behaviors = append(behaviors, models.UserBehavior{
			Username:        username,
			UserID:          st.userID,
			SuspiciousCount: st.suspicious,
			TotalComments:   st.total,
			SuspicionScore:  float64(st.suspicious) / float64(st.total) * 100,
			Patterns:        patterns,
		})
	}

	sort.SliceStable(behaviors, func(i, j int) bool {
		if behaviors[i].SuspicionScore != behaviors[j].SuspicionScore {
			return behaviors[i].SuspicionScore > behaviors[j].SuspicionScore
		}
		return behaviors[i].Username < behaviors[j].Username
	})
	return behaviors
}

// AnalyzePostsTargeted aggregates detection results per post. Comments on
// posts missing from posts are ignored, and posts without comments are left
// out. The result is sorted by suspicion ratio descending, ties broken by
// post ID ascending.
func AnalyzePostsTargeted(posts []models.Post, comments []models.Comment, res Result) []models.PostAnalysis {
	byID := make(map[int64]*models.PostAnalysis, len(posts))
	for _, p := range posts {
		byID[p.PostID] = &models.PostAnalysis{
			PostID:   p.PostID,
			Caption:  p.Caption,
			Username: p.Username,
		}
	}

	for i, c := range comments {
		pa, ok := byID[c.PostID]
		if !ok {
			continue
		}
		pa.TotalComments++
		if i < len(res.Predictions) && res.Predictions[i] {
			pa.SuspiciousCount++
		}
	}

	analyses := make([]models.PostAnalysis, 0, len(byID))
	for _, pa := range byID {
		if pa.TotalComments == 0 {
			continue
		}
		pa.SuspicionRatio = float64(pa.SuspiciousCount) / float64(pa.TotalComments) * 100
		analyses = append(analyses, *pa)
	}

	sort.Slice(analyses, func(i, j int) bool {
		if analyses[i].SuspicionRatio != analyses[j].SuspicionRatio {
			return analyses[i].SuspicionRatio > analyses[j].SuspicionRatio
		}
		return analyses[i].PostID < analyses[j].PostID
	})
	return analyses
}

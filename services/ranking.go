package services

import (
	"math"
	"sort"
	"time"

	"tabforum/models"
)

// Relevance ranking, adapted from the Hacker News / Reddit family of
// time-decay scores: fresh content gets a short boost, then an exponential
// gravity pulls the score toward the tabcoin baseline.
const (
	ageBase     = 6 * time.Hour
	boostPeriod = 10 * time.Minute
	scoreOffset = 0.5
)

// ContentScore is deterministic for a fixed now: equal inputs always yield
// the same score.
func ContentScore(content *models.Content, now time.Time) float64 {
	tabcoins := float64(content.Tabcoins)

	age := ageBase * 1000 // unpublished rows rank as ancient
	if content.PublishedAt != nil {
		age = now.Sub(*content.PublishedAt)
	}

	boost := 1.0
	if age < boostPeriod {
		boost = 3.0
	}

	gravity := math.Exp(-float64(age) / float64(ageBase))
	score := (tabcoins - scoreOffset) * boost

	if tabcoins > 0 {
		return score * (1 + gravity)
	}
	return score * (1 - gravity)
}

// RankByRelevance sorts descending by score. The sort is stable: ties keep
// their original relative order.
func RankByRelevance(contents []models.Content, now time.Time) []models.Content {
	scores := make([]float64, len(contents))
	for i := range contents {
		scores[i] = ContentScore(&contents[i], now)
	}

	indexes := make([]int, len(contents))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		return scores[indexes[a]] > scores[indexes[b]]
	})

	ranked := make([]models.Content, len(contents))
	for i, idx := range indexes {
		ranked[i] = contents[idx]
	}
	return ranked
}

func rankPointersByRelevance(contents []*models.Content, now time.Time) []*models.Content {
	scores := make(map[*models.Content]float64, len(contents))
	for _, content := range contents {
		scores[content] = ContentScore(content, now)
	}
	sort.SliceStable(contents, func(a, b int) bool {
		return scores[contents[a]] > scores[contents[b]]
	})
	return contents
}

package scoring

import (
	"strings"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

// DefaultKeywords are matched as lowercase substrings of headlines.
var DefaultKeywords = []string{
	"acquir", "merger", "buyback", "insider", "partnership", "contract", "earnings", "surge", "growth",
	"breakthrough", "approval", "patent", "launch", "hiring", "expansion", "ai", "chip", "semiconductor",
}

// InsiderTally counts canonical buy and sell transactions; unknown directions are ignored.
func InsiderTally(txs []models.InsiderTransaction) (buy, sell int) {
	for _, tx := range txs {
		switch tx.Direction {
		case models.DirectionBuy:
			buy++
		case models.DirectionSell:
			sell++
		}
	}
	return buy, sell
}

// NewsBuzz counts keyword occurrences across headlines published within window of now.
// Items without a publish time are skipped.
func NewsBuzz(items []models.NewsItem, keywords []string, now time.Time, window time.Duration) int {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	cutoff := now.Add(-window)
	n := 0
	for _, it := range items {
		if it.Published.IsZero() || it.Published.Before(cutoff) {
			continue
		}
		title := strings.ToLower(it.Title)
		for _, k := range keywords {
			n += strings.Count(title, k)
		}
	}
	return n
}

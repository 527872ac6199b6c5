package types

import (
	"encoding/json"
	"math"
	"strconv"
)

// MinRating and MaxRating bound a single product review score.
const (
	MinRating = 1
	MaxRating = 5
)

// RatingHistogram counts reviews per star, index 0 holding one-star reviews.
type RatingHistogram [MaxRating]int64

// Add records count reviews with the given rating. Out of range ratings are ignored.
func (h *RatingHistogram) Add(rating int, count int64) {
	if rating < MinRating || rating > MaxRating || count <= 0 {
		return
	}
	h[rating-1] += count
}

func (h RatingHistogram) Total() int64 {
	var total int64
	for _, n := range h {
		total += n
	}
	return total
}

// Average is the mean rating rounded to two decimals, zero without reviews.
func (h RatingHistogram) Average() float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}
	var sum int64
	for i, n := range h {
		sum += int64(i+1) * n
	}
	return math.Round(float64(sum)/float64(total)*100) / 100
}

// MarshalJSON renders {"1": n, ..., "5": n}.
func (h RatingHistogram) MarshalJSON() ([]byte, error) {
	out := make(map[string]int64, MaxRating)
	for i, n := range h {
		out[strconv.Itoa(i+1)] = n
	}
	return json.Marshal(out)
}

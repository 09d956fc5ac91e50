package model

import "time"

// ActivityEntry is the immutable record of one status transition.
// Seq is the store's insertion sequence; it breaks ties between entries
// that share a timestamp.
type ActivityEntry struct {
	Seq        int64     `json:"id"`
	CardID     string    `json:"cardId"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Message    string    `json:"message"`
}

// StatusCounts maps each status to the number of cards currently in it.
type StatusCounts map[Status]int64

// Total sums every status.
func (c StatusCounts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

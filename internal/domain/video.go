package domain

// VideoKey identifies a queue item across providers.
type VideoKey struct {
	Service string `json:"service"`
	ID      string `json:"id"`
}

// QueueItem is resolved, provider-independent metadata of one playable item.
// Length is in seconds; zero means the provider could not report it.
type QueueItem struct {
	Service     string  `json:"service"`
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Thumbnail   string  `json:"thumbnail"`
	Length      float64 `json:"length"`
}

func (q QueueItem) Key() VideoKey {
	return VideoKey{Service: q.Service, ID: q.ID}
}

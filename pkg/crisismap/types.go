package crisismap

// Report is one entry of the Crisis Map reports API. Answers are keyed
// "<mapId>.<topicId>.<questionKey>".
type Report struct {
	Source    string         `json:"source"`
	Author    string         `json:"author"`
	ID        string         `json:"id"`
	MapID     string         `json:"map_id"`
	TopicIDs  []string       `json:"topic_ids"`
	Submitted float64        `json:"submitted"`
	Effective float64        `json:"effective"`
	Location  []float64      `json:"location,omitempty"`
	PlaceID   string         `json:"place_id,omitempty"`
	Answers   map[string]any `json:"answers"`
}

// TopicID returns the qualified topic id "<mapId>.<topicId>".
func TopicID(mapID, topicID string) string {
	return mapID + "." + topicID
}

// AnswerKey returns the qualified answer key for a question.
func AnswerKey(mapID, topicID, questionKey string) string {
	return mapID + "." + topicID + "." + questionKey
}

// Result is the raw outcome of a post.
type Result struct {
	StatusCode int
	Body       string
}

// OK reports a 2xx response.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

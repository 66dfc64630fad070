package interview

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Question is the server's current-question payload.
type Question struct {
	Topic    string `json:"topic"`
	Question string `json:"question"`
}

// Score carries a per-question score the server may send as either a
// JSON number or a string (it sends "" before an answer is graded).
type Score string

func (s *Score) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Score(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = Score(num.String())
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// Value parses the score as a float. ok is false for blank or
// non-numeric scores.
func (s Score) Value() (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// QuestionRecord is the server-authoritative record fetched at the end
// of the interview. The client never mutates these.
type QuestionRecord struct {
	Topic       string `json:"topic"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	CandiAnswer string `json:"candi_answer"`
	Category    string `json:"category"`
	Score       Score  `json:"score"`
}

// TopicAverage is one row of the score summary.
type TopicAverage struct {
	Topic   string
	Average string
}

// NextTurn is the server's decision after an answer is submitted.
type NextTurn struct {
	ConnectingSentence string    `json:"connecting_sentence"`
	Finished           bool      `json:"interview_finished"`
	Question           *Question `json:"question"`
}

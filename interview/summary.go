package interview

import "fmt"

// TopicAverages computes the mean score per topic over records with a
// numeric score, formatted to two decimals. Topics appear in first-seen
// order; a topic with no numeric scores is omitted.
func TopicAverages(records []QuestionRecord) []TopicAverage {
	type acc struct {
		total float64
		count int
	}
	order := make([]string, 0, len(records))
	sums := make(map[string]*acc)

	for _, r := range records {
		if r.Topic == "" {
			continue
		}
		v, ok := r.Score.Value()
		if !ok {
			continue
		}
		a := sums[r.Topic]
		if a == nil {
			a = &acc{}
			sums[r.Topic] = a
			order = append(order, r.Topic)
		}
		a.total += v
		a.count++
	}

	averages := make([]TopicAverage, 0, len(order))
	for _, topic := range order {
		a := sums[topic]
		averages = append(averages, TopicAverage{
			Topic:   topic,
			Average: fmt.Sprintf("%.2f", a.total/float64(a.count)),
		})
	}
	return averages
}

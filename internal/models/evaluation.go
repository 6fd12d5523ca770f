package models

// RecordMetrics holds the per-question quality proxies.
type RecordMetrics struct {
	RelevanceScore float64 `json:"relevance_score"`
	AnswerLength   int     `json:"answer_length"`
	ContextCount   int     `json:"context_count"`
}

// Record is the outcome of evaluating a single question.
type Record struct {
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Contexts []string      `json:"contexts"`
	Metrics  RecordMetrics `json:"metrics"`
	// Error is set when answering the question failed.
	Error string `json:"error,omitempty"`
}

// Summary aggregates record metrics over a batch.
type Summary struct {
	NumQuestions      int     `json:"num_questions"`
	AvgRelevanceScore float64 `json:"avg_relevance_score"`
	AvgAnswerLength   float64 `json:"avg_answer_length"`
	AvgContextCount   float64 `json:"avg_context_count"`
}

// Scores are the derived, heuristic scores consumed by reporting.
type Scores struct {
	AnswerRelevancy  float64 `json:"answer_relevancy"`
	Faithfulness     float64 `json:"faithfulness"`
	ContextPrecision float64 `json:"context_precision"`
	ContextRecall    float64 `json:"context_recall"`
}

// EvalResult is the evaluation result artifact.
type EvalResult struct {
	Scores  Scores   `json:"scores"`
	Summary Summary  `json:"summary"`
	Records []Record `json:"records"`
}

// Failed returns the records whose question could not be answered.
func (r EvalResult) Failed() []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.Error != "" {
			out = append(out, rec)
		}
	}
	return out
}

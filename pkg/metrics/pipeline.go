package metrics

import "time"

// Series names exported by the answer pipeline.
const (
	AnswersTotal       = "bookrag_answers_total"
	StageFailuresTotal = "bookrag_stage_failures_total"
	AnswerDuration     = "bookrag_answer_duration_seconds"
	AnswerConfidence   = "bookrag_answer_confidence"
)

// ConfidenceBuckets partition answer confidence scores.
var ConfidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1}

// Pipeline records answer outcomes into a Registry.
type Pipeline struct {
	reg *Registry
}

// NewPipeline registers the pipeline families on reg.
func NewPipeline(reg *Registry) *Pipeline {
	p := &Pipeline{reg: reg}
	reg.Histogram(AnswerDuration, "Time to produce an answer, in seconds.", nil)
	reg.Histogram(AnswerConfidence, "Confidence of grounded answers.", ConfidenceBuckets)
	return p
}

// AnswerServed counts one answer by source and observes its latency.
func (p *Pipeline) AnswerServed(source string, confidence float64, took time.Duration) {
	p.reg.Counter(WithLabels(AnswersTotal, "source", source), "Answers served by source.").Inc()
	p.reg.Histogram(AnswerDuration, "", nil).Observe(took.Seconds())
	if source == "grounded" {
		p.reg.Histogram(AnswerConfidence, "", ConfidenceBuckets).Observe(confidence)
	}
}

// StageFailed counts a failed or degraded pipeline stage.
func (p *Pipeline) StageFailed(stage string) {
	p.reg.Counter(WithLabels(StageFailuresTotal, "stage", stage), "Pipeline stage failures.").Inc()
}

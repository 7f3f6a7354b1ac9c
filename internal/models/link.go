package models

// Link methods recorded on an answer after the linker ran.
const (
	LinkMethodReply        = "reply"
	LinkMethodSemantic     = "semantic"
	LinkMethodNoCandidates = "no-candidates"
	LinkMethodLowScore     = "low-score"
)

// LinkDecision is the outcome of running the Q&A linker on one answer.
// QuestionID is nil when no question was accepted; the computed score is
// still carried for observability.
type LinkDecision struct {
	QuestionID *string `json:"question_id"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Verified   bool    `json:"verified"`
}

// AnswerEvent is the payload consumed from the transcribed-answers topic.
type AnswerEvent struct {
	AnswerID    string `json:"answer_id"`
	GroupID     string `json:"group_id"`
	Sender      string `json:"sender"`
	Transcript  string `json:"transcript"`
	AudioRef    string `json:"audio_ref,omitempty"`
	ReplyToID   string `json:"reply_to_id,omitempty"`
	ContextHint string `json:"context_hint,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

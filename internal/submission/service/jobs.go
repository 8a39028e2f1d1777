package service

// TopicEvaluate is the durable queue topic carrying evaluation jobs.
const TopicEvaluate = "submission.evaluate"

// evaluateJob is the wire payload of one evaluation job.
type evaluateJob struct {
	SubmissionID int64 `json:"submission_id"`
}

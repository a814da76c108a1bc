package events

// Default processors for common AWS lifecycle event shapes. Callers register
// the ones matching the resources they tokenize.

// EMRClusterTerminated removes the token bound to an EMR cluster once the
// cluster reaches a terminated state. The state check is a substring match,
// so TERMINATED_WITH_ERRORS also qualifies.
func EMRClusterTerminated() Processor {
	return NewProcessor("aws.emr", "detail.clusterId",
		Contains("detail.state", "TERMINATED"))
}

// EMRStepCompleted removes the token bound to an EMR step once the step
// finishes, regardless of outcome.
func EMRStepCompleted() Processor {
	return NewProcessor("aws.emr", "detail.stepId",
		Equals("detail.state", "COMPLETED").
			Or(Equals("detail.state", "FAILED")).
			Or(Equals("detail.state", "CANCELLED")))
}

// BatchJobCompleted removes the token bound to a Batch job once the job
// reaches a terminal status.
func BatchJobCompleted() Processor {
	return NewProcessor("aws.batch", "detail.jobId",
		Equals("detail.status", "SUCCEEDED").
			Or(Equals("detail.status", "FAILED")))
}

package config

type WorkerKeyStruct struct {
	PersistAnswersQueue string
	ScoreJobsQueue      string
	// ScoreJobsDeadLetter holds jobs the judge permanently rejected, kept
	// for operator inspection instead of cycling through the live queue.
	ScoreJobsDeadLetter string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue: "persist_answers_queue",
	ScoreJobsQueue:      "score_jobs_queue",
	ScoreJobsDeadLetter: "score_jobs_dead_letter",
}

package config

type WorkerKeyStruct struct {
	PersistAnswersQueue   string
	PersistAttemptsQueue  string
	PersistStepOrderQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:   "persist_answers_queue",
	PersistAttemptsQueue:  "persist_attempts_queue",
	PersistStepOrderQueue: "persist_step_order_queue",
}

package worker

import "github.com/hibiken/asynq"

const TypeRoomSweep = "room:sweep"

func NewRoomSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil)
}

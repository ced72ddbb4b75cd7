package room

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomExists          = errors.New("room already exists")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomInUse           = errors.New("room is in use")
	ErrCodeTaken           = errors.New("room code already taken")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantActive   = errors.New("participant is still active")
	ErrConflict            = errors.New("concurrent update conflict")
)

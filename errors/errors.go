package errors

import "fmt"

var (
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrChatNotFound       = fmt.Errorf("chat not found")
	ErrMembershipNotFound = fmt.Errorf("membership not found")
	ErrUsernameTaken      = fmt.Errorf("username already taken")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrSelfChat           = fmt.Errorf("cannot chat with yourself")
	ErrInvalidEnvelope    = fmt.Errorf("invalid message envelope")
	ErrConnectionClosed   = fmt.Errorf("connection closed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)

//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need
// for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Sink is one live client connection from the engine's point of view.
// Send must be safe for concurrent use and must honor ctx cancellation;
// a closed connection returns an error instead of blocking.
type Sink interface {
	Send(ctx context.Context, payload []byte) error
}

// IRegistry maps live connections to the user identity that most
// recently authenticated on them. Implementations must be safe under
// arbitrary concurrent invocation.
type IRegistry interface {
	Bind(sink Sink, userID int64)
	Unbind(sink Sink)
	SinksForMembers(memberIDs []int64) []Sink
}

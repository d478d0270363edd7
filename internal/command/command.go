package command

import "context"

//go:generate go run go.uber.org/mock/mockgen -source=command.go -destination=mocks/mock.go
type Client interface {
	// HandleCommand consumes bot updates until ctx ends or the update stream closes.
	HandleCommand(ctx context.Context) error
	// Close cancels every running research and releases the worker pool.
	Close()
}

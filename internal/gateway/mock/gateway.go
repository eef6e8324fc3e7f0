// Package mock provides a function-field gateway for tests.
package mock

import (
	"context"
)

// Gateway implements gateway.Gateway with overridable function fields. Nil
// fields behave as immediate success with zero values.
type Gateway struct {
	RunFunc      func(ctx context.Context, analysisType, inputPath, samples, jobCode string) (int, error)
	KillFunc     func(ctx context.Context, jobID, jobType string) error
	FetchLogFunc func(ctx context.Context, inputPath, jobType string) (string, error)
}

func (m *Gateway) Run(ctx context.Context, analysisType, inputPath, samples, jobCode string) (int, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, analysisType, inputPath, samples, jobCode)
	}
	return 0, nil
}

func (m *Gateway) Kill(ctx context.Context, jobID, jobType string) error {
	if m.KillFunc != nil {
		return m.KillFunc(ctx, jobID, jobType)
	}
	return nil
}

func (m *Gateway) FetchLog(ctx context.Context, inputPath, jobType string) (string, error) {
	if m.FetchLogFunc != nil {
		return m.FetchLogFunc(ctx, inputPath, jobType)
	}
	return "", nil
}

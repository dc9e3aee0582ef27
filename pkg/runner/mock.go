package runner

import (
	"context"
)

// MockRunner is a Runner implementation for testing
type MockRunner struct {
	MockResult *Result
	MockError  error

	// Captured from the last Run call.
	LastArgs   []string
	LastConfig Config
}

func (m *MockRunner) Run(ctx context.Context, args []string, cfg Config) (*Result, error) {
	m.LastArgs = args
	m.LastConfig = cfg
	return m.MockResult, m.MockError
}

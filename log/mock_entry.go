package log

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

// NewMockEntry returns an entry whose output is discarded and captured by the returned hook
func NewMockEntry() (*logrus.Entry, *MockLoggerHook) {
	logger, _ := test.NewNullLogger()
	logger.Level = logrus.TraceLevel

	entry := logrus.NewEntry(logger)
	hook := MockLoggerHook{}

	entry.Logger.AddHook(&hook)

	hook.On("Fire", mock.Anything).Return(nil)

	return entry, &hook
}

type MockLoggerHook struct {
	mock.Mock

	Messages    []string
	EntryLevels []logrus.Level
	mu          sync.Mutex
}

// Levels implements `logrus.Hook`.
func (h *MockLoggerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements `logrus.Hook`.
func (h *MockLoggerHook) Fire(entry *logrus.Entry) error {
	_ = h.Called()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.Messages = append(h.Messages, entry.Message)
	h.EntryLevels = append(h.EntryLevels, entry.Level)

	return nil
}

// LastMessage returns the most recent message or an empty string
func (h *MockLoggerHook) LastMessage() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.Messages) == 0 {
		return ""
	}

	return h.Messages[len(h.Messages)-1]
}

// Reset clears all captured messages.
func (h *MockLoggerHook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Messages = nil
	h.EntryLevels = nil
}

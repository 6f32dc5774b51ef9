// Package notify carries user-facing notifications out of the controllers.
package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Message keys emitted by the product controllers.
const (
	KeySaveSuccess              = "sw-product.list.messageSaveSuccess"
	KeySaveErrorRequiredFields  = "global.notification.notificationSaveErrorMessageRequiredFieldsInvalid"
	KeySaveErrorDuplicateNumber = "sw-product.notification.notificationSaveErrorProductNoAlreadyExists"
	KeyUnspecifiedSaveError     = "global.notification.unspecifiedSaveErrorMessage"
	KeyMinMaxPurchase           = "sw-product.detail.errorMinMaxPurchase"
	KeyMediaDuplicated          = "sw-product.mediaForm.errorMediaItemDuplicated"
	KeyLoadError                = "global.notification.notificationLoadingDataErrorMessage"
)

// Level is the severity of a notification.
type Level string

const (
	LevelError   Level = "error"
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
)

// Notification is a message key plus its interpolation parameters.
type Notification struct {
	Level   Level          `json:"level"`
	Title   string         `json:"title,omitempty"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// Notifier is the sink for user-facing messages.
type Notifier interface {
	Error(n Notification)
	Success(n Notification)
	Info(n Notification)
}

// Message builds a notification for key with alternating name/value params.
func Message(key string, params ...any) Notification {
	n := Notification{Message: key}
	if len(params) > 1 {
		n.Params = make(map[string]any, len(params)/2)
		for i := 0; i+1 < len(params); i += 2 {
			if name, ok := params[i].(string); ok {
				n.Params[name] = params[i+1]
			}
		}
	}
	return n
}

// Collector keeps notifications in memory until drained.
type Collector struct {
	mu      sync.Mutex
	entries []Notification
}

func (c *Collector) add(level Level, n Notification) {
	n.Level = level
	c.mu.Lock()
	c.entries = append(c.entries, n)
	c.mu.Unlock()
}

func (c *Collector) Error(n Notification)   { c.add(LevelError, n) }
func (c *Collector) Success(n Notification) { c.add(LevelSuccess, n) }
func (c *Collector) Info(n Notification)    { c.add(LevelInfo, n) }

// Entries returns a copy of the collected notifications.
func (c *Collector) Entries() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.entries...)
}

// Drain returns and clears the collected notifications.
func (c *Collector) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.entries
	c.entries = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs every message.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Error(n Notification) {
	l.logger.Warn("notification", fields(LevelError, n)...)
}

func (l *LogNotifier) Success(n Notification) {
	l.logger.Info("notification", fields(LevelSuccess, n)...)
}

func (l *LogNotifier) Info(n Notification) {
	l.logger.Info("notification", fields(LevelInfo, n)...)
}

func fields(level Level, n Notification) []zap.Field {
	return []zap.Field{
		zap.String("level", string(level)),
		zap.String("message", n.Message),
		zap.Any("params", n.Params),
	}
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Error(n Notification) {
	for _, t := range m {
		t.Error(n)
	}
}

func (m Multi) Success(n Notification) {
	for _, t := range m {
		t.Success(n)
	}
}

func (m Multi) Info(n Notification) {
	for _, t := range m {
		t.Info(n)
	}
}

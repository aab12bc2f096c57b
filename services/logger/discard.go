package logsvc

import "github.com/sameeradaveen/lms-new-main/core"

// DiscardLogger drops everything. Used by tests.
type DiscardLogger struct{}

var _ core.Logger = DiscardLogger{}

func NewDiscardLogger() DiscardLogger { return DiscardLogger{} }

func (DiscardLogger) Debug(string, ...interface{}) {}
func (DiscardLogger) Info(string, ...interface{})  {}
func (DiscardLogger) Warn(string, ...interface{})  {}
func (DiscardLogger) Error(string, ...interface{}) {}
func (DiscardLogger) Fatal(string, ...interface{}) {}

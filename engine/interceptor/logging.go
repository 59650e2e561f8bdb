package interceptor

import (
	"github.com/lyzr/rulechain/common/logger"
	"github.com/lyzr/rulechain/engine/message"
	"github.com/lyzr/rulechain/engine/registry"
)

// LoggingInterceptor is the default node interceptor: logs node id/type at
// entry, node id/type/chosen-branch at exit, and the error at failure.
// Mirrors the original engine's always-on LoggingInterceptor.
type LoggingInterceptor struct {
	log *logger.Logger
}

// NewLoggingInterceptor builds the default node logging interceptor.
func NewLoggingInterceptor(log *logger.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{log: log}
}

func (l *LoggingInterceptor) Before(node registry.Node, msg message.Message) error {
	l.log.Debug("node execution starting",
		"node_id", node.ID, "node_type", node.Type, "message_id", msg.ID.String())
	return nil
}

func (l *LoggingInterceptor) After(node registry.Node, msg message.Message) error {
	branch, _ := msg.BranchName()
	l.log.Debug("node execution succeeded",
		"node_id", node.ID, "node_type", node.Type, "message_id", msg.ID.String(), "branch_name", branch)
	return nil
}

func (l *LoggingInterceptor) Error(node registry.Node, cause error) error {
	l.log.Error("node execution failed",
		"node_id", node.ID, "node_type", node.Type, "error", cause)
	return nil
}

// MessageLoggingInterceptor is the default message interceptor: logs entry
// and exit of every process() call. Mirrors MessageLoggingInterceptor.
type MessageLoggingInterceptor struct {
	log *logger.Logger
}

// NewMessageLoggingInterceptor builds the default message logging interceptor.
func NewMessageLoggingInterceptor(log *logger.Logger) *MessageLoggingInterceptor {
	return &MessageLoggingInterceptor{log: log}
}

func (m *MessageLoggingInterceptor) BeforeProcess(msg message.Message) error {
	m.log.Debug("processing message", "message_id", msg.ID.String(), "msg_type", msg.Type)
	return nil
}

func (m *MessageLoggingInterceptor) AfterProcess(msg message.Message) error {
	m.log.Debug("message processed", "message_id", msg.ID.String(), "msg_type", msg.Type)
	return nil
}

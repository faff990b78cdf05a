// Package agenterr implements the error taxonomy of the agent: every error
// that crosses a subsystem boundary is wrapped into an AgentError carrying
// a stable code, a class, and structured details, instead of a bare
// fmt.Errorf. It keeps the standard library's wrapping idiom (Unwrap,
// %w-compatible) but adds the typed envelope the error taxonomy and
// critical-error routing need.
package agenterr

import (
	"fmt"
	"time"
)

// Class is the intent-based error taxonomy: configuration, monitoring,
// detection, analysis, profiling, reporting, resource, state, security,
// performance.
type Class string

const (
	ClassConfiguration Class = "configuration"
	ClassMonitoring    Class = "monitoring"
	ClassDetection     Class = "detection"
	ClassAnalysis      Class = "analysis"
	ClassProfiling     Class = "profiling"
	ClassReporting     Class = "reporting"
	ClassResource      Class = "resource"
	ClassState         Class = "state"
	ClassSecurity      Class = "security"
	ClassPerformance   Class = "performance"
)

// criticalCodes are the stable codes the supervisor classifies as critical
// per §4.8: heap-snapshot failure, security violation, memory exhaustion.
var criticalCodes = map[string]bool{
	"SNAPSHOT_FAILED":    true,
	"SECURITY_VIOLATION": true,
	"MEMORY_EXHAUSTED":   true,
}

// AgentError is the single error envelope every subsystem returns across
// its public boundary.
type AgentError struct {
	Code      string
	Class     Class
	Message   string
	Details   map[string]any
	Timestamp time.Time
	Err       error
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *AgentError) Unwrap() error { return e.Err }

// Critical reports whether this error's code is in the classified-critical
// set (§4.8, §7).
func (e *AgentError) Critical() bool {
	return criticalCodes[e.Code]
}

// New builds an AgentError of class/code, wrapping cause if non-nil.
func New(class Class, code, message string, cause error, details map[string]any) *AgentError {
	return &AgentError{
		Code:      code,
		Class:     class,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
		Err:       cause,
	}
}

func Configuration(code, msg string, cause error) *AgentError {
	return New(ClassConfiguration, code, msg, cause, nil)
}
func Monitoring(code, msg string, cause error) *AgentError {
	return New(ClassMonitoring, code, msg, cause, nil)
}
func Detection(code, msg string, cause error) *AgentError {
	return New(ClassDetection, code, msg, cause, nil)
}
func Analysis(code, msg string, cause error) *AgentError {
	return New(ClassAnalysis, code, msg, cause, nil)
}
func Profiling(code, msg string, cause error) *AgentError {
	return New(ClassProfiling, code, msg, cause, nil)
}
func Reporting(code, msg string, cause error) *AgentError {
	return New(ClassReporting, code, msg, cause, nil)
}
func Resource(code, msg string, cause error) *AgentError {
	return New(ClassResource, code, msg, cause, nil)
}
func State(code, msg string, cause error) *AgentError {
	return New(ClassState, code, msg, cause, nil)
}
func Security(code, msg string, cause error) *AgentError {
	return New(ClassSecurity, code, msg, cause, nil)
}
func Performance(code, msg string, cause error) *AgentError {
	return New(ClassPerformance, code, msg, cause, nil)
}

package core

import (
	"fmt"
	"time"
)

// Severity tags a feedback line.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarn    Severity = "warn"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
	SeveritySuccess Severity = "success"
)

// Leg names used for feedback outside of any leg.
const (
	LegStart = "start"
	LegEnd   = "end"
)

// Feedback is one append-only record of the mission feedback stream.
type Feedback struct {
	Leg      string    `json:"leg"`
	Severity Severity  `json:"severity"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// String renders the record the way operators read it: "[WARN] [leg] text". Info lines carry no tag.
func (f Feedback) String() string {
	switch f.Severity {
	case SeverityInfo, "":
		return fmt.Sprintf("[%s] %s", f.Leg, f.Text)
	case SeverityWarn:
		return fmt.Sprintf("[WARN] [%s] %s", f.Leg, f.Text)
	case SeverityError:
		return fmt.Sprintf("[ERROR] [%s] %s", f.Leg, f.Text)
	case SeverityFatal:
		return fmt.Sprintf("[FATAL] [%s] %s", f.Leg, f.Text)
	case SeveritySuccess:
		return fmt.Sprintf("[SUCCESS] [%s] %s", f.Leg, f.Text)
	default:
		return fmt.Sprintf("[%s] [%s] %s", f.Severity, f.Leg, f.Text)
	}
}

// Reporter receives feedback lines. Implementations must not block the caller for long.
type Reporter interface {
	Report(leg string, severity Severity, text string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(leg string, severity Severity, text string)

func (f ReporterFunc) Report(leg string, severity Severity, text string) { f(leg, severity, text) }

// Outcome is the terminal result of a mission.
type Outcome string

const (
	OutcomeSucceeded Outcome = "Succeeded"
	OutcomeAborted   Outcome = "Aborted"
)

// Result is returned to the task client when a mission terminates.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

// Result messages.
const (
	MessageSucceeded    = "One small step for a rover, one giant leap for roverkind"
	MessageAborted      = "It was the aliens, I'm telling you"
	MessageEmptyRequest = "Well that was less-than-interstellar of you"
)

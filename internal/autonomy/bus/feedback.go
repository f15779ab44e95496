package bus

import (
	"context"
	"time"

	"github.com/autopeer-io/roverpilot/internal/autonomy/core"
	"github.com/autopeer-io/roverpilot/pkg/log"
)

const (
	feedbackQueue       = 256
	feedbackSendTimeout = 2 * time.Second
)

type feedbackRecord struct {
	MissionID string        `json:"mission_id"`
	Leg       string        `json:"leg"`
	Severity  core.Severity `json:"severity"`
	Text      string        `json:"text"`
	Time      time.Time     `json:"time"`
}

// FeedbackMirror republishes mission feedback on the bus. Mirror never blocks the mission: records
// are queued and published in order by Run, and dropped when the queue is full.
type FeedbackMirror struct {
	sender Sender
	queue  chan feedbackRecord
}

var _ Module = (*FeedbackMirror)(nil)

func NewFeedbackMirror() *FeedbackMirror {
	return &FeedbackMirror{queue: make(chan feedbackRecord, feedbackQueue)}
}

func (m *FeedbackMirror) Name() string {
	return "FeedbackMirror"
}

func (m *FeedbackMirror) Setup(ctx context.Context, sender Sender) error {
	m.sender = sender
	return nil
}

func (m *FeedbackMirror) Routes() map[EventType]HandlerFunc {
	return nil
}

func (m *FeedbackMirror) Mirror(missionID string, f core.Feedback) {
	rec := feedbackRecord{MissionID: missionID, Leg: f.Leg, Severity: f.Severity, Text: f.Text, Time: f.Time}
	select {
	case m.queue <- rec:
	default:
		log.Debug("Feedback mirror queue full, dropping record", "mission", missionID, "text", f.Text)
	}
}

// Run publishes queued records until ctx is done.
func (m *FeedbackMirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec := <-m.queue:
			m.publish(ctx, rec)
		}
	}
}

func (m *FeedbackMirror) publish(ctx context.Context, rec feedbackRecord) {
	if m.sender == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, feedbackSendTimeout)
	defer cancel()
	if err := m.sender.SendJSON(ctx, EventMissionFeedback, rec); err != nil {
		log.Debug("Failed to mirror feedback", "mission", rec.MissionID, "error", err.Error())
	}
}

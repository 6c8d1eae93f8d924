package sequencer

import (
	"sync"
	"time"
)

// FeedbackTTL is how long a feedback message stays visible
const FeedbackTTL = 2 * time.Second

// Notice reports a user-visible parameter change, e.g. {"FILTER", "42%"}
type Notice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FeedbackMessage is the notice currently on display
type FeedbackMessage struct {
	Label string    `json:"label"`
	Value string    `json:"value"`
	ID    int64     `json:"id"`
	At    time.Time `json:"at"`
}

// feedback keeps the latest notice and when it was shown. A newer notice
// replaces the old one and restarts its expiry.
type feedback struct {
	mu     sync.Mutex
	now    func() time.Time
	msg    FeedbackMessage
	has    bool
	lastID int64
}

func (f *feedback) show(n Notice) FeedbackMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	at := f.now()
	id := at.UnixMilli()
	if id <= f.lastID {
		id = f.lastID + 1
	}
	f.lastID = id
	f.msg = FeedbackMessage{Label: n.Label, Value: n.Value, ID: id, At: at}
	f.has = true
	return f.msg
}

func (f *feedback) current() (FeedbackMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.has {
		return FeedbackMessage{}, false
	}
	if f.now().Sub(f.msg.At) >= FeedbackTTL {
		f.has = false
		return FeedbackMessage{}, false
	}
	return f.msg, true
}

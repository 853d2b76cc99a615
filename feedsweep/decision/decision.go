// Package decision defines the events feedsweep emits, one per finished
// feed item. These are the public API contract: consumers of the JSON
// lines (or of the in-process callback sink) import this package.
package decision

import "encoding/json"

// Kind is the job that produced a decision.
type Kind string

const (
	KindProbe Kind = "probe" // relationship probe through the overflow menu
	KindMute  Kind = "mute"  // promoted item muted on heuristics
)

// Action is what was done to the item.
type Action string

const (
	ActionNone          Action = "none"
	ActionNotInterested Action = "not_interested"
	ActionMuted         Action = "muted"
	ActionFailed        Action = "failed"
)

// Decision records the outcome for one feed item.
type Decision struct {
	ID             string   `json:"id"` // UUIDv7
	PageURL        string   `json:"page_url"`
	NodeID         int64    `json:"node_id"`
	Author         string   `json:"author,omitempty"`
	OriginalAuthor string   `json:"original_author,omitempty"`
	Kind           Kind     `json:"kind"`
	Reshare        bool     `json:"reshare,omitempty"`
	Verdict        string   `json:"verdict,omitempty"` // following | not_following | undetermined
	Action         Action   `json:"action"`
	Reason         string   `json:"reason"`
	Signals        []string `json:"signals,omitempty"` // text heuristics that held
	Entries        []string `json:"entries,omitempty"` // menu labels seen
	Error          string   `json:"error,omitempty"`
	DurationMs     int64    `json:"duration_ms"`
	Timestamp      int64    `json:"timestamp"` // epoch milliseconds
}

// Dismissed reports whether the item was removed from the feed.
func (d *Decision) Dismissed() bool {
	return d.Action == ActionNotInterested || d.Action == ActionMuted
}

// Marshal serialises a Decision to JSON.
func Marshal(d *Decision) ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal deserialises a Decision from JSON.
func Unmarshal(data []byte) (*Decision, error) {
	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Stats are point-in-time engine counters.
type Stats struct {
	Scans          int64 `json:"scans"`
	ItemsSeen      int64 `json:"items_seen"`
	Enqueued       int64 `json:"enqueued"`
	JobsRun        int64 `json:"jobs_run"`
	Following      int64 `json:"following"`
	NotFollowing   int64 `json:"not_following"`
	Undetermined   int64 `json:"undetermined"`
	Dismissed      int64 `json:"dismissed"`
	Muted          int64 `json:"muted"`
	Errors         int64 `json:"errors"`
	WatchdogRescue int64 `json:"watchdog_rescues"`
	Processed      int   `json:"processed"` // ledger entries
	Hidden         int   `json:"hidden"`    // items currently hidden
	Timestamp      int64 `json:"timestamp"` // epoch milliseconds
}

package session

import (
	"sort"
	"time"
)

// AnswerState is the server's copy of one saved answer.
type AnswerState struct {
	Value   string
	SavedAt time.Time
}

// SnapshotAnswer is one answer held by the client while offline, stamped
// with the time it was typed.
type SnapshotAnswer struct {
	QuestionID uint      `json:"question_id" validate:"required"`
	Value      string    `json:"value" validate:"max=10000"`
	SavedAt    time.Time `json:"saved_at" validate:"required"`
}

// Snapshot is the client's local copy of in-progress answers.
type Snapshot struct {
	Answers     []SnapshotAnswer `json:"answers" validate:"dive"`
	LastSavedAt *time.Time       `json:"last_saved_at,omitempty"`
}

// Window bounds which snapshot entries may be accepted.
type Window struct {
	StartedAt time.Time
	Deadline  time.Time
	Now       time.Time
	Questions map[uint]struct{}
}

type DropReason string

const (
	DropUnknownQuestion DropReason = "unknown_question"
	DropAfterDeadline   DropReason = "after_deadline"
	DropBeforeStart     DropReason = "before_start"
	DropStale           DropReason = "stale"
)

type DroppedAnswer struct {
	QuestionID uint       `json:"question_id"`
	Reason     DropReason `json:"reason"`
}

// Plan is the outcome of reconciling a snapshot against server state.
type Plan struct {
	// Apply holds snapshot answers newer than the server copy, with
	// timestamps clamped to the server clock.
	Apply   []SnapshotAnswer
	Dropped []DroppedAnswer
	// Final is the merged answer set the attempt ends up with.
	Final map[uint]AnswerState
}

// Reconcile merges a client snapshot with server answers, last write wins per
// question by each answer's own timestamp. Ties keep the server value.
// Entries for questions outside the exam, stamped before the attempt started
// or after the deadline are dropped; a timestamp ahead of the server clock is
// clamped to now. The deadline itself is never touched.
func Reconcile(server map[uint]AnswerState, snapshot Snapshot, w Window) Plan {
	plan := Plan{Final: make(map[uint]AnswerState, len(server))}
	for id, st := range server {
		plan.Final[id] = st
	}

	// Several snapshot entries for one question collapse to the newest.
	latest := make(map[uint]SnapshotAnswer, len(snapshot.Answers))
	for _, a := range snapshot.Answers {
		if prev, ok := latest[a.QuestionID]; ok && !a.SavedAt.After(prev.SavedAt) {
			continue
		}
		latest[a.QuestionID] = a
	}

	ids := make([]uint, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		a := latest[id]

		if _, ok := w.Questions[id]; !ok {
			plan.Dropped = append(plan.Dropped, DroppedAnswer{QuestionID: id, Reason: DropUnknownQuestion})
			continue
		}

		ts := a.SavedAt.UTC()
		if ts.After(w.Now) {
			ts = w.Now
		}
		if Expired(ts, w.Deadline) {
			plan.Dropped = append(plan.Dropped, DroppedAnswer{QuestionID: id, Reason: DropAfterDeadline})
			continue
		}
		if ts.Before(w.StartedAt) {
			plan.Dropped = append(plan.Dropped, DroppedAnswer{QuestionID: id, Reason: DropBeforeStart})
			continue
		}
		if current, ok := server[id]; ok && !ts.After(current.SavedAt) {
			plan.Dropped = append(plan.Dropped, DroppedAnswer{QuestionID: id, Reason: DropStale})
			continue
		}

		a.SavedAt = ts
		plan.Apply = append(plan.Apply, a)
		plan.Final[id] = AnswerState{Value: a.Value, SavedAt: ts}
	}

	return plan
}

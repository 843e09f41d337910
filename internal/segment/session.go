package segment

import (
	"fmt"
	"strconv"
	"strings"
)

// State is the lifecycle of a review session. Confirmed and discarded are
// terminal and mutually exclusive.
type State int

const (
	StateOpen State = iota
	StateConfirmed
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateConfirmed:
		return "confirmed"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Session holds the editable segment collection for one scanned file while a
// reviewer corrects the segmenter's guesses. It is not safe for concurrent
// use; the owner must serialize access.
//
// Every mutator returns whether it changed anything. Unknown IDs, invalid
// arguments and terminal sessions all report false instead of failing, so a
// reviewer is never blocked by noisy input.
type Session struct {
	id       string
	state    State
	segments []*Segment
}

// NewSession copies the initial segments so the session owns its collection.
func NewSession(id string, segments []*Segment) *Session {
	owned := make([]*Segment, 0, len(segments))
	for _, s := range segments {
		owned = append(owned, s.clone())
	}
	return &Session{id: id, segments: owned}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Segments returns a snapshot of the current collection.
func (s *Session) Segments() []*Segment {
	snapshot := make([]*Segment, 0, len(s.segments))
	for _, seg := range s.segments {
		snapshot = append(snapshot, seg.clone())
	}
	return snapshot
}

func (s *Session) find(segmentID string) *Segment {
	if s.state != StateOpen {
		return nil
	}
	for _, seg := range s.segments {
		if seg.ID == segmentID {
			return seg
		}
	}
	return nil
}

// Reclassify replaces the segment's document type in place.
func (s *Session) Reclassify(segmentID string, docType DocType) bool {
	seg := s.find(segmentID)
	if seg == nil || !docType.Valid() {
		return false
	}
	seg.DocType = docType
	return true
}

// SetSupplierGuess replaces the segment's supplier guess.
func (s *Session) SetSupplierGuess(segmentID, supplier string) bool {
	seg := s.find(segmentID)
	if seg == nil {
		return false
	}
	seg.SupplierGuess = supplier
	return true
}

// SetConfidence replaces the segment's confidence, clamped to [0,1].
func (s *Session) SetConfidence(segmentID string, confidence float64) bool {
	seg := s.find(segmentID)
	if seg == nil {
		return false
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	seg.Confidence = confidence
	return true
}

// Split partitions a segment's pages into those below splitPage and those at
// or above it. Both partitions must be non-empty, otherwise nothing happens.
// The original segment is removed and two children are appended, inheriting
// its type, supplier and confidence. Child text is a provenance placeholder:
// the extractor does not expose page-indexed text, so the parent's raw text
// cannot be re-sliced.
func (s *Session) Split(segmentID string, splitPage int) bool {
	seg := s.find(segmentID)
	if seg == nil {
		return false
	}

	var before, after []int
	for _, p := range seg.Pages {
		if p < splitPage {
			before = append(before, p)
		} else {
			after = append(after, p)
		}
	}
	if len(before) == 0 || len(after) == 0 {
		return false
	}

	kept := s.segments[:0]
	for _, other := range s.segments {
		if other.ID != segmentID {
			kept = append(kept, other)
		}
	}
	s.segments = append(kept,
		childSegment(seg, "before", before),
		childSegment(seg, "after", after),
	)
	return true
}

func childSegment(parent *Segment, suffix string, pages []int) *Segment {
	return &Segment{
		ID:            parent.ID + "_" + suffix,
		DocType:       parent.DocType,
		Pages:         pages,
		SupplierGuess: parent.SupplierGuess,
		Confidence:    parent.Confidence,
		Text:          fmt.Sprintf("[split from %s, pages %s]", parent.ID, pageList(pages)),
	}
}

func pageList(pages []int) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ",")
}

// Confirm moves the session to its confirmed terminal state and returns the
// canonical segment collection for handoff. Confirming an already confirmed
// session returns the same collection again; ok is false only when the
// session was discarded. Contiguity and overlap across the set are not
// validated here.
func (s *Session) Confirm() ([]*Segment, bool) {
	if s.state == StateDiscarded {
		return nil, false
	}
	s.state = StateConfirmed
	return s.Segments(), true
}

// Discard moves the session to its discarded terminal state. It reports
// false when the session was already confirmed.
func (s *Session) Discard() bool {
	if s.state == StateConfirmed {
		return false
	}
	s.state = StateDiscarded
	return true
}

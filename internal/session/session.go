// Package session holds the per-run table of multipart upload sessions and
// enforces the upload lifecycle:
//
//	Pending -> Open -> Completing -> Completed
//	   |         |          |
//	   +---------+----------+-----> Aborted
//
// Completed and Aborted are terminal.
package session

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

var transitions = map[s3types.SessionState][]s3types.SessionState{
	s3types.StatePending:    {s3types.StateOpen, s3types.StateAborted},
	s3types.StateOpen:       {s3types.StateCompleting, s3types.StateAborted},
	s3types.StateCompleting: {s3types.StateCompleted, s3types.StateAborted},
}

// Session is one multipart upload assembling a single target key.
// All methods are safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	target   string
	uploadID string
	sources  []s3types.Object
	etags    map[int32]string
	bytes    int64
	state    s3types.SessionState
	err      error
}

func newSession(target string) *Session {
	return &Session{
		target: target,
		state:  s3types.StatePending,
		etags:  make(map[int32]string),
	}
}

// Target returns the target key.
func (s *Session) Target() string {
	return s.target
}

// UploadID returns the remote upload id, empty while Pending.
func (s *Session) UploadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadID
}

// State returns the current lifecycle state.
func (s *Session) State() s3types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that aborted the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Sources returns the queued sources; part N is element N-1.
func (s *Session) Sources() []s3types.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]s3types.Object(nil), s.sources...)
}

// Len returns the number of queued sources.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// Open binds the remote upload id. Pending -> Open.
func (s *Session) Open(uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(s3types.StateOpen); err != nil {
		return err
	}
	s.uploadID = uploadID
	return nil
}

// BeginCompleting marks the session for finalization. Open -> Completing.
func (s *Session) BeginCompleting() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(s3types.StateCompleting)
}

// Complete records a successful finalization. Completing -> Completed.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(s3types.StateCompleted)
}

// Abort moves any non-terminal session to Aborted and records cause.
func (s *Session) Abort(cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transition(s3types.StateAborted); err != nil {
		return err
	}
	s.err = cause
	return nil
}

// transition must be called with s.mu held.
func (s *Session) transition(to s3types.SessionState) error {
	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return errors.NewObjectError("transition", "", s.target,
		fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, s.state, to))
}

// RecordPart stores the tag returned for a copied part.
func (s *Session) RecordPart(partNumber int32, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.etags[partNumber] = etag
}

// Parts returns the locally recorded parts ordered by part number.
func (s *Session) Parts() []s3types.Part {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := make([]s3types.Part, 0, len(s.etags))
	for n, etag := range s.etags {
		part := s3types.Part{PartNumber: n, ETag: etag}
		if n >= 1 && int(n) <= len(s.sources) {
			part.Size = s.sources[n-1].Size
		}
		parts = append(parts, part)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts
}

// Report snapshots the session for the run result.
func (s *Session) Report() s3types.SessionReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, len(s.sources))
	for i, src := range s.sources {
		keys[i] = src.Key
	}

	return s3types.SessionReport{
		Target:   s.target,
		UploadID: s.uploadID,
		Sources:  keys,
		Bytes:    s.bytes,
		State:    s.state,
		Err:      s.err,
	}
}

// Registry maps target keys to sessions for the lifetime of one run.
// Sessions are kept in the order their targets were first seen.
type Registry struct {
	mu       sync.Mutex
	byTarget map[string]*Session
	order    []*Session
	owners   map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byTarget: make(map[string]*Session),
		owners:   make(map[string]string),
	}
}

// Reserve queues src into the session for target, creating the session on
// first use, and returns the part number reserved for it. Part numbers are
// 1..N in call order. created reports whether the session is new.
func (r *Registry) Reserve(target string, src s3types.Object) (sess *Session, partNumber int32, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[src.Key]; ok {
		return nil, 0, false, errors.NewObjectError("reserve", "", src.Key,
			fmt.Errorf("%w: queued for %s", errors.ErrDuplicateSource, owner))
	}

	sess, ok := r.byTarget[target]
	if !ok {
		sess = newSession(target)
		r.byTarget[target] = sess
		r.order = append(r.order, sess)
		created = true
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != s3types.StatePending && sess.state != s3types.StateOpen {
		return nil, 0, false, errors.NewObjectError("reserve", "", target,
			fmt.Errorf("%w: cannot queue into %s session", errors.ErrInvalidTransition, sess.state))
	}

	sess.sources = append(sess.sources, src)
	sess.bytes += src.Size
	r.owners[src.Key] = target

	return sess, int32(len(sess.sources)), created, nil
}

// Sessions returns every session in discovery order.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*Session(nil), r.order...)
}

// InState returns the sessions currently in any of states, in discovery order.
func (r *Registry) InState(states ...s3types.SessionState) []*Session {
	var out []*Session
	for _, sess := range r.Sessions() {
		if slices.Contains(states, sess.State()) {
			out = append(out, sess)
		}
	}
	return out
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.order)
}

// Reports snapshots every session in discovery order.
func (r *Registry) Reports() []s3types.SessionReport {
	sessions := r.Sessions()
	reports := make([]s3types.SessionReport, 0, len(sessions))
	for _, sess := range sessions {
		reports = append(reports, sess.Report())
	}
	return reports
}

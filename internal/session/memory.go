package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devarena/devarena-backend/internal/model"
)

// MemoryStore is an in-process Store with real compare-and-swap semantics.
// It backs unit tests and local development without Postgres.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*model.Session)}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sessions {
		if existing.AssessmentID == s.AssessmentID &&
			existing.ParticipantID == s.ParticipantID &&
			!existing.Status.Terminal() {
			return ErrAlreadyExists
		}
	}

	cp := s.Clone()
	cp.Version = 1
	m.sessions[cp.ID] = cp
	s.Version = cp.Version
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id uuid.UUID) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// FindByPair implements Store.
func (m *MemoryStore) FindByPair(_ context.Context, assessmentID uuid.UUID, participantID int) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var newest *model.Session
	for _, s := range m.sessions {
		if s.AssessmentID != assessmentID || s.ParticipantID != participantID {
			continue
		}
		if newest == nil || s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	return newest.Clone(), nil
}

// CompareAndSwap implements Store.
func (m *MemoryStore) CompareAndSwap(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != s.Version {
		return ErrVersionConflict
	}

	cp := s.Clone()
	cp.Version = stored.Version + 1
	m.sessions[s.ID] = cp
	s.Version = cp.Version
	return nil
}

// FindDue implements Store.
func (m *MemoryStore) FindDue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []uuid.UUID
	for id, s := range m.sessions {
		if s.Status.Terminal() {
			continue
		}
		overdue := s.DeadlineAt != nil && !now.Before(*s.DeadlineAt)
		graceOver := s.Status == model.SessionStatusCompromised &&
			s.IntegrityGraceDeadline != nil && !now.Before(*s.IntegrityGraceDeadline)
		if overdue || graceOver {
			due = append(due, id)
		}
		if limit > 0 && len(due) >= limit {
			break
		}
	}
	return due, nil
}

// FindUnscored implements Store.
func (m *MemoryStore) FindUnscored(_ context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for id, s := range m.sessions {
		if s.Status.Terminal() && s.Result == nil {
			ids = append(ids, id)
		}
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

// MemoryAnswerStore is an in-process AnswerStore keyed by
// (session, question, language).
type MemoryAnswerStore struct {
	mu     sync.Mutex
	drafts map[answerKey]*model.AnswerDraft
	nowFn  func() time.Time
}

type answerKey struct {
	session  uuid.UUID
	question uuid.UUID
	language string
}

// NewMemoryAnswerStore creates an empty MemoryAnswerStore stamping drafts
// with the given time source.
func NewMemoryAnswerStore(nowFn func() time.Time) *MemoryAnswerStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryAnswerStore{
		drafts: make(map[answerKey]*model.AnswerDraft),
		nowFn:  nowFn,
	}
}

// Put implements AnswerStore.
func (m *MemoryAnswerStore) Put(_ context.Context, sessionID, questionID uuid.UUID, language, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.drafts[answerKey{sessionID, questionID, language}] = &model.AnswerDraft{
		SessionID:      sessionID,
		QuestionID:     questionID,
		Language:       language,
		Code:           code,
		LastModifiedAt: m.nowFn(),
	}
	return nil
}

// Get implements AnswerStore.
func (m *MemoryAnswerStore) Get(_ context.Context, sessionID, questionID uuid.UUID, language string) (*model.AnswerDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[answerKey{sessionID, questionID, language}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// Latest implements AnswerStore.
func (m *MemoryAnswerStore) Latest(_ context.Context, sessionID, questionID uuid.UUID) (*model.AnswerDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*model.AnswerDraft
	for key, d := range m.drafts {
		if key.session == sessionID && key.question == questionID {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].LastModifiedAt.After(matches[j].LastModifiedAt)
	})
	cp := *matches[0]
	return &cp, nil
}

// MemoryScoreQueue records enqueued session ids. Test double for ScoreQueue.
type MemoryScoreQueue struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

// NewMemoryScoreQueue creates an empty queue.
func NewMemoryScoreQueue() *MemoryScoreQueue {
	return &MemoryScoreQueue{}
}

// Enqueue implements ScoreQueue.
func (q *MemoryScoreQueue) Enqueue(_ context.Context, sessionID uuid.UUID) error {
	q.mu.Lock()
	q.ids = append(q.ids, sessionID)
	q.mu.Unlock()
	return nil
}

// Enqueued returns a copy of all enqueued ids in order.
func (q *MemoryScoreQueue) Enqueued() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uuid.UUID(nil), q.ids...)
}

package flow

import (
	"context"
	"sync"

	"github.com/luximus/flowbot/model"
	"github.com/luximus/flowbot/persistence"
)

type sentText struct {
	Phone string
	Text  string
}

type recordingMessenger struct {
	mu     sync.Mutex
	texts  []sentText
	images []Image
}

func (m *recordingMessenger) SendText(ctx context.Context, phone string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, sentText{Phone: phone, Text: text})
	return nil
}

func (m *recordingMessenger) SendImage(ctx context.Context, phone string, image Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, image)
	return nil
}

func (m *recordingMessenger) Texts() []sentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentText(nil), m.texts...)
}

type fakeSubjects struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeSubjects(users ...*model.User) *fakeSubjects {
	s := &fakeSubjects{users: make(map[string]*model.User)}
	for _, u := range users {
		s.users[u.Id] = u
	}
	return s
}

func (s *fakeSubjects) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeSubjects) UpdateUser(ctx context.Context, id string, update model.UserUpdate) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	update.Apply(u)
	cp := *u
	return &cp, nil
}

// failingFlowDao reports every read as a connectivity failure.
type failingFlowDao struct {
	saves int
}

func (f *failingFlowDao) GetFlowState(ctx context.Context, flowKind string, subjectId string) (*model.FlowState, error) {
	return nil, persistence.StorageLayerError{Message: "connection refused"}
}

func (f *failingFlowDao) SaveFlowState(ctx context.Context, state *model.FlowState) error {
	f.saves++
	return persistence.StorageLayerError{Message: "connection refused"}
}

func (f *failingFlowDao) DeleteFlowState(ctx context.Context, flowKind string, subjectId string) error {
	return persistence.StorageLayerError{Message: "connection refused"}
}

type countingCollector struct {
	mu        sync.Mutex
	successes int
	failures  int
	commands  map[string]int
}

func newCountingCollector() *countingCollector {
	return &countingCollector{commands: make(map[string]int)}
}

func (c *countingCollector) RecordStepSuccess(flowKind string, subjectId string, stepName string, step int, data map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successes++
}

func (c *countingCollector) RecordStepFailure(flowKind string, subjectId string, stepName string, step int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

func (c *countingCollector) RecordCommand(flowKind string, command string, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands[command+":"+outcome]++
}

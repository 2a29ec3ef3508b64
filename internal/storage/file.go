package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/milifusa/mumpabackend-sub000/internal"
)

// FileStorage is the JSON-file backed store used in development. Writes
// are debounced through save workers so bursts of event edits do not
// rewrite the files on every call.
type FileStorage struct {
	users       map[string]*internal.User         // token -> user
	events      map[string]*internal.SleepEvent   // id -> event
	childEvents map[string][]*internal.SleepEvent // childID -> ascending by StartTime
	children    map[string]*internal.ChildProfile // id -> child

	mu sync.RWMutex

	usersFile    string
	childrenFile string
	sleepFile    string

	saveEventsChan   chan struct{}
	saveChildrenChan chan struct{}
	shutdownChan     chan struct{}
	saveDelay        time.Duration
	logger           internal.Logger
}

func NewFileStorage(usersFile, childrenFile, sleepFile string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		users:            make(map[string]*internal.User),
		events:           make(map[string]*internal.SleepEvent),
		childEvents:      make(map[string][]*internal.SleepEvent),
		children:         make(map[string]*internal.ChildProfile),
		usersFile:        usersFile,
		childrenFile:     childrenFile,
		sleepFile:        sleepFile,
		saveEventsChan:   make(chan struct{}, 1),
		saveChildrenChan: make(chan struct{}, 1),
		shutdownChan:     make(chan struct{}),
		saveDelay:        500 * time.Millisecond,
		logger:           logger,
	}

	if err := s.loadUsers(); err != nil {
		logger.Errorf("storage: failed to load users: %v", err)
		return nil, err
	}
	if err := s.loadChildren(); err != nil {
		logger.Errorf("storage: failed to load children: %v", err)
		return nil, err
	}
	if err := s.loadEvents(); err != nil {
		logger.Errorf("storage: failed to load sleep events: %v", err)
		return nil, err
	}

	go s.saveEventsWorker()
	go s.saveChildrenWorker()

	return s, nil
}

func decodeJSONFile(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()
	if err := json.NewDecoder(file).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (s *FileStorage) loadUsers() error {
	var users []*internal.User
	if err := decodeJSONFile(s.usersFile, &users); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.Token] = u
	}
	return nil
}

func (s *FileStorage) loadChildren() error {
	var children []*internal.ChildProfile
	if err := decodeJSONFile(s.childrenFile, &children); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range children {
		s.children[c.ID] = c
	}
	return nil
}

func (s *FileStorage) loadEvents() error {
	var events []*internal.SleepEvent
	if err := decodeJSONFile(s.sleepFile, &events); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.events[e.ID] = e
		s.childEvents[e.ChildID] = append(s.childEvents[e.ChildID], e)
	}
	for childID := range s.childEvents {
		sortEventsAsc(s.childEvents[childID])
	}
	return nil
}

func sortEventsAsc(events []*internal.SleepEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) saveEvents() error {
	s.mu.RLock()
	events := make([]*internal.SleepEvent, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	s.mu.RUnlock()
	sortEventsAsc(events)
	return atomicWriteFileJSON(s.sleepFile, events)
}

func (s *FileStorage) saveChildren() error {
	s.mu.RLock()
	children := make([]*internal.ChildProfile, 0, len(s.children))
	for _, c := range s.children {
		children = append(children, c)
	}
	s.mu.RUnlock()
	return atomicWriteFileJSON(s.childrenFile, children)
}

func (s *FileStorage) saveEventsWorker() {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.saveEventsChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.saveEvents(); err != nil {
				s.logger.Errorf("storage: error saving sleep events: %v", err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *FileStorage) saveChildrenWorker() {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.saveChildrenChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.saveChildren(); err != nil {
				s.logger.Errorf("storage: error saving children: %v", err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *FileStorage) Close() error {
	close(s.shutdownChan)

	// Flush pending data synchronously on shutdown.
	if err := s.saveEvents(); err != nil {
		return err
	}
	return s.saveChildren()
}

func (s *FileStorage) signalEvents() {
	select {
	case s.saveEventsChan <- struct{}{}:
	default:
	}
}

func (s *FileStorage) signalChildren() {
	select {
	case s.saveChildrenChan <- struct{}{}:
	default:
	}
}

// --- SleepEventRepository ---

func (s *FileStorage) SaveEvent(ctx context.Context, event *internal.SleepEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.ID] = event
	s.childEvents[event.ChildID] = append(s.childEvents[event.ChildID], event)
	sortEventsAsc(s.childEvents[event.ChildID])
	s.signalEvents()
	return nil
}

func (s *FileStorage) UpdateEvent(ctx context.Context, event *internal.SleepEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.events[event.ID]
	if !ok {
		return ErrNotFound
	}
	*old = *event
	sortEventsAsc(s.childEvents[event.ChildID])
	s.signalEvents()
	return nil
}

func (s *FileStorage) GetEvent(ctx context.Context, id string) (*internal.SleepEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *FileStorage) ListEventsSince(ctx context.Context, childID string, since time.Time) ([]internal.SleepEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := []internal.SleepEvent{}
	for _, e := range s.childEvents[childID] {
		if e.StartTime.Before(since) {
			continue
		}
		events = append(events, *e)
	}
	return events, nil
}

// --- ChildRepository ---

func (s *FileStorage) SaveChild(ctx context.Context, child *internal.ChildProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[child.ID] = child
	s.signalChildren()
	return nil
}

func (s *FileStorage) UpdateChild(ctx context.Context, child *internal.ChildProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.children[child.ID]; !ok {
		return ErrNotFound
	}
	s.children[child.ID] = child
	s.signalChildren()
	return nil
}

func (s *FileStorage) GetChild(ctx context.Context, id string) (*internal.ChildProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

// --- UserRepository ---

func (s *FileStorage) GetUserByToken(ctx context.Context, token string) (*internal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[token]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// --- Compile-time assertions ---
var _ SleepEventRepository = (*FileStorage)(nil)
var _ ChildRepository = (*FileStorage)(nil)
var _ UserRepository = (*FileStorage)(nil)

package bot

import "sync"

// A session is the in-progress flow of one user. Idle users have none.
type session interface {
	flowName() string
}

type addStage int

const (
	addWaitingDescription addStage = iota
	addWaitingDeadline
)

type addSession struct {
	stage       addStage
	description string
}

type editStage int

const (
	editSelectingTask editStage = iota
	editChoosingField
	editWaitingDescription
	editWaitingDeadline
)

// editSession remembers the selected task between steps.
type editSession struct {
	stage  editStage
	taskID uint
	number int
}

type deleteStage int

const (
	deleteSelectingTask deleteStage = iota
	deleteWaitingConfirmation
)

type deleteSession struct {
	stage       deleteStage
	taskID      uint
	number      int
	description string
}

func (addSession) flowName() string    { return "add" }
func (editSession) flowName() string   { return "edit" }
func (deleteSession) flowName() string { return "delete" }

// sessionStore maps user IDs to their current flow. Values are copied in and
// out, so a handler holding a session never races with the store.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[int64]session)}
}

func (s *sessionStore) get(userID int64) session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

// set replaces whatever flow the user had.
func (s *sessionStore) set(userID int64, sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = sess
}

func (s *sessionStore) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

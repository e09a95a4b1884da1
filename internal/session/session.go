package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kazz187/adotask/pkg/cerr"
	"github.com/kazz187/adotask/pkg/storage"
)

const sessionPath = "session.json"

var ErrNoActiveStory = errors.New("no active story")

// Session is the only state the adapter keeps between tool calls.
type Session struct {
	StoryID string `json:"story_id,omitempty" yaml:"story_id,omitempty"`
}

// ActiveStoryID returns the selected story or a FailedPrecondition error
// wrapping ErrNoActiveStory.
func (s *Session) ActiveStoryID() (string, error) {
	if s == nil || s.StoryID == "" {
		return "", cerr.NewError(cerr.FailedPrecondition, "No active story set. Call set_story first.", ErrNoActiveStory)
	}
	return s.StoryID, nil
}

// Store persists the Session as one JSON document. Save replaces the whole
// record.
type Store struct {
	storage storage.Storage
}

func NewStore(s storage.Storage) *Store {
	return &Store{storage: s}
}

// Load returns an empty Session when nothing has been saved yet.
func (st *Store) Load(ctx context.Context) (*Session, error) {
	data, err := st.storage.Read(ctx, sessionPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &Session{}, nil
		}
		return nil, cerr.WrapStorageReadError("session", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, cerr.NewError(cerr.Internal, "session file is corrupt", fmt.Errorf("failed to unmarshal session: %w", err))
	}
	return &s, nil
}

// Saved reports whether a session has been written.
func (st *Store) Saved(ctx context.Context) (bool, error) {
	ok, err := st.storage.Exists(ctx, sessionPath)
	if err != nil {
		return false, cerr.WrapStorageReadError("session", err)
	}
	return ok, nil
}

func (st *Store) Save(ctx context.Context, s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to encode session", err)
	}
	if err := st.storage.Write(ctx, sessionPath, data); err != nil {
		return cerr.WrapStorageWriteError("session", err)
	}
	return nil
}

package queueaccess

import (
	"errors"
	"fmt"

	"echopress/internal/ipc"
	"echopress/internal/queue"
)

// Session is an open Access plus whatever must be closed with it.
type Session struct {
	Access Access
	// Offline holds the dial error when reads fell back to the database.
	Offline error
	closer  func() error
}

func (s Session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Open prefers the daemon, since its answers include in-flight progress that
// has not been persisted yet, and reads the database directly otherwise.
// When both fail the error carries both causes.
func Open(dial func() (*ipc.Client, error), openStore func() (*queue.Store, error)) (Session, error) {
	dialErr := errors.New("daemon dialing not configured")
	if dial != nil {
		client, err := dial()
		if err == nil {
			return Session{Access: NewIPCAccess(client), closer: client.Close}, nil
		}
		dialErr = err
	}
	if openStore == nil {
		return Session{}, errors.Join(dialErr, errors.New("open run store: no store opener configured"))
	}
	store, err := openStore()
	if err != nil {
		return Session{}, errors.Join(dialErr, fmt.Errorf("open run store: %w", err))
	}
	return Session{Access: NewStoreAccess(store), Offline: dialErr, closer: store.Close}, nil
}

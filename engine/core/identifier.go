package core

import "sync/atomic"

// ObjectID identifies a GPU-side object (texture, buffer, shader, image view)
// without holding on to its backend handle. Zero is never handed out.
type ObjectID uint64

const InvalidObjectID ObjectID = 0

var lastObjectID atomic.Uint64

// NewObjectID returns a process-unique identifier. Identifiers are never
// reused, so a stale ID can not alias a newer object in a cache key.
func NewObjectID() ObjectID {
	return ObjectID(lastObjectID.Add(1))
}

func (id ObjectID) Valid() bool {
	return id != InvalidObjectID
}

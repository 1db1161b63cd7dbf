package h2h

import (
	"time"

	"github.com/google/uuid"
)

// ID is a thin wrapper over github.com/google/uuid.UUID so the rest of the
// module does not depend directly on the uuid package's API surface.
type ID uuid.UUID

// NilID is the zero-value ID.
var NilID ID

// ParseID converts a string to an ID. It returns an error if the input is
// not a valid UUID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	return ID(u), err
}

// NewID returns a new randomly generated ID. Generation is retried with a
// 1ms backoff up to 10 times; it panics only if every attempt fails, which
// should never happen under normal conditions.
func NewID() ID {
	var err error
	for i := 0; i < 10; i++ {
		var u uuid.UUID
		u, err = uuid.NewRandom()
		if err == nil {
			return ID(u)
		}
		time.Sleep(time.Millisecond)
	}
	panic(err)
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero-value ID.
func (id ID) IsNil() bool {
	return id == NilID
}

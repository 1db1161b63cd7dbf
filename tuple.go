package h2h

import "time"

// Tuple pairs two values of possibly-different types, for a function that
// needs to return or pass two correlated values without a bespoke struct.
type Tuple[T1, T2 any] struct {
	First  T1
	Second T2
}

// KeyValuePair is a named key/value pair, distinct from Tuple in that its
// fields read as a map entry rather than an arbitrary pair.
type KeyValuePair[TK any, TV any] struct {
	Key   TK
	Value TV
}

// Now returns the current time. Exposed as a var so tests can synthesize it.
var Now = time.Now

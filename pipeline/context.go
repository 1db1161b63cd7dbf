package pipeline

import (
	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/process"
	"github.com/hive2hive/h2h/profile"
	"github.com/hive2hive/h2h/session"
)

// DownloadFileContext is the representative typed context spec §4.5
// describes: FindInUserProfile writes Index; depending on whether it names
// a folder or a file, the dynamically-appended follow-on steps write
// MetaKey/Chunks. Every field is a process.Field, so each can only be set
// once during the forward pass (spec §3 Context invariant, P5).
type DownloadFileContext struct {
	Sess    *session.Session
	FileKey dht.Key160

	Index   process.Field[profile.Index]
	MetaKey process.Field[dht.Key160]
	Chunks  process.Field[[][]byte]
}

// NewDownloadFileContext creates a fresh context for downloading fileKey.
func NewDownloadFileContext(sess *session.Session, fileKey dht.Key160) *DownloadFileContext {
	return &DownloadFileContext{Sess: sess, FileKey: fileKey}
}

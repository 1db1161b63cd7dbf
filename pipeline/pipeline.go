// Package pipeline implements the per-operation step graphs the process
// factory (spec §4.4) assembles: add/update/move/delete/recover/share/
// getFileList, plus the representative FindInUserProfile step (spec §4.5)
// and the download pipeline it drives. Every step is a process.Steppable;
// the Factory in factory.go wires them into process.Component/Composite
// trees exactly as spec §4.4 describes.
package pipeline

import (
	"context"

	"github.com/hive2hive/h2h/dht"
	"github.com/hive2hive/h2h/process"
)

// domain keys partition the shared DHT namespace by what kind of entry is
// stored there, the same way the teacher's registry/blob tables are
// partitioned per store. One location key (the session root) holds every
// domain for one user.
var (
	domainFiles = dht.NewKey160("h2h:domain:files")
	domainMeta  = dht.NewKey160("h2h:domain:meta")
	domainShare = dht.NewKey160("h2h:domain:share")
)

// tuple derives the (location, domain, content) address for path under
// root, in the given domain. version is chosen by the caller (ZeroVersion
// for root, or a fresh key derived from the path and the current time for a
// new version).
func tuple(root, path string, domain dht.Key160) (loc, dom, content dht.Key160) {
	return dht.NewKey160(root), domain, dht.NewKey160(path)
}

// baseStep supplies no-op Pause/Resume hooks for steps that are not
// internally pausable; cooperative cancellation during a blocking DHT call
// goes through Execute's ctx instead (spec §5 "pause is advisory").
type baseStep struct{}

func (baseStep) Pause(ctx context.Context, self *process.Component)           {}
func (baseStep) ResumeExecution(ctx context.Context, self *process.Component)  {}
func (baseStep) ResumeRollback(ctx context.Context, self *process.Component)   {}

// Package committer decides what may be committed and when.
package committer

// Trigger decides when a commit is due. TryCommit returning true holds the
// trigger until UnlockCommit reports the outcome.
type Trigger interface {
	TryCommit() bool
	UnlockCommit(ok bool)
	RecordProcessed(count int)
}

// Package syncer provides typed failures for the two fatal branches of the
// sync pipeline. Everything else (merge conflicts, rebuild failures) is
// absorbed into best-effort recovery paths.
package syncer

import "fmt"

// FetchError marks the "collaborator unavailable" failure: the upstream
// fetch did not complete, nothing was mutated, and the process must exit
// non-zero.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("upstream fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PushError marks the publish failure: the local repository holds the
// merged result but the canonical branch could not be pushed. The process
// must exit non-zero; the mutation stays local.
type PushError struct {
	Err error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push failed: %v", e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

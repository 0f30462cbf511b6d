// Package summarizer turns one collected item into a short digest
// summary. Items whose source policy says "no LLM needed" take a
// deterministic rule path; everything else goes to the remote text
// generation API, with a local fallback so a failing API never aborts
// the run.
package summarizer

import "context"

// Remote is a text-generation backend: system and user set the task,
// input carries the item content.
type Remote interface {
	Complete(ctx context.Context, system, user, input string) (string, error)
}

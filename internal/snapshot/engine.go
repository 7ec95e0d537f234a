// Package snapshot produces the compact accessibility view of a page: a
// rendered text tree whose interactive lines carry opaque @e<n> refs, plus
// the ref→node map actions resolve against. Taking a snapshot atomically
// replaces the previous one, so refs from older snapshots fail predictably.
package snapshot

import (
	"errors"
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"webclaw/internal/dom"
)

// DefaultMaxTokens bounds snapshot output when the caller does not.
const DefaultMaxTokens = 4000

// ErrStale is returned when an action's snapshotId no longer matches the
// engine's current snapshot.
var ErrStale = errors.New("snapshot is stale; take a new snapshot")

// ErrRefNotFound is returned when a ref is not present in the current
// snapshot's map.
var ErrRefNotFound = errors.New("ref not found in current snapshot")

// Options tunes one snapshot.
type Options struct {
	// MaxTokens caps the rendered output, estimated at ceil(chars/4).
	// Zero means DefaultMaxTokens.
	MaxTokens int
	// FocusRegion restricts traversal to the first matching landmark.
	FocusRegion string
}

// Result is what travels back over the bridge.
type Result struct {
	Text       string
	SnapshotID string
	URL        string
	Title      string
}

// Snapshot is one captured view: its identity and the live ref map.
type Snapshot struct {
	ID    string
	URL   string
	Title string
	refs  map[string]*dom.Node
}

// Engine owns the current snapshot for one tab. Replacement is atomic under
// the mutex; the executor always sees either the old map or the new one.
type Engine struct {
	mu      sync.Mutex
	current *Snapshot
}

// New returns an engine with no current snapshot.
func New() *Engine { return &Engine{} }

// focusRegionRoles maps focusRegion values to landmark roles.
var focusRegionRoles = map[string]string{
	"main":          "main",
	"nav":           "nav",
	"complementary": "complementary",
	"contentinfo":   "contentinfo",
	"banner":        "banner",
	"header":        "banner",
	"footer":        "contentinfo",
	"sidebar":       "complementary",
}

// Take walks the document and installs a fresh snapshot, invalidating every
// previously issued ref.
func (e *Engine) Take(doc *dom.Document, opts Options) (Result, error) {
	if doc == nil || doc.Root == nil {
		return Result{}, errors.New("no document to snapshot")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	root := doc.Root
	if opts.FocusRegion != "" {
		role, ok := focusRegionRoles[opts.FocusRegion]
		if !ok {
			return Result{}, fmt.Errorf("unknown focus region %q", opts.FocusRegion)
		}
		if region := doc.Find(func(n *dom.Node) bool { return dom.Role(n) == role }); region != nil {
			root = region
		}
	}

	w := &walker{refs: make(map[string]*dom.Node)}
	w.visit(root, 0)
	lines := prune(w.lines, maxTokens)

	id, err := gonanoid.New()
	if err != nil {
		return Result{}, fmt.Errorf("snapshot id: %w", err)
	}

	snap := &Snapshot{ID: id, URL: doc.URL, Title: doc.Title, refs: w.refs}
	e.mu.Lock()
	e.current = snap
	e.mu.Unlock()

	return Result{Text: render(lines), SnapshotID: id, URL: doc.URL, Title: doc.Title}, nil
}

// CurrentID returns the id of the current snapshot, or "".
func (e *Engine) CurrentID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return ""
	}
	return e.current.ID
}

// Invalidate drops the current snapshot. Called on navigation: refs do not
// survive a document change.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.current = nil
	e.mu.Unlock()
}

// CurrentRefs returns a copy of the current snapshot's ref map. The live
// backend uses it to record element paths alongside the refs.
func (e *Engine) CurrentRefs() map[string]*dom.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	out := make(map[string]*dom.Node, len(e.current.refs))
	for ref, n := range e.current.refs {
		out[ref] = n
	}
	return out
}

// Resolve maps (snapshotId, ref) to a live node. A mismatched snapshot id
// yields ErrStale; an unknown ref yields ErrRefNotFound. Attachment and
// disabled checks are the executor's job.
func (e *Engine) Resolve(snapshotID, ref string) (*dom.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.ID != snapshotID {
		return nil, ErrStale
	}
	n, ok := e.current.refs[ref]
	if !ok {
		return nil, ErrRefNotFound
	}
	return n, nil
}

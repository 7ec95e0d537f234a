// Package worker is the browser-side half of the bridge: it holds the tab
// registry, dispatches bridge requests to tab backends, and runs the
// WebSocket client loop that keeps the worker attached to its host.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"webclaw/internal/action"
	"webclaw/internal/snapshot"
	"webclaw/internal/webmcp"
)

// Tab is the contract every tab backend satisfies: the in-process page model
// by default, the live-browser backend when the worker is attached to Chrome.
// Navigation results are flat (url, title) pairs so backends stay free of
// shared struct types.
type Tab interface {
	ID() int
	Location() (url, title string)

	Navigate(ctx context.Context, url string, timeout time.Duration) (newURL, title string, err error)
	GoBack(ctx context.Context, timeout time.Duration) (url, title string, err error)
	GoForward(ctx context.Context, timeout time.Duration) (url, title string, err error)
	Reload(ctx context.Context, bypassCache bool, timeout time.Duration) (url, title string, err error)
	WaitReady(ctx context.Context, timeout time.Duration) (url, title string, err error)

	Snapshot(opts snapshot.Options) (snapshot.Result, error)
	Click(snapshotID, ref string) action.Result
	Hover(snapshotID, ref string) action.Result
	TypeText(snapshotID, ref, text string, clearFirst bool) action.Result
	SelectOption(snapshotID, ref, value string) action.Result
	ScrollPage(direction string, amount int, ref, snapshotID string) action.Result
	DropFiles(snapshotID, ref string, files []action.FileEntry) action.Result

	Screenshot(ctx context.Context) (data []byte, mimeType string, err error)
	WebMCPTools(ctx context.Context) ([]webmcp.Tool, error)
	InvokeWebMCPTool(ctx context.Context, name string, args map[string]any) (any, error)

	Close() error
}

// Factory opens a new tab backend with the given id.
type Factory func(id int) Tab

// Registry tracks the worker's open tabs and which one is active.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	tabs    map[int]Tab
	nextID  int
	active  int
}

// NewRegistry builds an empty registry over the given backend factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, tabs: make(map[int]Tab)}
}

// Open creates a tab and makes it active.
func (r *Registry) Open() Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t := r.factory(r.nextID)
	r.tabs[r.nextID] = t
	r.active = r.nextID
	return t
}

// Get returns the tab with the given id.
func (r *Registry) Get(id int) (Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tabs[id]
	return t, ok
}

// Active returns the active tab, if any.
func (r *Registry) Active() (Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tabs[r.active]
	return t, ok
}

// SetActive switches the active tab.
func (r *Registry) SetActive(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tabs[id]; !ok {
		return false
	}
	r.active = id
	return true
}

// Close removes a tab and closes its backend. When the active tab goes away
// the lowest remaining id becomes active.
func (r *Registry) Close(id int) bool {
	r.mu.Lock()
	t, ok := r.tabs[id]
	if ok {
		delete(r.tabs, id)
		if r.active == id {
			r.active = 0
			for candidate := range r.tabs {
				if r.active == 0 || candidate < r.active {
					r.active = candidate
				}
			}
		}
	}
	r.mu.Unlock()
	if ok {
		_ = t.Close()
	}
	return ok
}

// List returns every open tab sorted by id, plus the active id.
func (r *Registry) List() ([]Tab, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.tabs))
	for id := range r.tabs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Tab, len(ids))
	for i, id := range ids {
		out[i] = r.tabs[id]
	}
	return out, r.active
}

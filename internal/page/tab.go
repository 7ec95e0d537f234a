// Package page implements the default tab backend: documents fetched over
// HTTP and parsed into the DOM model, with the snapshot engine, action
// executor, and WebMCP registry running in-process. It needs no browser,
// which is what makes the whole action surface testable end to end.
package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"webclaw/internal/action"
	"webclaw/internal/dom"
	"webclaw/internal/snapshot"
	"webclaw/internal/webmcp"
)

// ErrScreenshotUnsupported is returned by Screenshot: this backend has no
// rasterizer.
var ErrScreenshotUnsupported = errors.New("page backend cannot capture screenshots")

const aboutBlank = "about:blank"

// Tab is one in-process page: the current document, its navigation history,
// and the engines bound to it.
type Tab struct {
	id     int
	client *http.Client

	mu       sync.Mutex
	doc      *dom.Document
	history  []string
	pos      int
	engine   *snapshot.Engine
	exec     *action.Executor
	registry *webmcp.Registry
}

// New opens a tab at about:blank with a fresh cookie jar, so multi-step form
// flows carry their session.
func New(id int) *Tab {
	jar, _ := cookiejar.New(nil)
	t := &Tab{
		id:       id,
		client:   &http.Client{Jar: jar},
		engine:   snapshot.New(),
		registry: webmcp.NewRegistry(),
		history:  []string{aboutBlank},
	}
	t.exec = action.New(t.engine, t.Document)
	t.installBlank()
	return t
}

// ID returns the numeric tab id.
func (t *Tab) ID() int { return t.id }

// Document returns the current document.
func (t *Tab) Document() *dom.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc
}

// Location reports the current URL and title.
func (t *Tab) Location() (url, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doc == nil {
		return aboutBlank, ""
	}
	return t.doc.URL, t.doc.Title
}

// Navigate fetches the URL, replaces the document, and pushes history.
// Previous snapshot refs are invalidated by the document swap.
func (t *Tab) Navigate(ctx context.Context, target string, timeout time.Duration) (string, string, error) {
	doc, err := t.fetch(ctx, target, timeout)
	if err != nil {
		return "", "", err
	}
	t.mu.Lock()
	t.installLocked(doc)
	t.history = append(t.history[:t.pos+1], doc.URL)
	t.pos = len(t.history) - 1
	t.mu.Unlock()
	return doc.URL, doc.Title, nil
}

// LoadHTML installs an in-memory document, pushing history. Tests load
// markup this way; about:blank is installed separately.
func (t *Tab) LoadHTML(markup, pageURL string) (string, string, error) {
	doc, err := dom.ParseString(markup, pageURL)
	if err != nil {
		return "", "", err
	}
	t.mu.Lock()
	t.installLocked(doc)
	t.history = append(t.history[:t.pos+1], pageURL)
	t.pos = len(t.history) - 1
	t.mu.Unlock()
	return doc.URL, doc.Title, nil
}

// GoBack steps back in history, reloading the entry. At the start of history
// it is a no-op, like a browser with a disabled back button.
func (t *Tab) GoBack(ctx context.Context, timeout time.Duration) (string, string, error) {
	return t.step(ctx, -1, timeout)
}

// GoForward steps forward in history.
func (t *Tab) GoForward(ctx context.Context, timeout time.Duration) (string, string, error) {
	return t.step(ctx, +1, timeout)
}

func (t *Tab) step(ctx context.Context, delta int, timeout time.Duration) (string, string, error) {
	t.mu.Lock()
	next := t.pos + delta
	if next < 0 || next >= len(t.history) {
		t.mu.Unlock()
		url, title := t.Location()
		return url, title, nil
	}
	target := t.history[next]
	t.pos = next
	t.mu.Unlock()

	if target == aboutBlank {
		t.mu.Lock()
		t.installBlankLocked()
		t.mu.Unlock()
		url, title := t.Location()
		return url, title, nil
	}
	doc, err := t.fetch(ctx, target, timeout)
	if err != nil {
		return "", "", err
	}
	t.mu.Lock()
	t.installLocked(doc)
	t.mu.Unlock()
	return doc.URL, doc.Title, nil
}

// Reload refetches the current entry. bypassCache is accepted for contract
// parity; the backend holds no cache to bypass.
func (t *Tab) Reload(ctx context.Context, bypassCache bool, timeout time.Duration) (string, string, error) {
	_ = bypassCache
	t.mu.Lock()
	target := t.history[t.pos]
	t.mu.Unlock()
	if target == aboutBlank {
		url, title := t.Location()
		return url, title, nil
	}
	doc, err := t.fetch(ctx, target, timeout)
	if err != nil {
		return "", "", err
	}
	t.mu.Lock()
	t.installLocked(doc)
	t.mu.Unlock()
	return doc.URL, doc.Title, nil
}

// WaitReady resolves as soon as the document is installed; fetches in this
// backend are synchronous, so an installed document is a ready one.
func (t *Tab) WaitReady(ctx context.Context, timeout time.Duration) (string, string, error) {
	_ = timeout
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	url, title := t.Location()
	return url, title, nil
}

// Screenshot always refuses: there is nothing to rasterize.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, string, error) {
	return nil, "", ErrScreenshotUnsupported
}

// Snapshot renders the accessibility view of the current document.
func (t *Tab) Snapshot(opts snapshot.Options) (snapshot.Result, error) {
	t.mu.Lock()
	doc := t.doc
	t.mu.Unlock()
	return t.engine.Take(doc, opts)
}

// Click resolves the ref and performs the click sequence.
func (t *Tab) Click(snapshotID, ref string) action.Result {
	return t.exec.Click(snapshotID, ref)
}

// Hover resolves the ref and performs the hover sequence.
func (t *Tab) Hover(snapshotID, ref string) action.Result {
	return t.exec.Hover(snapshotID, ref)
}

// TypeText resolves the ref and enters text.
func (t *Tab) TypeText(snapshotID, ref, text string, clearFirst bool) action.Result {
	return t.exec.TypeText(snapshotID, ref, text, clearFirst)
}

// SelectOption resolves the ref and selects the matching option.
func (t *Tab) SelectOption(snapshotID, ref, value string) action.Result {
	return t.exec.SelectOption(snapshotID, ref, value)
}

// ScrollPage scrolls the window or the referenced element into view.
func (t *Tab) ScrollPage(direction string, amount int, ref, snapshotID string) action.Result {
	return t.exec.ScrollPage(direction, amount, ref, snapshotID)
}

// DropFiles delivers files to the referenced element.
func (t *Tab) DropFiles(snapshotID, ref string, files []action.FileEntry) action.Result {
	return t.exec.DropFiles(snapshotID, ref, files)
}

// WebMCPTools discovers the page's tool set.
func (t *Tab) WebMCPTools(ctx context.Context) ([]webmcp.Tool, error) {
	_ = ctx
	t.mu.Lock()
	doc := t.doc
	t.mu.Unlock()
	return t.registry.Discover(doc, t.id), nil
}

// InvokeWebMCPTool runs a discovered tool. Discovery reruns on the current
// document before every invocation.
func (t *Tab) InvokeWebMCPTool(ctx context.Context, name string, args map[string]any) (any, error) {
	_ = ctx
	t.mu.Lock()
	doc := t.doc
	t.mu.Unlock()
	t.registry.Discover(doc, t.id)
	return t.registry.Invoke(doc, name, args)
}

// Close releases the tab. The page backend holds no external resources.
func (t *Tab) Close() error { return nil }

// installLocked swaps the document in and wires its hooks. Callers hold t.mu.
func (t *Tab) installLocked(doc *dom.Document) {
	doc.OnNavigate = t.navigateHook
	doc.OnSubmit = t.submitHook
	t.doc = doc
	t.engine.Invalidate()
}

func (t *Tab) installBlank() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.installBlankLocked()
}

func (t *Tab) installBlankLocked() {
	doc, _ := dom.ParseString("<html><head></head><body></body></html>", aboutBlank)
	t.installLocked(doc)
}

func (t *Tab) fetch(ctx context.Context, target string, timeout time.Duration) (*dom.Document, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", target, err)
	}
	return t.do(req)
}

func (t *Tab) do(req *http.Request) (*dom.Document, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	doc, err := dom.ParseString(string(body), resp.Request.URL.String())
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// navigateHook handles in-document link activation: resolve against the
// current URL and navigate synchronously.
func (t *Tab) navigateHook(href string) {
	t.mu.Lock()
	base := ""
	if t.doc != nil {
		base = t.doc.URL
	}
	t.mu.Unlock()

	resolved, err := resolveURL(base, href)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, _, _ = t.Navigate(ctx, resolved, 0)
}

// submitHook performs the form's HTTP submission and installs the response
// document.
func (t *Tab) submitHook(form, submitter *dom.Node) {
	t.mu.Lock()
	base := ""
	if t.doc != nil {
		base = t.doc.URL
	}
	t.mu.Unlock()

	values := collectFormValues(form, submitter)
	actionURL := form.AttrValue("action")
	if actionURL == "" {
		actionURL = base
	}
	resolved, err := resolveURL(base, actionURL)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var req *http.Request
	if strings.EqualFold(form.AttrValue("method"), "post") {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, resolved, strings.NewReader(values.Encode()))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		u, parseErr := url.Parse(resolved)
		if parseErr != nil {
			return
		}
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return
		}
	}

	doc, err := t.do(req)
	if err != nil {
		return
	}
	t.mu.Lock()
	t.installLocked(doc)
	t.history = append(t.history[:t.pos+1], doc.URL)
	t.pos = len(t.history) - 1
	t.mu.Unlock()
}

func collectFormValues(form, submitter *dom.Node) url.Values {
	values := url.Values{}
	form.Walk(func(n *dom.Node) bool {
		if n.Type != dom.ElementNode {
			return true
		}
		name := n.AttrValue("name")
		if name == "" {
			return true
		}
		switch n.Tag {
		case "input":
			switch strings.ToLower(n.AttrValue("type")) {
			case "checkbox", "radio":
				if dom.Checked(n) {
					v := n.AttrValue("value")
					if v == "" {
						v = "on"
					}
					values.Add(name, v)
				}
			case "submit", "button", "image", "reset":
				if n == submitter {
					values.Add(name, dom.Value(n))
				}
			case "file":
				// File payloads do not travel on urlencoded submits.
			default:
				values.Add(name, dom.Value(n))
			}
		case "textarea":
			values.Add(name, dom.Value(n))
		case "select":
			for _, opt := range dom.SelectedOptions(n) {
				values.Add(name, dom.OptionValue(opt))
			}
		}
		return true
	})
	return values
}

func resolveURL(base, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return "", fmt.Errorf("cannot resolve %q against %q", href, base)
	}
	return b.ResolveReference(ref).String(), nil
}

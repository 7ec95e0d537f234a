// Package chrome is the live tab backend: tabs are real browser pages
// reached over the DevTools protocol via rod. Snapshots parse the serialized
// page HTML through the same engine as the in-process backend; each ref
// additionally records a structural CSS path so actions can be mirrored onto
// the live element.
package chrome

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"webclaw/internal/action"
	"webclaw/internal/dom"
	"webclaw/internal/snapshot"
	"webclaw/internal/webmcp"
)

// Manager owns the rod connection to a running Chrome.
type Manager struct {
	browser *rod.Browser
}

// Attach connects to an existing Chrome DevTools endpoint.
func Attach(ctx context.Context, controlURL string) (*Manager, error) {
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome at %s: %w", controlURL, err)
	}
	return &Manager{browser: browser}, nil
}

// Close disconnects from the browser without killing it.
func (m *Manager) Close() error {
	return m.browser.Close()
}

// NewTab opens a fresh browser page for the given worker tab id.
func (m *Manager) NewTab(id int) (*Tab, error) {
	page, err := m.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	t := &Tab{id: id, page: page, engine: snapshot.New(), registry: webmcp.NewRegistry()}
	return t, nil
}

// Tab is a live browser page behind the worker.Tab contract.
type Tab struct {
	id   int
	page *rod.Page

	mu     sync.Mutex
	doc    *dom.Document
	paths  map[string]string // ref → css path, rebuilt per snapshot
	engine *snapshot.Engine

	registry *webmcp.Registry
}

// ID returns the worker tab id.
func (t *Tab) ID() int { return t.id }

// Location reports the live page's URL and title.
func (t *Tab) Location() (string, string) {
	info, err := t.page.Info()
	if err != nil {
		return "", ""
	}
	return info.URL, info.Title
}

// Navigate drives a real navigation and waits for the load event.
func (t *Tab) Navigate(ctx context.Context, url string, timeout time.Duration) (string, string, error) {
	page := t.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return "", "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", "", err
	}
	t.invalidate()
	u, title := t.Location()
	return u, title, nil
}

// GoBack steps the live history back.
func (t *Tab) GoBack(ctx context.Context, timeout time.Duration) (string, string, error) {
	page := t.page.Context(ctx).Timeout(timeout)
	if err := page.NavigateBack(); err != nil {
		return "", "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", "", err
	}
	t.invalidate()
	u, title := t.Location()
	return u, title, nil
}

// GoForward steps the live history forward.
func (t *Tab) GoForward(ctx context.Context, timeout time.Duration) (string, string, error) {
	page := t.page.Context(ctx).Timeout(timeout)
	if err := page.NavigateForward(); err != nil {
		return "", "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", "", err
	}
	t.invalidate()
	u, title := t.Location()
	return u, title, nil
}

// Reload refreshes the page.
func (t *Tab) Reload(ctx context.Context, bypassCache bool, timeout time.Duration) (string, string, error) {
	page := t.page.Context(ctx).Timeout(timeout)
	if bypassCache {
		if err := (proto.NetworkSetCacheDisabled{CacheDisabled: true}).Call(page); err == nil {
			defer func() { _ = (proto.NetworkSetCacheDisabled{CacheDisabled: false}).Call(t.page) }()
		}
	}
	if err := page.Reload(); err != nil {
		return "", "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", "", err
	}
	t.invalidate()
	u, title := t.Location()
	return u, title, nil
}

// WaitReady waits for the load event on the current document.
func (t *Tab) WaitReady(ctx context.Context, timeout time.Duration) (string, string, error) {
	page := t.page.Context(ctx).Timeout(timeout)
	if err := page.WaitLoad(); err != nil {
		return "", "", err
	}
	u, title := t.Location()
	return u, title, nil
}

func (t *Tab) invalidate() {
	t.mu.Lock()
	t.doc = nil
	t.paths = nil
	t.mu.Unlock()
	t.engine.Invalidate()
}

// Snapshot serializes the live DOM, parses it through the shared engine, and
// records a CSS path per issued ref.
func (t *Tab) Snapshot(opts snapshot.Options) (snapshot.Result, error) {
	html, err := t.page.HTML()
	if err != nil {
		return snapshot.Result{}, fmt.Errorf("serialize page: %w", err)
	}
	u, title := t.Location()
	doc, err := dom.ParseString(html, u)
	if err != nil {
		return snapshot.Result{}, err
	}
	doc.Title = title

	result, err := t.engine.Take(doc, opts)
	if err != nil {
		return snapshot.Result{}, err
	}

	paths := make(map[string]string)
	for ref, n := range t.engine.CurrentRefs() {
		paths[ref] = dom.CSSPath(n)
	}
	t.mu.Lock()
	t.doc = doc
	t.paths = paths
	t.mu.Unlock()
	return result, nil
}

// document returns the parsed mirror of the last snapshot.
func (t *Tab) document() *dom.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc
}

// resolve runs the shared pre-checks on the parsed mirror, then locates the
// live element by its recorded path.
func (t *Tab) resolve(snapshotID, ref string) (*rod.Element, action.Result) {
	n, err := t.engine.Resolve(snapshotID, ref)
	if err != nil {
		if errors.Is(err, snapshot.ErrStale) {
			return nil, action.Result{Error: fmt.Sprintf("snapshot %s is stale; take a new snapshot", snapshotID)}
		}
		return nil, action.Result{Error: fmt.Sprintf("element %s not found in current snapshot", ref)}
	}
	if dom.Disabled(n) {
		return nil, action.Result{Error: fmt.Sprintf("element %s is disabled", ref)}
	}

	t.mu.Lock()
	path := t.paths[ref]
	t.mu.Unlock()
	if path == "" {
		return nil, action.Result{Error: fmt.Sprintf("element %s not found in document", ref)}
	}
	el, err := t.page.Timeout(2 * time.Second).Element(path)
	if err != nil {
		return nil, action.Result{Error: fmt.Sprintf("element %s not found in document", ref)}
	}
	_ = el.ScrollIntoView()
	return el, action.Result{Success: true}
}

// Click mirrors the click onto the live element.
func (t *Tab) Click(snapshotID, ref string) action.Result {
	el, res := t.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return action.Result{Error: fmt.Sprintf("click %s: %v", ref, err)}
	}
	return action.Result{Success: true}
}

// Hover moves the pointer over the live element.
func (t *Tab) Hover(snapshotID, ref string) action.Result {
	el, res := t.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}
	if err := el.Hover(); err != nil {
		return action.Result{Error: fmt.Sprintf("hover %s: %v", ref, err)}
	}
	return action.Result{Success: true}
}

// TypeText validates against the parsed mirror, then sets the live value
// through the property setter and fires input/change, the path framework
// listeners react to.
func (t *Tab) TypeText(snapshotID, ref, text string, clearFirst bool) action.Result {
	t.mu.Lock()
	mirror, mirrorErr := t.engine.Resolve(snapshotID, ref)
	t.mu.Unlock()
	if mirrorErr == nil && !dom.IsTextEntry(mirror) {
		return action.Result{Error: fmt.Sprintf("element %s is not a text input", ref)}
	}
	el, res := t.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}
	_, err := el.Eval(`(clear, text) => {
		const el = this;
		const setter = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), 'value');
		const assign = (v) => {
			if (setter && setter.set) setter.set.call(el, v);
			else if ('value' in el) el.value = v;
			else el.textContent = v;
		};
		assign(clear ? text : (el.value || '') + text);
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
	}`, clearFirst, text)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("type into %s: %v", ref, err)}
	}
	return action.Result{Success: true}
}

// SelectOption validates option eligibility on the parsed mirror (disabled
// options and optgroups reject), then applies the selection live.
func (t *Tab) SelectOption(snapshotID, ref, value string) action.Result {
	mirror, err := t.engine.Resolve(snapshotID, ref)
	if err == nil {
		if mirror.Tag != "select" {
			return action.Result{Error: fmt.Sprintf("element %s is not a select", ref)}
		}
		if res := validateOption(mirror, value); !res.Success {
			return res
		}
	}
	el, res := t.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}
	_, evalErr := el.Eval(`(value) => {
		const sel = this;
		let matched = null;
		for (const opt of sel.options) {
			if (opt.value === value || opt.text.trim() === value.trim()) { matched = opt; break; }
		}
		if (!matched) return false;
		if (!sel.multiple) {
			for (const opt of sel.options) opt.selected = false;
		}
		matched.selected = true;
		sel.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	}`, value)
	if evalErr != nil {
		return action.Result{Error: fmt.Sprintf("select in %s: %v", ref, evalErr)}
	}
	return action.Result{Success: true}
}

func validateOption(sel *dom.Node, value string) action.Result {
	var target *dom.Node
	for _, opt := range dom.Options(sel) {
		if attr, has := opt.Attr("value"); has && attr == value {
			target = opt
			break
		}
	}
	if target == nil {
		for _, opt := range dom.Options(sel) {
			if strings.TrimSpace(opt.TextContent()) == strings.TrimSpace(value) {
				target = opt
				break
			}
		}
	}
	if target == nil {
		return action.Result{Error: fmt.Sprintf("option %q not found", value)}
	}
	if dom.OptionDisabled(target) {
		return action.Result{Error: fmt.Sprintf("option %q is disabled", value)}
	}
	return action.Result{Success: true}
}

// ScrollPage scrolls the live window, or the referenced element into view.
func (t *Tab) ScrollPage(direction string, amount int, ref, snapshotID string) action.Result {
	if ref != "" {
		_, res := t.resolve(snapshotID, ref)
		return res
	}
	if amount <= 0 {
		amount = action.DefaultScrollAmount
	}
	delta := amount
	if direction == "up" {
		delta = -amount
	}
	if _, err := t.page.Eval(`(dy) => window.scrollBy(0, dy)`, delta); err != nil {
		return action.Result{Error: fmt.Sprintf("scroll: %v", err)}
	}
	return action.Result{Success: true}
}

// DropFiles assigns files to a live file input via temp files; non-input
// targets get a synthetic drag sequence.
func (t *Tab) DropFiles(snapshotID, ref string, files []action.FileEntry) action.Result {
	t.mu.Lock()
	mirror, mirrorErr := t.engine.Resolve(snapshotID, ref)
	t.mu.Unlock()

	el, res := t.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}

	isFileInput := mirrorErr == nil && mirror.Tag == "input" && strings.EqualFold(mirror.AttrValue("type"), "file")
	if isFileInput {
		dir, err := os.MkdirTemp("", "webclaw-drop-*")
		if err != nil {
			return action.Result{Error: fmt.Sprintf("stage files: %v", err)}
		}
		paths := make([]string, 0, len(files))
		for _, f := range files {
			data, decodeErr := base64.StdEncoding.DecodeString(f.Base64Data)
			if decodeErr != nil {
				return action.Result{Error: fmt.Sprintf("file %q: invalid base64 data", f.Name)}
			}
			p := filepath.Join(dir, filepath.Base(f.Name))
			if writeErr := os.WriteFile(p, data, 0o600); writeErr != nil {
				return action.Result{Error: fmt.Sprintf("stage %q: %v", f.Name, writeErr)}
			}
			paths = append(paths, p)
		}
		if err := el.SetFiles(paths); err != nil {
			return action.Result{Error: fmt.Sprintf("assign files to %s: %v", ref, err)}
		}
		return action.Result{Success: true}
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	if _, err := el.Eval(`(names) => {
		const dt = new DataTransfer();
		for (const ev of ['dragenter', 'dragover', 'drop']) {
			this.dispatchEvent(new DragEvent(ev, {bubbles: true, cancelable: true, dataTransfer: dt}));
		}
		return names.length;
	}`, names); err != nil {
		return action.Result{Error: fmt.Sprintf("drop onto %s: %v", ref, err)}
	}
	return action.Result{Success: true}
}

// Screenshot captures the viewport as PNG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, string, error) {
	data, err := t.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, "", fmt.Errorf("capture: %w", err)
	}
	return data, "image/png", nil
}

// Close closes the live page.
func (t *Tab) Close() error { return t.page.Close() }

// Package action executes agent interactions against the current snapshot:
// resolve the opaque ref back to a live node, verify the pre-conditions, and
// perform the semantically correct DOM interaction. Failures are values, not
// errors: the agent reads them and adjusts.
package action

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"webclaw/internal/dom"
	"webclaw/internal/snapshot"
)

// Result is the uniform action outcome. Error strings are stable: callers
// match on "disabled", "not found", "not a text input", "not a select".
type Result struct {
	Success bool
	Error   string
}

func ok() Result { return Result{Success: true} }

func fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// DefaultScrollAmount is one viewport height, used when scrollPage gets no
// explicit amount.
const DefaultScrollAmount = 720

// FileEntry is one file handed to DropFiles, base64-encoded on the wire.
type FileEntry struct {
	Name       string
	MimeType   string
	Base64Data string
}

// Executor binds a snapshot engine to the document it was taken from.
type Executor struct {
	engine *snapshot.Engine
	doc    func() *dom.Document
}

// New builds an executor. The document is read through a callback because
// navigation swaps it out from under the executor.
func New(engine *snapshot.Engine, doc func() *dom.Document) *Executor {
	return &Executor{engine: engine, doc: doc}
}

// resolve runs the uniform pre-check sequence shared by every ref-bearing
// action: snapshot freshness, ref lookup, attachment, disabled chain, then
// scroll-into-view.
func (x *Executor) resolve(snapshotID, ref string) (*dom.Node, Result) {
	n, err := x.engine.Resolve(snapshotID, ref)
	if err != nil {
		if errors.Is(err, snapshot.ErrStale) {
			return nil, fail("snapshot %s is stale; take a new snapshot", snapshotID)
		}
		return nil, fail("element %s not found in current snapshot", ref)
	}
	if !n.Connected() {
		return nil, fail("element %s not found in document", ref)
	}
	if dom.Disabled(n) {
		return nil, fail("element %s is disabled", ref)
	}
	x.scrollIntoView(n)
	return n, ok()
}

func (x *Executor) scrollIntoView(n *dom.Node) {
	if doc := x.doc(); doc != nil {
		doc.ScrolledTo = n
	}
}

// Click dispatches the full pointer sequence and, when no listener cancels
// the click, runs the element's native activation behavior.
func (x *Executor) Click(snapshotID, ref string) Result {
	n, res := x.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}
	n.FireBubbling("pointerdown")
	n.FireBubbling("mousedown")
	n.FireBubbling("pointerup")
	n.FireBubbling("mouseup")
	if n.FireBubbling("click") {
		dom.Click(n)
	}
	return ok()
}

// Hover dispatches the mouse-enter sequence at the element.
func (x *Executor) Hover(snapshotID, ref string) Result {
	n, res := x.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}
	n.FireBubbling("mouseover")
	n.DispatchEvent(&dom.Event{Type: "mouseenter"})
	n.FireBubbling("mousemove")
	return ok()
}

// TypeText sets a text-entry element's value through the property setter and
// fires input/change so framework listeners observe the edit. Readonly
// inputs are deliberately allowed; readonly is a DOM state this layer is
// not asked to police.
func (x *Executor) TypeText(snapshotID, ref, text string, clearFirst bool) Result {
	n, res := x.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}
	if !dom.IsTextEntry(n) {
		return fail("element %s is not a text input", ref)
	}
	if clearFirst {
		dom.SetValue(n, "")
		dom.SetValue(n, text)
	} else {
		dom.SetValue(n, dom.Value(n)+text)
	}
	n.FireBubbling("input")
	n.FireBubbling("change")
	return ok()
}

// SelectOption selects the option matching value (exact value attribute
// first, then trimmed visible text). On a multi-select, successive calls add
// to the selection.
func (x *Executor) SelectOption(snapshotID, ref, value string) Result {
	n, res := x.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}
	if n.Tag != "select" {
		return fail("element %s is not a select", ref)
	}

	opts := dom.Options(n)
	target := matchOption(opts, value)
	if target == nil {
		return fail("option %q not found in %s", value, ref)
	}
	if dom.OptionDisabled(target) {
		return fail("option %q is disabled", value)
	}

	if !n.HasAttr("multiple") {
		for _, opt := range opts {
			dom.SetOptionSelected(opt, opt == target)
		}
	} else {
		dom.SetOptionSelected(target, true)
	}
	n.FireBubbling("change")
	return ok()
}

func matchOption(opts []*dom.Node, value string) *dom.Node {
	for _, opt := range opts {
		if attr, has := opt.Attr("value"); has && attr == value {
			return opt
		}
	}
	for _, opt := range opts {
		if strings.TrimSpace(opt.TextContent()) == strings.TrimSpace(value) {
			return opt
		}
	}
	return nil
}

// ScrollPage scrolls the window by amount pixels in direction, or brings a
// referenced element into view when ref is given.
func (x *Executor) ScrollPage(direction string, amount int, ref, snapshotID string) Result {
	if ref != "" {
		_, res := x.resolve(snapshotID, ref)
		if !res.Success {
			return res
		}
		return ok()
	}
	doc := x.doc()
	if doc == nil {
		return fail("no document loaded")
	}
	if amount <= 0 {
		amount = DefaultScrollAmount
	}
	switch direction {
	case "", "down":
		doc.ScrollY += amount
	case "up":
		doc.ScrollY -= amount
		if doc.ScrollY < 0 {
			doc.ScrollY = 0
		}
	default:
		return fail("unknown scroll direction %q", direction)
	}
	return ok()
}

// DropFiles decodes the entries and delivers them: assignment plus change on
// a file input, or a dragenter/dragover/drop sequence elsewhere.
func (x *Executor) DropFiles(snapshotID, ref string, entries []FileEntry) Result {
	n, res := x.resolve(snapshotID, ref)
	if !res.Success {
		return res
	}
	files := make([]dom.File, 0, len(entries))
	for _, e := range entries {
		data, err := base64.StdEncoding.DecodeString(e.Base64Data)
		if err != nil {
			return fail("file %q: invalid base64 data", e.Name)
		}
		files = append(files, dom.File{Name: e.Name, MimeType: e.MimeType, Data: data})
	}

	if n.Tag == "input" && strings.EqualFold(n.AttrValue("type"), "file") {
		dom.SetFiles(n, files)
		n.FireBubbling("change")
		return ok()
	}

	for _, evType := range []string{"dragenter", "dragover", "drop"} {
		n.DispatchEvent(&dom.Event{Type: evType, Bubbles: true, Cancelable: true, Detail: files})
	}
	return ok()
}

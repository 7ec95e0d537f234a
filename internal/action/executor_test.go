package action

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webclaw/internal/dom"
	"webclaw/internal/snapshot"
)

type fixture struct {
	doc    *dom.Document
	engine *snapshot.Engine
	exec   *Executor
	snapID string
}

func newFixture(t *testing.T, markup string) *fixture {
	t.Helper()
	doc, err := dom.ParseString(markup, "https://example.test/")
	require.NoError(t, err)
	engine := snapshot.New()
	f := &fixture{doc: doc, engine: engine}
	f.exec = New(engine, func() *dom.Document { return f.doc })
	f.retake(t)
	return f
}

func (f *fixture) retake(t *testing.T) {
	t.Helper()
	res, err := f.engine.Take(f.doc, snapshot.Options{})
	require.NoError(t, err)
	f.snapID = res.SnapshotID
}

// refOf finds the ref whose node has the given id attribute.
func (f *fixture) refOf(t *testing.T, id string) string {
	t.Helper()
	for ref, n := range f.engine.CurrentRefs() {
		if n.ID() == id {
			return ref
		}
	}
	t.Fatalf("no ref for #%s", id)
	return ""
}

func TestClickTogglesPressedState(t *testing.T) {
	// S1: a toolbar toggle flips aria-pressed through its click handler.
	f := newFixture(t, `<body><button id="bold" aria-pressed="false">Bold</button></body>`)
	btn := f.doc.GetElementByID("bold")
	btn.AddEventListener("click", func(*dom.Event) {
		if btn.AttrValue("aria-pressed") == "true" {
			btn.SetAttr("aria-pressed", "false")
		} else {
			btn.SetAttr("aria-pressed", "true")
		}
	})

	res, err := f.engine.Take(f.doc, snapshot.Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "(unpressed)")

	result := f.exec.Click(res.SnapshotID, f.refOf(t, "bold"))
	require.True(t, result.Success, result.Error)

	after, err := f.engine.Take(f.doc, snapshot.Options{})
	require.NoError(t, err)
	assert.Contains(t, after.Text, "(pressed)")
}

func TestClickDispatchesFullPointerSequence(t *testing.T) {
	f := newFixture(t, `<body><button id="b">x</button></body>`)
	var seen []string
	btn := f.doc.GetElementByID("b")
	for _, evType := range []string{"pointerdown", "mousedown", "pointerup", "mouseup", "click"} {
		et := evType
		btn.AddEventListener(et, func(*dom.Event) { seen = append(seen, et) })
	}

	result := f.exec.Click(f.snapID, f.refOf(t, "b"))
	require.True(t, result.Success, result.Error)
	assert.Equal(t, []string{"pointerdown", "mousedown", "pointerup", "mouseup", "click"}, seen)
}

func TestClickDisabledRejectsWithoutInvokingHandler(t *testing.T) {
	f := newFixture(t, `<body><button id="frozen" disabled>x</button></body>`)
	handlerRan := false
	f.doc.GetElementByID("frozen").AddEventListener("click", func(*dom.Event) { handlerRan = true })

	result := f.exec.Click(f.snapID, f.refOf(t, "frozen"))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "disabled")
	assert.False(t, handlerRan)
}

func TestClickAriaDisabledAncestorRejects(t *testing.T) {
	f := newFixture(t, `<body><div aria-disabled="true"><button id="b">x</button></div></body>`)
	result := f.exec.Click(f.snapID, f.refOf(t, "b"))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "disabled")
}

func TestStaleSnapshotRejected(t *testing.T) {
	f := newFixture(t, `<body><button id="b">x</button></body>`)
	oldID := f.snapID
	ref := f.refOf(t, "b")
	f.retake(t)

	result := f.exec.Click(oldID, ref)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "stale")
}

func TestDetachedNodeFailsNotFound(t *testing.T) {
	// S4: an SPA swap replaces the container's markup; the old ref is dead.
	f := newFixture(t, `<body><div id="container"><button id="b">x</button></div></body>`)
	ref := f.refOf(t, "b")
	require.NoError(t, dom.SetInnerHTML(f.doc.GetElementByID("container"), `<button id="b2">y</button>`))

	result := f.exec.Click(f.snapID, ref)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestUnknownRefFailsNotFound(t *testing.T) {
	f := newFixture(t, `<body><button id="b">x</button></body>`)
	result := f.exec.Click(f.snapID, "@e42")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestTypeTextThroughUppercasingListener(t *testing.T) {
	// S2: the page's input listener rewrites the value; the executor's
	// final state is whatever the page decided.
	f := newFixture(t, `<body><input id="masked" type="text"></body>`)
	input := f.doc.GetElementByID("masked")
	input.AddEventListener("input", func(*dom.Event) {
		dom.SetValue(input, strings.ToUpper(dom.Value(input)))
	})

	result := f.exec.TypeText(f.snapID, f.refOf(t, "masked"), "hello world", true)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "HELLO WORLD", dom.Value(input))
}

func TestTypeTextClearFirstAndAppend(t *testing.T) {
	f := newFixture(t, `<body><input id="i" type="text" value="seed"></body>`)
	input := f.doc.GetElementByID("i")
	ref := f.refOf(t, "i")

	require.True(t, f.exec.TypeText(f.snapID, ref, "-more", false).Success)
	assert.Equal(t, "seed-more", dom.Value(input))

	require.True(t, f.exec.TypeText(f.snapID, ref, "fresh", true).Success)
	assert.Equal(t, "fresh", dom.Value(input))
}

func TestTypeTextReadonlyAllowed(t *testing.T) {
	f := newFixture(t, `<body><input id="ro" type="text" readonly value="locked"></body>`)
	result := f.exec.TypeText(f.snapID, f.refOf(t, "ro"), "new", true)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "new", dom.Value(f.doc.GetElementByID("ro")))
}

func TestTypeTextRejectsNonTextTargets(t *testing.T) {
	f := newFixture(t, `<body><button id="b">x</button><select id="s"><option>o</option></select></body>`)
	for _, id := range []string{"b", "s"} {
		result := f.exec.TypeText(f.snapID, f.refOf(t, id), "text", true)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "not a text input")
	}
}

func TestTypeTextContenteditable(t *testing.T) {
	f := newFixture(t, `<body><div id="ed" contenteditable="true">old</div></body>`)
	result := f.exec.TypeText(f.snapID, f.refOf(t, "ed"), "note", true)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "note", dom.Value(f.doc.GetElementByID("ed")))
}

func TestSelectOptionByValueAndText(t *testing.T) {
	f := newFixture(t, `<body><select id="s">
		<option value="a">Alpha</option>
		<option value="b">  Beta  </option>
	</select></body>`)
	sel := f.doc.GetElementByID("s")
	ref := f.refOf(t, "s")

	var changes int
	sel.AddEventListener("change", func(*dom.Event) { changes++ })

	require.True(t, f.exec.SelectOption(f.snapID, ref, "b").Success)
	assert.Equal(t, "Beta", dom.Value(sel))

	// Visible text matches with whitespace trimmed on both sides.
	require.True(t, f.exec.SelectOption(f.snapID, ref, "Alpha").Success)
	assert.Equal(t, "Alpha", dom.Value(sel))
	assert.Equal(t, 2, changes)
}

func TestSelectOptionDisabledOptgroupRejects(t *testing.T) {
	// S3: the out-of-season group is disabled; its options are ineligible.
	f := newFixture(t, `<body><select id="s">
		<option value="apple" selected>Apple</option>
		<optgroup label="Out of Season" disabled><option value="cherry">Cherry</option></optgroup>
	</select></body>`)
	sel := f.doc.GetElementByID("s")

	result := f.exec.SelectOption(f.snapID, f.refOf(t, "s"), "Cherry")
	assert.False(t, result.Success)
	assert.Regexp(t, "disabled", result.Error)
	assert.Equal(t, "Apple", dom.Value(sel))
}

func TestSelectOptionNotFound(t *testing.T) {
	f := newFixture(t, `<body><select id="s"><option>Apple</option></select></body>`)
	result := f.exec.SelectOption(f.snapID, f.refOf(t, "s"), "Durian")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestSelectOptionOnNonSelect(t *testing.T) {
	f := newFixture(t, `<body><button id="b">x</button></body>`)
	result := f.exec.SelectOption(f.snapID, f.refOf(t, "b"), "x")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not a select")
}

func TestMultiSelectIsAdditive(t *testing.T) {
	f := newFixture(t, `<body><select id="m" multiple>
		<option value="red">Red</option>
		<option value="blue">Blue</option>
		<option value="green">Green</option>
	</select></body>`)
	sel := f.doc.GetElementByID("m")
	ref := f.refOf(t, "m")

	require.True(t, f.exec.SelectOption(f.snapID, ref, "red").Success)
	require.True(t, f.exec.SelectOption(f.snapID, ref, "blue").Success)

	selected := dom.SelectedOptions(sel)
	values := make([]string, len(selected))
	for i, opt := range selected {
		values[i] = dom.OptionValue(opt)
	}
	assert.ElementsMatch(t, []string{"red", "blue"}, values)
}

func TestSingleSelectReplacesSelection(t *testing.T) {
	f := newFixture(t, `<body><select id="s">
		<option value="a" selected>A</option>
		<option value="b">B</option>
	</select></body>`)
	require.True(t, f.exec.SelectOption(f.snapID, f.refOf(t, "s"), "b").Success)
	selected := dom.SelectedOptions(f.doc.GetElementByID("s"))
	require.Len(t, selected, 1)
	assert.Equal(t, "b", dom.OptionValue(selected[0]))
}

func TestHoverSequence(t *testing.T) {
	f := newFixture(t, `<body><button id="b">x</button></body>`)
	var seen []string
	btn := f.doc.GetElementByID("b")
	for _, evType := range []string{"mouseover", "mouseenter", "mousemove"} {
		et := evType
		btn.AddEventListener(et, func(*dom.Event) { seen = append(seen, et) })
	}
	require.True(t, f.exec.Hover(f.snapID, f.refOf(t, "b")).Success)
	assert.Equal(t, []string{"mouseover", "mouseenter", "mousemove"}, seen)
}

func TestScrollPageWindow(t *testing.T) {
	f := newFixture(t, `<body><p>long page</p></body>`)

	require.True(t, f.exec.ScrollPage("", 0, "", "").Success)
	assert.Equal(t, DefaultScrollAmount, f.doc.ScrollY)

	require.True(t, f.exec.ScrollPage("down", 100, "", "").Success)
	assert.Equal(t, DefaultScrollAmount+100, f.doc.ScrollY)

	require.True(t, f.exec.ScrollPage("up", 10000, "", "").Success)
	assert.Equal(t, 0, f.doc.ScrollY)

	assert.False(t, f.exec.ScrollPage("sideways", 10, "", "").Success)
}

func TestScrollPageRefIntoView(t *testing.T) {
	f := newFixture(t, `<body><button id="target">x</button></body>`)
	require.True(t, f.exec.ScrollPage("", 0, f.refOf(t, "target"), f.snapID).Success)
	require.NotNil(t, f.doc.ScrolledTo)
	assert.Equal(t, "target", f.doc.ScrolledTo.ID())
}

func TestDropFilesOntoFileInput(t *testing.T) {
	f := newFixture(t, `<body><input id="up" type="file"></body>`)
	input := f.doc.GetElementByID("up")
	var changed bool
	input.AddEventListener("change", func(*dom.Event) { changed = true })

	payload := base64.StdEncoding.EncodeToString([]byte("file-bytes"))
	result := f.exec.DropFiles(f.snapID, f.refOf(t, "up"), []FileEntry{
		{Name: "report.txt", MimeType: "text/plain", Base64Data: payload},
	})
	require.True(t, result.Success, result.Error)
	assert.True(t, changed)

	files := dom.Files(input)
	require.Len(t, files, 1)
	assert.Equal(t, "report.txt", files[0].Name)
	assert.Equal(t, []byte("file-bytes"), files[0].Data)
}

func TestDropFilesOntoDropZone(t *testing.T) {
	f := newFixture(t, `<body><div id="zone" role="button" aria-label="Drop here">zone</div></body>`)
	var sequence []string
	var dropped []dom.File
	zone := f.doc.GetElementByID("zone")
	for _, evType := range []string{"dragenter", "dragover", "drop"} {
		et := evType
		zone.AddEventListener(et, func(e *dom.Event) {
			sequence = append(sequence, et)
			if et == "drop" {
				dropped = e.Detail.([]dom.File)
			}
		})
	}

	payload := base64.StdEncoding.EncodeToString([]byte("x"))
	result := f.exec.DropFiles(f.snapID, f.refOf(t, "zone"), []FileEntry{
		{Name: "a.bin", MimeType: "application/octet-stream", Base64Data: payload},
	})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, []string{"dragenter", "dragover", "drop"}, sequence)
	require.Len(t, dropped, 1)
	assert.Equal(t, "a.bin", dropped[0].Name)
}

func TestDropFilesBadBase64(t *testing.T) {
	f := newFixture(t, `<body><input id="up" type="file"></body>`)
	result := f.exec.DropFiles(f.snapID, f.refOf(t, "up"), []FileEntry{
		{Name: "x", MimeType: "text/plain", Base64Data: "!!!not-base64!!!"},
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "base64")
}

package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseString(markup, "https://example.test/page")
	require.NoError(t, err)
	return doc
}

func TestParseCapturesTitle(t *testing.T) {
	doc := mustParse(t, `<html><head><title> Hello  World </title></head><body></body></html>`)
	assert.Equal(t, "Hello  World", doc.Title)
	assert.Equal(t, "https://example.test/page", doc.URL)
}

func TestGetElementByID(t *testing.T) {
	doc := mustParse(t, `<body><div id="outer"><span id="inner">x</span></div></body>`)
	require.NotNil(t, doc.GetElementByID("inner"))
	assert.Equal(t, "span", doc.GetElementByID("inner").Tag)
	assert.Nil(t, doc.GetElementByID("missing"))
}

func TestVisibilityResolution(t *testing.T) {
	doc := mustParse(t, `<body>
		<div id="hiddenparent" style="visibility: hidden">
			<button id="revealed" style="visibility: visible">In</button>
			<button id="inherited">Out</button>
		</div>
	</body>`)

	assert.Equal(t, "hidden", ResolvedVisibility(doc.GetElementByID("inherited")))
	assert.Equal(t, "visible", ResolvedVisibility(doc.GetElementByID("revealed")))
	assert.Equal(t, "hidden", ResolvedVisibility(doc.GetElementByID("hiddenparent")))
}

func TestDisplayNoneAndOpacity(t *testing.T) {
	doc := mustParse(t, `<body>
		<div id="gone" style="display:none"><button>x</button></div>
		<div id="clear" style="opacity: 0.0"><button>y</button></div>
		<div id="faint" style="opacity: 0.5"></div>
		<div id="attr" hidden></div>
	</body>`)

	assert.True(t, DisplayNone(doc.GetElementByID("gone")))
	assert.True(t, DisplayNone(doc.GetElementByID("attr")))
	assert.True(t, OpacityZero(doc.GetElementByID("clear")))
	assert.False(t, OpacityZero(doc.GetElementByID("faint")))
}

func TestAccessibleNamePriority(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		id     string
		want   string
	}{
		{
			name:   "labelledby wins over aria-label",
			markup: `<body><span id="lbl">From Labelledby</span><button id="b" aria-labelledby="lbl" aria-label="From AriaLabel">Text</button></body>`,
			id:     "b",
			want:   "From Labelledby",
		},
		{
			name:   "broken labelledby falls through to aria-label",
			markup: `<body><button id="b" aria-labelledby="nope" aria-label="From AriaLabel">Text</button></body>`,
			id:     "b",
			want:   "From AriaLabel",
		},
		{
			name:   "label for association",
			markup: `<body><label for="i">Email address</label><input id="i" type="text" placeholder="you@example.com"></body>`,
			id:     "i",
			want:   "Email address",
		},
		{
			name:   "wrapping label",
			markup: `<body><label>Remember me <input id="i" type="checkbox"></label></body>`,
			id:     "i",
			want:   "Remember me",
		},
		{
			name:   "img alt",
			markup: `<body><img id="i" alt="Company logo" title="ignored"></body>`,
			id:     "i",
			want:   "Company logo",
		},
		{
			name:   "title before placeholder",
			markup: `<body><input id="i" type="text" title="Search terms" placeholder="type here"></body>`,
			id:     "i",
			want:   "Search terms",
		},
		{
			name:   "placeholder as last input resort",
			markup: `<body><input id="i" type="text" placeholder="type here"></body>`,
			id:     "i",
			want:   "type here",
		},
		{
			name:   "text content for buttons",
			markup: `<body><button id="b">  Save   draft </button></body>`,
			id:     "b",
			want:   "Save draft",
		},
		{
			name:   "fieldset legend",
			markup: `<body><fieldset id="f"><legend>Shipping</legend><input type="text"></fieldset></body>`,
			id:     "f",
			want:   "Shipping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.markup)
			n := doc.GetElementByID(tt.id)
			require.NotNil(t, n)
			assert.Equal(t, tt.want, AccessibleName(n))
		})
	}
}

func TestValuePropertyShadowsAttribute(t *testing.T) {
	doc := mustParse(t, `<body><input id="i" type="text" value="initial"></body>`)
	input := doc.GetElementByID("i")

	assert.Equal(t, "initial", Value(input))
	SetValue(input, "typed")
	assert.Equal(t, "typed", Value(input))
	// The attribute is untouched: only the live property moved.
	assert.Equal(t, "initial", input.AttrValue("value"))
}

func TestSelectValueSemantics(t *testing.T) {
	doc := mustParse(t, `<body><select id="s">
		<option value="a">Alpha</option>
		<option value="b" selected>Beta</option>
	</select></body>`)
	sel := doc.GetElementByID("s")
	assert.Equal(t, "Beta", Value(sel))

	multi := mustParse(t, `<body><select id="m" multiple>
		<option selected>One</option>
		<option selected>Two</option>
		<option>Three</option>
	</select></body>`).GetElementByID("m")
	assert.Equal(t, "One, Two", Value(multi))
}

func TestSelectDefaultsToFirstEnabledOption(t *testing.T) {
	doc := mustParse(t, `<body><select id="s">
		<option disabled>Pick one</option>
		<option value="x">First real</option>
	</select></body>`)
	sel := doc.GetElementByID("s")
	assert.Equal(t, "First real", Value(sel))
}

func TestOptionDisabledViaOptgroup(t *testing.T) {
	doc := mustParse(t, `<body><select id="s">
		<optgroup label="Out of Season" disabled><option id="cherry">Cherry</option></optgroup>
		<option id="apple">Apple</option>
	</select></body>`)
	assert.True(t, OptionDisabled(doc.GetElementByID("cherry")))
	assert.False(t, OptionDisabled(doc.GetElementByID("apple")))
}

func TestDisabledChain(t *testing.T) {
	doc := mustParse(t, `<body>
		<fieldset disabled><button id="inFieldset">x</button></fieldset>
		<div aria-disabled="true"><button id="inAria">y</button></div>
		<button id="free">z</button>
	</body>`)
	assert.True(t, Disabled(doc.GetElementByID("inFieldset")))
	assert.True(t, Disabled(doc.GetElementByID("inAria")))
	assert.False(t, Disabled(doc.GetElementByID("free")))
}

func TestClickTogglesCheckboxAndFiresEvents(t *testing.T) {
	doc := mustParse(t, `<body><input id="c" type="checkbox"></body>`)
	box := doc.GetElementByID("c")

	var events []string
	box.AddEventListener("input", func(*Event) { events = append(events, "input") })
	box.AddEventListener("change", func(*Event) { events = append(events, "change") })

	Click(box)
	assert.True(t, Checked(box))
	assert.Equal(t, []string{"input", "change"}, events)

	Click(box)
	assert.False(t, Checked(box))
}

func TestClickRadioSelectsWithinGroup(t *testing.T) {
	doc := mustParse(t, `<body><form>
		<input id="r1" type="radio" name="size" checked>
		<input id="r2" type="radio" name="size">
	</form></body>`)
	Click(doc.GetElementByID("r2"))
	assert.False(t, Checked(doc.GetElementByID("r1")))
	assert.True(t, Checked(doc.GetElementByID("r2")))
}

func TestClickSummaryTogglesDetails(t *testing.T) {
	doc := mustParse(t, `<body><details id="d"><summary id="s">More</summary><p>body</p></details></body>`)
	details := doc.GetElementByID("d")
	summary := doc.GetElementByID("s")

	Click(summary)
	assert.True(t, details.HasAttr("open"))
	Click(summary)
	assert.False(t, details.HasAttr("open"))
}

func TestClickSubmitRunsSubmitHook(t *testing.T) {
	doc := mustParse(t, `<body><form id="f"><input type="text" name="q"><button id="go" type="submit">Go</button></form></body>`)
	var submitted *Node
	doc.OnSubmit = func(form, submitter *Node) { submitted = form }

	Click(doc.GetElementByID("go"))
	require.NotNil(t, submitted)
	assert.Equal(t, "f", submitted.ID())
}

func TestSubmitListenerCanCancel(t *testing.T) {
	doc := mustParse(t, `<body><form id="f"><button id="go" type="submit">Go</button></form></body>`)
	hookRan := false
	doc.OnSubmit = func(form, submitter *Node) { hookRan = true }
	doc.GetElementByID("f").AddEventListener("submit", func(e *Event) { e.PreventDefault() })

	Click(doc.GetElementByID("go"))
	assert.False(t, hookRan)
}

func TestSetInnerHTMLDetachesOldChildren(t *testing.T) {
	doc := mustParse(t, `<body><div id="container"><button id="old">Old</button></div></body>`)
	old := doc.GetElementByID("old")
	require.True(t, old.Connected())

	require.NoError(t, SetInnerHTML(doc.GetElementByID("container"), `<button id="new">New</button>`))
	assert.False(t, old.Connected())
	require.NotNil(t, doc.GetElementByID("new"))
	assert.True(t, doc.GetElementByID("new").Connected())
}

func TestEventBubblingAndStop(t *testing.T) {
	doc := mustParse(t, `<body><div id="outer"><button id="inner">x</button></div></body>`)
	var order []string
	doc.GetElementByID("inner").AddEventListener("click", func(*Event) { order = append(order, "inner") })
	doc.GetElementByID("outer").AddEventListener("click", func(*Event) { order = append(order, "outer") })

	doc.GetElementByID("inner").FireBubbling("click")
	assert.Equal(t, []string{"inner", "outer"}, order)

	order = nil
	doc.GetElementByID("inner").AddEventListener("click", func(e *Event) { e.StopPropagation() })
	doc.GetElementByID("inner").FireBubbling("click")
	assert.Equal(t, []string{"inner"}, order)
}

func TestShadowRootTraversal(t *testing.T) {
	doc := mustParse(t, `<body><div id="host"></div></body>`)
	host := doc.GetElementByID("host")
	btn := NewElement("button")
	btn.AppendChild(NewText("Shadow"))
	host.AttachShadow(btn)

	assert.True(t, btn.Connected())
	var tags []string
	doc.Root.Walk(func(n *Node) bool {
		if n.Type == ElementNode {
			tags = append(tags, n.Tag)
		}
		return true
	})
	assert.Contains(t, tags, "button")
}

func TestRoleMapping(t *testing.T) {
	tests := []struct {
		markup string
		id     string
		want   string
	}{
		{`<body><input id="x" type="email"></body>`, "x", "textbox"},
		{`<body><input id="x" type="search"></body>`, "x", "textbox"},
		{`<body><input id="x" type="number"></body>`, "x", "spinbutton"},
		{`<body><input id="x" type="range"></body>`, "x", "slider"},
		{`<body><input id="x" type="image" alt="Go"></body>`, "x", "button"},
		{`<body><input id="x" type="checkbox"></body>`, "x", "checkbox"},
		{`<body><input id="x" type="radio"></body>`, "x", "radio"},
		{`<body><select id="x" multiple></select></body>`, "x", "listbox"},
		{`<body><select id="x"></select></body>`, "x", "combobox"},
		{`<body><fieldset id="x"><legend>G</legend></fieldset></body>`, "x", "group"},
		{`<body><progress id="x" value="3" max="10"></progress></body>`, "x", "progressbar"},
		{`<body><meter id="x" value="0.5"></meter></body>`, "x", "meter"},
		{`<body><output id="x"></output></body>`, "x", "status"},
		{`<body><summary id="x">s</summary></body>`, "x", "button"},
		{`<body><nav id="x"></nav></body>`, "x", "nav"},
		{`<body><main id="x"></main></body>`, "x", "main"},
		{`<body><aside id="x"></aside></body>`, "x", "complementary"},
		{`<body><footer id="x"></footer></body>`, "x", "contentinfo"},
		{`<body><header id="x"></header></body>`, "x", "banner"},
		{`<body><a id="x" href="/y">link</a></body>`, "x", "link"},
		{`<body><a id="x">anchor</a></body>`, "x", ""},
		{`<body><div id="x" role="presentation">p</div></body>`, "x", ""},
		{`<body><div id="x" role="none">p</div></body>`, "x", ""},
		{`<body><div id="x" contenteditable="true"></div></body>`, "x", "textbox"},
		{`<body><input id="x" type="hidden"></body>`, "x", ""},
	}
	for _, tt := range tests {
		doc := mustParse(t, tt.markup)
		n := doc.GetElementByID(tt.id)
		require.NotNil(t, n, tt.markup)
		assert.Equal(t, tt.want, Role(n), tt.markup)
	}
}

func TestInteractive(t *testing.T) {
	doc := mustParse(t, `<body>
		<a id="withHref" href="/x">x</a>
		<a id="bare">x</a>
		<input id="hidden" type="hidden">
		<input id="text" type="text">
		<div id="ariaButton" role="button">x</div>
		<div id="plain">x</div>
		<img id="tabImg" tabindex="0" alt="x">
		<img id="plainImg" alt="x">
		<div id="editable" contenteditable="true"></div>
		<div id="notEditable" contenteditable="false"></div>
		<button id="disabledBtn" disabled>x</button>
	</body>`)

	assert.True(t, Interactive(doc.GetElementByID("withHref")))
	assert.False(t, Interactive(doc.GetElementByID("bare")))
	assert.False(t, Interactive(doc.GetElementByID("hidden")))
	assert.True(t, Interactive(doc.GetElementByID("text")))
	assert.True(t, Interactive(doc.GetElementByID("ariaButton")))
	assert.False(t, Interactive(doc.GetElementByID("plain")))
	assert.True(t, Interactive(doc.GetElementByID("tabImg")))
	assert.False(t, Interactive(doc.GetElementByID("plainImg")))
	assert.True(t, Interactive(doc.GetElementByID("editable")))
	assert.False(t, Interactive(doc.GetElementByID("notEditable")))
	// Disabled elements stay interactive; the executor rejects them.
	assert.True(t, Interactive(doc.GetElementByID("disabledBtn")))
}

func TestCSSPath(t *testing.T) {
	doc := mustParse(t, `<body><div><button id="b">x</button></div><div><span>y</span></div></body>`)
	path := CSSPath(doc.GetElementByID("b"))
	assert.Equal(t, "html > body:nth-child(2) > div:nth-child(1) > button:nth-child(1)", path)
}

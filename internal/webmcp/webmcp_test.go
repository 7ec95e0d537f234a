package webmcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webclaw/internal/dom"
)

func mustDoc(t *testing.T, markup string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(markup, "https://example.test/")
	require.NoError(t, err)
	return doc
}

func TestNativeRegistryWins(t *testing.T) {
	doc := mustDoc(t, `<body><form id="ignored"><input name="q"></form></body>`)
	mc := dom.NewModelContext()
	mc.RegisterTool(dom.ModelContextTool{
		Name:        "add_todo",
		Description: "Add a todo item",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"}}}`),
		Handler: func(args map[string]any) (any, error) {
			return map[string]any{"added": args["title"]}, nil
		},
	})
	doc.ModelContext = mc

	r := NewRegistry()
	tools := r.Discover(doc, 7)
	require.Len(t, tools, 1)
	assert.Equal(t, "add_todo", tools[0].Name)
	assert.Equal(t, SourceNative, tools[0].Source)
	assert.Equal(t, 7, tools[0].TabID)

	result, err := r.Invoke(doc, "add_todo", map[string]any{"title": "milk"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"added": "milk"}, result.(map[string]any))
}

func TestSynthesisFromPageStructure(t *testing.T) {
	doc := mustDoc(t, `<body>
		<form id="search"><input type="text" name="q" required aria-label="Query"><input type="number" name="limit"></form>
		<button id="solo" aria-label="Refresh">Refresh</button>
		<form><button>In form, skipped</button></form>
		<a href="/docs">Documentation</a>
		<a href="#">fragment, skipped</a>
		<a href="javascript:void(0)">script, skipped</a>
		<label for="free">Nickname</label><input id="free" type="text">
	</body>`)

	r := NewRegistry()
	tools := r.Discover(doc, 1)

	bySource := map[string][]Tool{}
	for _, tool := range tools {
		bySource[tool.Source] = append(bySource[tool.Source], tool)
	}

	require.Len(t, bySource[SourceForm], 2)
	search := bySource[SourceForm][0]
	assert.Equal(t, "form_search", search.Name)
	var schema struct {
		Type       string                       `json:"type"`
		Properties map[string]map[string]string `json:"properties"`
		Required   []string                     `json:"required"`
	}
	require.NoError(t, json.Unmarshal(search.InputSchema, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, "string", schema.Properties["q"]["type"])
	assert.Equal(t, "number", schema.Properties["limit"]["type"])
	assert.Equal(t, []string{"q"}, schema.Required)

	require.Len(t, bySource[SourceButton], 1)
	assert.Equal(t, "button_refresh", bySource[SourceButton][0].Name)

	require.Len(t, bySource[SourceLink], 1)
	assert.Equal(t, "link_documentation", bySource[SourceLink][0].Name)

	require.Len(t, bySource[SourceInput], 1)
	assert.Equal(t, "input_nickname", bySource[SourceInput][0].Name)
}

func TestInvokeSynthesizedForm(t *testing.T) {
	doc := mustDoc(t, `<body><form id="login">
		<input type="text" name="user">
		<input type="checkbox" name="remember">
		<select name="realm"><option value="a">A</option><option value="b">B</option></select>
	</form></body>`)

	var submitted bool
	doc.OnSubmit = func(form, submitter *dom.Node) { submitted = true }

	r := NewRegistry()
	r.Discover(doc, 1)
	result, err := r.Invoke(doc, "form_login", map[string]any{
		"user":     "ada",
		"remember": true,
		"realm":    "b",
	})
	require.NoError(t, err)
	assert.True(t, submitted)

	assert.Equal(t, "ada", dom.Value(doc.Find(func(n *dom.Node) bool { return n.AttrValue("name") == "user" })))
	assert.True(t, dom.Checked(doc.Find(func(n *dom.Node) bool { return n.AttrValue("name") == "remember" })))
	assert.Equal(t, "B", dom.Value(doc.Find(func(n *dom.Node) bool { return n.AttrValue("name") == "realm" })))

	payload := result.(map[string]any)
	assert.Equal(t, true, payload["submitted"])
}

func TestInvokeSynthesizedButtonAndInput(t *testing.T) {
	doc := mustDoc(t, `<body>
		<button id="solo" aria-label="Refresh">Refresh</button>
		<label for="nick">Nickname</label><input id="nick" type="text">
	</body>`)
	var clicked bool
	doc.GetElementByID("solo").AddEventListener("click", func(*dom.Event) { clicked = true })

	r := NewRegistry()
	r.Discover(doc, 1)

	_, err := r.Invoke(doc, "button_refresh", nil)
	require.NoError(t, err)
	assert.True(t, clicked)

	_, err = r.Invoke(doc, "input_nickname", map[string]any{"value": "grace"})
	require.NoError(t, err)
	assert.Equal(t, "grace", dom.Value(doc.GetElementByID("nick")))
}

func TestInvokeUnknownTool(t *testing.T) {
	doc := mustDoc(t, `<body></body>`)
	r := NewRegistry()
	r.Discover(doc, 1)
	_, err := r.Invoke(doc, "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestInvokeDetachedElement(t *testing.T) {
	doc := mustDoc(t, `<body><div id="wrap"><button id="solo" aria-label="Go">Go</button></div></body>`)
	r := NewRegistry()
	r.Discover(doc, 1)
	require.NoError(t, dom.SetInnerHTML(doc.GetElementByID("wrap"), `<p>gone</p>`))

	_, err := r.Invoke(doc, "button_go", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer attached")
}

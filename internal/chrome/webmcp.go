package chrome

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod/lib/proto"

	"webclaw/internal/dom"
	"webclaw/internal/webmcp"
)

// pageBridgeJS installs the main-world responder for the page-bridge channel
// and performs one discovery round trip. It resolves with the page's native
// tool list, or null after the discovery timeout.
const pageBridgeJS = `() => new Promise((resolve) => {
	const channel = 'webclaw-page-bridge';
	const reqId = Math.random().toString(36).slice(2);

	if (!window.__webclawBridgeResponder) {
		window.__webclawBridgeResponder = true;
		window.addEventListener('message', (ev) => {
			const m = ev.data;
			if (!m || m.channel !== channel) return;
			const mc = navigator.modelContext;
			if (m.type === 'discover-webmcp-tools') {
				let tools = null;
				try {
					if (mc && typeof mc.listTools === 'function') tools = mc.listTools();
					else if (mc && Array.isArray(mc.tools)) tools = mc.tools;
				} catch (e) { tools = null; }
				window.postMessage({
					channel, type: 'webmcp-tools-result', id: m.id,
					tools: tools && tools.map(t => ({
						name: t.name,
						description: t.description || '',
						inputSchema: t.inputSchema || null
					}))
				}, '*');
			} else if (m.type === 'invoke') {
				const reply = (result, error) => window.postMessage(
					{channel, type: 'invoke-result', id: m.id, result, error}, '*');
				try {
					let tool = null;
					if (mc && typeof mc.listTools === 'function') {
						tool = mc.listTools().find(t => t.name === m.name);
					} else if (mc && Array.isArray(mc.tools)) {
						tool = mc.tools.find(t => t.name === m.name);
					}
					if (!tool) { reply(null, 'tool not found: ' + m.name); return; }
					const run = tool.execute || tool.handler || tool.run;
					Promise.resolve(run.call(tool, m.args || {}))
						.then(r => reply(r === undefined ? null : r, null))
						.catch(e => reply(null, String(e)));
				} catch (e) { reply(null, String(e)); }
			}
		});
	}

	const timer = setTimeout(() => { cleanup(); resolve(null); }, 3000);
	const onResult = (ev) => {
		const m = ev.data;
		if (!m || m.channel !== channel || m.type !== 'webmcp-tools-result' || m.id !== reqId) return;
		cleanup();
		resolve(m.tools);
	};
	const cleanup = () => {
		clearTimeout(timer);
		window.removeEventListener('message', onResult);
	};
	window.addEventListener('message', onResult);
	window.postMessage({channel, type: 'discover-webmcp-tools', id: reqId}, '*');
})`

// invokeJS performs one invoke round trip over the page-bridge channel.
const invokeJS = `(name, args) => new Promise((resolve, reject) => {
	const channel = 'webclaw-page-bridge';
	const reqId = Math.random().toString(36).slice(2);
	const timer = setTimeout(() => { cleanup(); reject(new Error('invoke timed out')); }, 25000);
	const onResult = (ev) => {
		const m = ev.data;
		if (!m || m.channel !== channel || m.type !== 'invoke-result' || m.id !== reqId) return;
		cleanup();
		if (m.error) reject(new Error(m.error));
		else resolve(m.result);
	};
	const cleanup = () => {
		clearTimeout(timer);
		window.removeEventListener('message', onResult);
	};
	window.addEventListener('message', onResult);
	window.postMessage({channel, type: 'invoke', id: reqId, name, args}, '*');
})`

type nativeTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// WebMCPTools probes the page main world over the page-bridge channel and
// falls back to synthesis from the parsed mirror when no native registry
// answers.
func (t *Tab) WebMCPTools(ctx context.Context) ([]webmcp.Tool, error) {
	res, err := t.page.Context(ctx).Eval(pageBridgeJS)
	if err != nil {
		return nil, fmt.Errorf("page bridge probe: %w", err)
	}

	if !res.Value.Nil() {
		raw, marshalErr := res.Value.MarshalJSON()
		if marshalErr == nil {
			var natives []nativeTool
			if json.Unmarshal(raw, &natives) == nil && natives != nil {
				tools := make([]webmcp.Tool, len(natives))
				for i, n := range natives {
					tools[i] = webmcp.Tool{
						Name:        n.Name,
						Description: n.Description,
						InputSchema: n.InputSchema,
						Source:      webmcp.SourceNative,
						TabID:       t.id,
					}
				}
				return tools, nil
			}
		}
	}

	doc, err := t.mirror()
	if err != nil {
		return nil, err
	}
	return t.registry.Discover(doc, t.id), nil
}

// InvokeWebMCPTool runs a native tool through the channel, or replays a
// synthesized tool's interaction on the live page.
func (t *Tab) InvokeWebMCPTool(ctx context.Context, name string, args map[string]any) (any, error) {
	native, err := t.hasNativeRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if native {
		res, evalErr := t.page.Context(ctx).Eval(invokeJS, name, args)
		if evalErr != nil {
			return nil, fmt.Errorf("invoke %s: %w", name, evalErr)
		}
		raw, marshalErr := res.Value.MarshalJSON()
		if marshalErr != nil {
			return nil, fmt.Errorf("decode %s result: %w", name, marshalErr)
		}
		var value any
		_ = json.Unmarshal(raw, &value)
		return value, nil
	}

	doc, err := t.mirror()
	if err != nil {
		return nil, err
	}
	node, source, ok := webmcp.SynthesizedTarget(doc, t.id, name)
	if !ok {
		return nil, fmt.Errorf("webmcp tool %q not found; list tools first", name)
	}
	return t.invokeSynthesized(node, source, args)
}

func (t *Tab) hasNativeRegistry(ctx context.Context) (bool, error) {
	res, err := t.page.Context(ctx).Eval(`() => !!navigator.modelContext`)
	if err != nil {
		return false, fmt.Errorf("probe modelContext: %w", err)
	}
	return res.Value.Bool(), nil
}

// invokeSynthesized replays the synthesized interaction against the live
// element located by the mirror node's structural path.
func (t *Tab) invokeSynthesized(node *dom.Node, source string, args map[string]any) (any, error) {
	path := dom.CSSPath(node)
	if path == "" {
		return nil, fmt.Errorf("cannot locate element for synthesized tool")
	}
	el, err := t.page.Element(path)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", path, err)
	}

	switch source {
	case webmcp.SourceForm:
		if _, err := el.Eval(`(values) => {
			const form = this;
			for (const [name, value] of Object.entries(values)) {
				const field = form.elements[name];
				if (!field) continue;
				if (field.type === 'checkbox') field.checked = value === true || value === 'true' || value === 'on';
				else field.value = String(value);
				field.dispatchEvent(new Event('input', {bubbles: true}));
				field.dispatchEvent(new Event('change', {bubbles: true}));
			}
			if (typeof form.requestSubmit === 'function') form.requestSubmit();
			else form.submit();
		}`, args); err != nil {
			return nil, fmt.Errorf("submit form: %w", err)
		}
		return map[string]any{"submitted": true}, nil
	case webmcp.SourceButton:
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return nil, fmt.Errorf("click button: %w", err)
		}
		return map[string]any{"clicked": true}, nil
	case webmcp.SourceLink:
		href := node.AttrValue("href")
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return nil, fmt.Errorf("follow link: %w", err)
		}
		return map[string]any{"navigated": href}, nil
	case webmcp.SourceInput:
		value := fmt.Sprintf("%v", args["value"])
		if _, err := el.Eval(`(v) => {
			this.value = v;
			this.dispatchEvent(new Event('input', {bubbles: true}));
			this.dispatchEvent(new Event('change', {bubbles: true}));
		}`, value); err != nil {
			return nil, fmt.Errorf("set input: %w", err)
		}
		return map[string]any{"value": value}, nil
	}
	return nil, fmt.Errorf("unknown synthesized source %q", source)
}

// mirror returns the parsed document mirror, serializing the page if no
// snapshot has been taken yet.
func (t *Tab) mirror() (*dom.Document, error) {
	if doc := t.document(); doc != nil {
		return doc, nil
	}
	html, err := t.page.HTML()
	if err != nil {
		return nil, fmt.Errorf("serialize page: %w", err)
	}
	u, title := t.Location()
	doc, err := dom.ParseString(html, u)
	if err != nil {
		return nil, err
	}
	doc.Title = title
	t.mu.Lock()
	t.doc = doc
	t.mu.Unlock()
	return doc, nil
}

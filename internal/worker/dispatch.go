package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/samber/lo"

	"webclaw/internal/action"
	"webclaw/internal/bridge"
	"webclaw/internal/page"
	"webclaw/internal/snapshot"
	"webclaw/internal/webmcp"
)

// DefaultNavigationTimeout bounds navigation-family operations when the
// request carries no explicit timeout.
const DefaultNavigationTimeout = 30 * time.Second

// ackMethods are long-running operations that get an advisory ack on receipt.
var ackMethods = map[bridge.Method]struct{}{
	bridge.MethodNavigate:         {},
	bridge.MethodScreenshot:       {},
	bridge.MethodDropFiles:        {},
	bridge.MethodInvokeWebMCPTool: {},
}

// Worker multiplexes bridge requests onto the tab registry.
type Worker struct {
	tabs *Registry
}

// New builds a worker over a tab backend factory.
func New(factory Factory) *Worker {
	return &Worker{tabs: NewRegistry(factory)}
}

// Tabs exposes the registry, mainly to tests and the worker binary.
func (w *Worker) Tabs() *Registry { return w.tabs }

// Handle processes one envelope and returns everything to send back: an
// advisory ack first for long operations, then the response or error.
// Non-request envelopes are ignored. A panicking handler is reported as
// HANDLER_ERROR rather than tearing the worker down.
func (w *Worker) Handle(ctx context.Context, msg bridge.Message) (out []bridge.Message) {
	if msg.Type != bridge.TypeRequest {
		return nil
	}
	if !msg.Method.Known() {
		return []bridge.Message{bridge.NewErrorMessage(msg, bridge.CodeUnknownMethod,
			fmt.Sprintf("unknown bridge method %q", msg.Method))}
	}
	if _, ack := ackMethods[msg.Method]; ack {
		out = append(out, bridge.NewAck(msg))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("handler panic on %s: %v", msg.Method, r)
			out = append(out, bridge.NewErrorMessage(msg, bridge.CodeHandlerError,
				fmt.Sprintf("handler panic: %v", r)))
		}
	}()

	reply := w.dispatch(ctx, msg)
	return append(out, reply)
}

func (w *Worker) dispatch(ctx context.Context, msg bridge.Message) bridge.Message {
	switch msg.Method {
	case bridge.MethodPing:
		return respond(msg, bridge.PingResult{OK: true})
	case bridge.MethodNewTab:
		return w.newTab(ctx, msg)
	case bridge.MethodListTabs:
		return w.listTabs(msg)
	case bridge.MethodSwitchTab:
		return w.switchTab(msg)
	case bridge.MethodCloseTab:
		return w.closeTab(msg)
	}

	// Everything else targets a specific tab.
	var scope bridge.TabRef
	if err := msg.DecodePayload(&scope); err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("decode payload: %v", err))
	}
	tab, errMsg := w.resolveTab(msg, scope)
	if errMsg != nil {
		return *errMsg
	}

	switch msg.Method {
	case bridge.MethodNavigate, bridge.MethodGoBack, bridge.MethodGoForward,
		bridge.MethodReload, bridge.MethodWaitForNavigation:
		return w.navigation(ctx, msg, tab)
	case bridge.MethodSnapshot:
		return w.snapshot(msg, tab)
	case bridge.MethodClick, bridge.MethodHover, bridge.MethodTypeText,
		bridge.MethodSelectOption, bridge.MethodDropFiles:
		return w.elementAction(msg, tab)
	case bridge.MethodScrollPage:
		return w.scrollPage(msg, tab)
	case bridge.MethodScreenshot:
		return w.screenshot(ctx, msg, tab)
	case bridge.MethodListWebMCPTools:
		return w.listWebMCPTools(ctx, msg, tab)
	case bridge.MethodInvokeWebMCPTool:
		return w.invokeWebMCPTool(ctx, msg, tab)
	}
	return bridge.NewErrorMessage(msg, bridge.CodeUnknownMethod,
		fmt.Sprintf("unhandled bridge method %q", msg.Method))
}

// resolveTab applies the routing rule: explicit tabId, else the active tab,
// else NO_ACTIVE_TAB. A named tab that does not exist is TAB_NOT_FOUND.
func (w *Worker) resolveTab(msg bridge.Message, scope bridge.TabRef) (Tab, *bridge.Message) {
	if id, ok := scope.Tab(); ok {
		tab, found := w.tabs.Get(id)
		if !found {
			e := bridge.NewErrorMessage(msg, bridge.CodeTabNotFound, fmt.Sprintf("tab %d does not exist", id))
			return nil, &e
		}
		return tab, nil
	}
	tab, found := w.tabs.Active()
	if !found {
		e := bridge.NewErrorMessage(msg, bridge.CodeNoActiveTab, "no tab is open or active")
		return nil, &e
	}
	return tab, nil
}

func (w *Worker) newTab(ctx context.Context, msg bridge.Message) bridge.Message {
	var req bridge.NewTabRequest
	if err := msg.DecodePayload(&req); err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("decode payload: %v", err))
	}
	tab := w.tabs.Open()
	url, title := tab.Location()
	if req.URL != "" {
		navURL, navTitle, err := tab.Navigate(ctx, req.URL, DefaultNavigationTimeout)
		if err != nil {
			return navigationError(msg, err)
		}
		url, title = navURL, navTitle
	}
	return respond(msg, bridge.NavigateResult{URL: url, Title: title, TabID: tab.ID()})
}

func (w *Worker) listTabs(msg bridge.Message) bridge.Message {
	tabs, active := w.tabs.List()
	result := bridge.ListTabsResult{Tabs: make([]bridge.TabInfo, 0, len(tabs))}
	for _, t := range tabs {
		url, title := t.Location()
		result.Tabs = append(result.Tabs, bridge.TabInfo{
			ID:     t.ID(),
			URL:    url,
			Title:  title,
			Active: t.ID() == active,
		})
	}
	return respond(msg, result)
}

func (w *Worker) switchTab(msg bridge.Message) bridge.Message {
	var req bridge.TabTargetRequest
	if err := msg.DecodePayload(&req); err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("decode payload: %v", err))
	}
	if !w.tabs.SetActive(req.TabID) {
		return bridge.NewErrorMessage(msg, bridge.CodeTabNotFound, fmt.Sprintf("tab %d does not exist", req.TabID))
	}
	tab, _ := w.tabs.Get(req.TabID)
	url, title := tab.Location()
	return respond(msg, bridge.NavigateResult{URL: url, Title: title, TabID: req.TabID})
}

func (w *Worker) closeTab(msg bridge.Message) bridge.Message {
	var req bridge.TabTargetRequest
	if err := msg.DecodePayload(&req); err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("decode payload: %v", err))
	}
	if !w.tabs.Close(req.TabID) {
		return bridge.NewErrorMessage(msg, bridge.CodeTabNotFound, fmt.Sprintf("tab %d does not exist", req.TabID))
	}
	return respond(msg, map[string]any{"closed": req.TabID})
}

func (w *Worker) navigation(ctx context.Context, msg bridge.Message, tab Tab) bridge.Message {
	var req bridge.NavigateRequest
	if err := msg.DecodePayload(&req); err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("decode payload: %v", err))
	}
	timeout := DefaultNavigationTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	var (
		url, title string
		err        error
	)
	switch msg.Method {
	case bridge.MethodNavigate:
		url, title, err = tab.Navigate(ctx, req.URL, timeout)
	case bridge.MethodGoBack:
		url, title, err = tab.GoBack(ctx, timeout)
	case bridge.MethodGoForward:
		url, title, err = tab.GoForward(ctx, timeout)
	case bridge.MethodReload:
		url, title, err = tab.Reload(ctx, req.BypassCache, timeout)
	case bridge.MethodWaitForNavigation:
		url, title, err = tab.WaitReady(ctx, timeout)
	}
	if err != nil {
		return navigationError(msg, err)
	}
	return respond(msg, bridge.NavigateResult{URL: url, Title: title, TabID: tab.ID()})
}

func navigationError(msg bridge.Message, err error) bridge.Message {
	if errors.Is(err, context.DeadlineExceeded) {
		return bridge.NewErrorMessage(msg, bridge.CodeNavigationTimeout,
			"page did not reach ready state in time")
	}
	return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, err.Error())
}

func (w *Worker) snapshot(msg bridge.Message, tab Tab) bridge.Message {
	var req bridge.SnapshotRequest
	if err := msg.DecodePayload(&req); err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("decode payload: %v", err))
	}
	result, err := tab.Snapshot(snapshot.Options{MaxTokens: req.MaxTokens, FocusRegion: req.FocusRegion})
	if err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, err.Error())
	}
	return respond(msg, bridge.SnapshotResult{
		Text:       result.Text,
		SnapshotID: result.SnapshotID,
		URL:        result.URL,
		Title:      result.Title,
	})
}

func (w *Worker) elementAction(msg bridge.Message, tab Tab) bridge.Message {
	var req bridge.ActionRequest
	if err := msg.DecodePayload(&req); err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("decode payload: %v", err))
	}

	var result action.Result
	switch msg.Method {
	case bridge.MethodClick:
		result = tab.Click(req.SnapshotID, req.Ref)
	case bridge.MethodHover:
		result = tab.Hover(req.SnapshotID, req.Ref)
	case bridge.MethodTypeText:
		clearFirst := true
		if req.ClearFirst != nil {
			clearFirst = *req.ClearFirst
		}
		result = tab.TypeText(req.SnapshotID, req.Ref, req.Text, clearFirst)
	case bridge.MethodSelectOption:
		result = tab.SelectOption(req.SnapshotID, req.Ref, req.Value)
	case bridge.MethodDropFiles:
		files := lo.Map(req.Files, func(f bridge.FileStub, _ int) action.FileEntry {
			return action.FileEntry{Name: f.Name, MimeType: f.MimeType, Base64Data: f.Base64Data}
		})
		result = tab.DropFiles(req.SnapshotID, req.Ref, files)
	}
	return respond(msg, bridge.ActionResult{Success: result.Success, Error: result.Error})
}

func (w *Worker) scrollPage(msg bridge.Message, tab Tab) bridge.Message {
	var req bridge.ScrollRequest
	if err := msg.DecodePayload(&req); err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("decode payload: %v", err))
	}
	result := tab.ScrollPage(req.Direction, req.Amount, req.Ref, req.SnapshotID)
	return respond(msg, bridge.ActionResult{Success: result.Success, Error: result.Error})
}

func (w *Worker) screenshot(ctx context.Context, msg bridge.Message, tab Tab) bridge.Message {
	data, mimeType, err := tab.Screenshot(ctx)
	if err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeScreenshotFailed, err.Error())
	}
	return respond(msg, bridge.ScreenshotResult{
		Data:     base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	})
}

func (w *Worker) listWebMCPTools(ctx context.Context, msg bridge.Message, tab Tab) bridge.Message {
	tools, err := tab.WebMCPTools(ctx)
	if err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeContentScriptError, err.Error())
	}
	result := bridge.WebMCPToolsResult{
		Tools: lo.Map(tools, func(t webmcp.Tool, _ int) bridge.WebMCPTool {
			return bridge.WebMCPTool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
				Source:      t.Source,
				TabID:       t.TabID,
				ElementRef:  t.ElementRef,
			}
		}),
	}
	return respond(msg, result)
}

func (w *Worker) invokeWebMCPTool(ctx context.Context, msg bridge.Message, tab Tab) bridge.Message {
	var req bridge.InvokeWebMCPToolRequest
	if err := msg.DecodePayload(&req); err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("decode payload: %v", err))
	}
	value, err := tab.InvokeWebMCPTool(ctx, req.ToolName, req.Args)
	if err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, err.Error())
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, fmt.Sprintf("encode tool result: %v", err))
	}
	return respond(msg, bridge.InvokeWebMCPToolResult{Result: raw})
}

func respond(msg bridge.Message, payload any) bridge.Message {
	reply, err := bridge.NewResponse(msg, payload)
	if err != nil {
		return bridge.NewErrorMessage(msg, bridge.CodeHandlerError, err.Error())
	}
	return reply
}

// NewPageWorker is the default wiring: a worker whose tabs are in-process
// page models.
func NewPageWorker() *Worker {
	return New(func(id int) Tab { return page.New(id) })
}

package script

import (
	"fmt"
	"net/http"
	"net/url"

	lua "github.com/yuin/gopher-lua"
)

// Request is the request view handed to Lua code. The dispatcher fills it
// from the HTTP request after route matching.
type Request struct {
	Method string
	Path   string
	Params map[string]string
	Query  url.Values
	Header http.Header
}

// Response collects what a script produced: either an explicit
// req.respond(status, body, headers) call, or a returned string body.
type Response struct {
	Status  int
	Body    []byte
	Header  map[string]string
	Written bool
}

// Call invokes a function-export module with the request. Returns the
// collected response, which holds a returned string body when the script
// never called respond.
func (m *Module) Call(req *Request) (*Response, error) {
	if m.Export.Kind != ExportFunc {
		return nil, fmt.Errorf("script: %s does not export a function", m.Ref)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resp := newResponse()
	t := requestTable(m.ls, req, resp)
	if err := m.ls.CallByParam(lua.P{Fn: m.Export.fn, NRet: 1, Protect: true}, t); err != nil {
		return nil, luaError(err)
	}
	ret := m.ls.Get(-1)
	m.ls.Pop(1)

	if !resp.Written {
		if s, ok := ret.(lua.LString); ok {
			resp.Body = []byte(s)
		}
	}
	return resp, nil
}

// Render invokes a renderable-export module and returns the produced
// markup.
func (m *Module) Render(req *Request) (string, error) {
	if m.Export.Kind != ExportRenderable {
		return "", fmt.Errorf("script: %s is not renderable", m.Ref)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := requestTable(m.ls, req, newResponse())
	if err := m.ls.CallByParam(lua.P{Fn: m.Export.fn, NRet: 1, Protect: true}, t); err != nil {
		return "", luaError(err)
	}
	ret := m.ls.Get(-1)
	m.ls.Pop(1)

	s, ok := ret.(lua.LString)
	if !ok {
		return "", fmt.Errorf("script: %s render returned %s, want string", m.Ref, ret.Type())
	}
	return string(s), nil
}

// CallHook invokes a hook module with the request and a next function.
// The hook short-circuits by not calling next; an error returned by next
// is reported in preference to the Lua error it surfaces as.
func (m *Module) CallHook(req *Request, next func() error) (*Response, error) {
	if m.Export.Kind != ExportFunc {
		return nil, fmt.Errorf("script: hook %s does not export a function", m.Ref)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resp := newResponse()
	t := requestTable(m.ls, req, resp)

	var nextErr error
	nextFn := m.ls.NewFunction(func(L *lua.LState) int {
		if err := next(); err != nil {
			nextErr = err
			L.RaiseError("%s", err.Error())
		}
		return 0
	})

	err := m.ls.CallByParam(lua.P{Fn: m.Export.fn, NRet: 0, Protect: true}, t, nextFn)
	if nextErr != nil {
		return nil, nextErr
	}
	if err != nil {
		return nil, luaError(err)
	}
	return resp, nil
}

// CallError invokes an error handler module with the request and an error
// table carrying the derived status and message.
func (m *Module) CallError(req *Request, status int, message string) (*Response, error) {
	if m.Export.Kind != ExportFunc {
		return nil, fmt.Errorf("script: error handler %s does not export a function", m.Ref)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resp := newResponse()
	resp.Status = status
	t := requestTable(m.ls, req, resp)

	errTable := m.ls.NewTable()
	errTable.RawSetString("status", lua.LNumber(status))
	errTable.RawSetString("message", lua.LString(message))

	if err := m.ls.CallByParam(lua.P{Fn: m.Export.fn, NRet: 1, Protect: true}, t, errTable); err != nil {
		return nil, luaError(err)
	}
	ret := m.ls.Get(-1)
	m.ls.Pop(1)

	if !resp.Written {
		if s, ok := ret.(lua.LString); ok {
			resp.Body = []byte(s)
		}
	}
	return resp, nil
}

func newResponse() *Response {
	return &Response{Status: http.StatusOK, Header: make(map[string]string)}
}

// requestTable builds the Lua view of a request. Mutations flow into resp
// through the respond closure.
func requestTable(L *lua.LState, req *Request, resp *Response) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("method", lua.LString(req.Method))
	t.RawSetString("path", lua.LString(req.Path))

	params := L.NewTable()
	for k, v := range req.Params {
		params.RawSetString(k, lua.LString(v))
	}
	t.RawSetString("params", params)

	query := L.NewTable()
	for k, vs := range req.Query {
		if len(vs) > 0 {
			query.RawSetString(k, lua.LString(vs[0]))
		}
	}
	t.RawSetString("query", query)

	t.RawSetString("header", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(lua.LString(req.Header.Get(name)))
		return 1
	}))

	t.RawSetString("respond", L.NewFunction(func(L *lua.LState) int {
		resp.Status = L.CheckInt(1)
		resp.Body = []byte(L.OptString(2, ""))
		if h, ok := L.Get(3).(*lua.LTable); ok {
			h.ForEach(func(k, v lua.LValue) {
				resp.Header[k.String()] = v.String()
			})
		}
		resp.Written = true
		return 0
	}))

	return t
}

// luaError converts a protected-call failure into a Go error. A raised
// {status=..., message=...} table becomes a StatusError so the dispatcher
// can honor the declared status.
func luaError(err error) error {
	ae, ok := err.(*lua.ApiError)
	if !ok {
		return err
	}
	if t, ok := ae.Object.(*lua.LTable); ok {
		status, isNum := t.RawGetString("status").(lua.LNumber)
		if isNum {
			msg := ""
			if s, ok := t.RawGetString("message").(lua.LString); ok {
				msg = string(s)
			}
			return &StatusError{Status: int(status), Message: msg}
		}
	}
	return fmt.Errorf("script: %s", ae.Object.String())
}

package provider

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/aarzilli/golua/lua"
	"github.com/sirupsen/logrus"
	"github.com/srg/previewsim/internal/invoke"
)

// ScriptError reports a Lua chunk that failed to load or run
type ScriptError struct {
	API     string
	Type    string // "syntax" or "runtime"
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("lua %s error in %s: %s", e.Type, e.API, e.Message)
}

// Is allows errors.Is to compare ScriptError values by Type
func (e *ScriptError) Is(target error) bool {
	t, ok := target.(*ScriptError)
	if !ok {
		return false
	}
	return t.Type == "" || t.Type == e.Type
}

// Script produces payloads by running a Lua chunk per API.
//
// Each chunk sees the call parameters as the global table `args` (1-based)
// and the API name as `api`; its first return value becomes the payload.
// A chunk that calls error() yields a failed Result.
type Script struct {
	mu      sync.Mutex
	state   *lua.State
	scripts map[string]string
	logger  *logrus.Logger
}

// NewScript creates a provider with a fresh Lua state
func NewScript(logger *logrus.Logger) *Script {
	if logger == nil {
		logger = logrus.New()
	}
	state := lua.NewState()
	state.OpenLibs()
	return &Script{
		state:   state,
		scripts: make(map[string]string),
		logger:  logger,
	}
}

// Define compiles chunk and binds it to api
func (s *Script) Define(api, chunk string) error {
	if chunk == "" {
		return &ScriptError{API: api, Type: "syntax", Message: "empty script"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return &ScriptError{API: api, Type: "runtime", Message: "script provider closed"}
	}

	if status := s.state.LoadString(chunk); status != 0 {
		msg := s.popMessage()
		return &ScriptError{API: api, Type: "syntax", Message: msg}
	}
	s.state.Pop(1)

	s.scripts[api] = chunk
	s.logger.WithField("api", api).Debug("Lua payload script defined")
	return nil
}

// DefineFile reads a chunk from filename and binds it to api
func (s *Script) DefineFile(api, filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", filename, err)
	}
	return s.Define(api, string(content))
}

// APIs returns the APIs with a script, sorted
func (s *Script) APIs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	apis := make([]string, 0, len(s.scripts))
	for api := range s.scripts {
		apis = append(apis, api)
	}
	sort.Strings(apis)
	return apis
}

// Produce implements Provider
func (s *Script) Produce(api string, args []any) invoke.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.scripts[api]
	if !ok || s.state == nil {
		return invoke.Failure(unknown(api))
	}

	L := s.state
	top := L.GetTop()
	defer L.SetTop(top)

	pushValue(L, args)
	L.SetGlobal("args")
	L.PushString(api)
	L.SetGlobal("api")

	if err := L.DoString(chunk); err != nil {
		s.logger.WithFields(logrus.Fields{
			"api":   api,
			"error": err,
		}).Warn("Lua payload script failed")
		return invoke.Failure(&ScriptError{API: api, Type: "runtime", Message: err.Error()})
	}

	if L.GetTop() == top {
		return invoke.Success(nil)
	}
	value, err := newConverter(L).value(top+1, 0)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"api":   api,
			"error": err,
		}).Warn("Lua payload script returned an unconvertible value")
		return invoke.Failure(&ScriptError{API: api, Type: "runtime", Message: err.Error()})
	}
	return invoke.Success(value)
}

// Close releases the Lua state
func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		s.state.Close()
		s.state = nil
	}
}

func (s *Script) popMessage() string {
	if s.state.GetTop() == 0 {
		return "unknown Lua error"
	}
	msg := "non-string error object"
	if s.state.IsString(-1) {
		msg = s.state.ToString(-1)
	}
	s.state.Pop(1)
	return msg
}

// pushValue pushes a Go value onto the Lua stack.
// Unsupported types are pushed as their fmt representation.
func pushValue(L *lua.State, v any) {
	switch val := v.(type) {
	case nil:
		L.PushNil()
	case string:
		L.PushString(val)
	case bool:
		L.PushBoolean(val)
	case int:
		L.PushInteger(int64(val))
	case int32:
		L.PushInteger(int64(val))
	case int64:
		L.PushInteger(val)
	case uint8:
		L.PushInteger(int64(val))
	case float32:
		L.PushNumber(float64(val))
	case float64:
		L.PushNumber(val)
	case []any:
		L.NewTable()
		for i, item := range val {
			L.PushInteger(int64(i + 1))
			pushValue(L, item)
			L.SetTable(-3)
		}
	case map[string]any:
		L.NewTable()
		for k, item := range val {
			L.PushString(k)
			pushValue(L, item)
			L.SetTable(-3)
		}
	default:
		L.PushString(fmt.Sprintf("%v", val))
	}
}

// MaxTableDepth bounds table nesting in script results
const MaxTableDepth = 64

var errCyclicTable = errors.New("cyclic or too deep table")

// converter turns Lua values into Go values, tracking the tables on the
// current path so self-references fail instead of recursing forever
type converter struct {
	L    *lua.State
	path map[uintptr]struct{}
}

func newConverter(L *lua.State) *converter {
	return &converter{L: L, path: make(map[uintptr]struct{})}
}

// value converts the Lua value at idx.
// Tables with keys 1..n become []any, other tables map[string]any.
// Whole numbers become int64.
func (c *converter) value(idx, depth int) (any, error) {
	L := c.L
	if idx < 0 {
		idx = L.GetTop() + idx + 1
	}

	switch L.Type(idx) {
	case lua.LUA_TNIL:
		return nil, nil
	case lua.LUA_TBOOLEAN:
		return L.ToBoolean(idx), nil
	case lua.LUA_TNUMBER:
		n := L.ToNumber(idx)
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), nil
		}
		return n, nil
	case lua.LUA_TSTRING:
		return L.ToString(idx), nil
	case lua.LUA_TTABLE:
		return c.table(idx, depth+1)
	default:
		return L.Typename(int(L.Type(idx))), nil
	}
}

func (c *converter) table(idx, depth int) (any, error) {
	L := c.L
	if depth > MaxTableDepth {
		return nil, fmt.Errorf("%w: nesting exceeds %d", errCyclicTable, MaxTableDepth)
	}
	ptr := L.ToPointer(idx)
	if _, seen := c.path[ptr]; seen {
		return nil, fmt.Errorf("%w: table refers to itself", errCyclicTable)
	}
	// key, value and the next nested key
	if !L.CheckStack(3) {
		return nil, fmt.Errorf("%w: Lua stack exhausted", errCyclicTable)
	}
	c.path[ptr] = struct{}{}
	defer delete(c.path, ptr)

	entries := make(map[any]any)
	maxIndex := int64(0)
	sequence := true

	L.PushNil()
	for L.Next(idx) != 0 {
		var key any
		switch L.Type(-2) {
		case lua.LUA_TNUMBER:
			n := L.ToNumber(-2)
			if n == math.Trunc(n) && n >= 1 {
				key = int64(n)
				if int64(n) > maxIndex {
					maxIndex = int64(n)
				}
			} else {
				key = fmt.Sprintf("%v", n)
				sequence = false
			}
		case lua.LUA_TSTRING:
			key = L.ToString(-2)
			sequence = false
		default:
			key = L.Typename(int(L.Type(-2)))
			sequence = false
		}
		v, err := c.value(L.GetTop(), depth)
		if err != nil {
			L.Pop(2) // value and key
			return nil, err
		}
		entries[key] = v
		L.Pop(1) // keep key for next iteration
	}

	if sequence && int64(len(entries)) == maxIndex {
		list := make([]any, maxIndex)
		for i := int64(1); i <= maxIndex; i++ {
			list[i-1] = entries[i]
		}
		return list, nil
	}

	m := make(map[string]any, len(entries))
	for k, v := range entries {
		m[fmt.Sprintf("%v", k)] = v
	}
	return m, nil
}

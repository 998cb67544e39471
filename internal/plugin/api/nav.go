// Package api implements the Go modules exposed to navigation scripts.
package api

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/navhistory/internal/navigation"
)

// Navigator is the navigation surface scripts can drive.
// Back and Forward return navigation.ErrNoHistory when there is no entry
// to move to; back() and forward() then return nil.
type Navigator interface {
	Back() (navigation.Location, error)
	Forward() (navigation.Location, error)
	Current() (navigation.Location, bool)
	HasNext() bool
	HasPrevious() bool
	Entries() []navigation.Location
	Index() int
	Forget(path string) int
	KeepErr(keep func(navigation.Location) (bool, error)) (int, error)
}

// NavModule implements the _nav API module.
//
// Locations are passed to Lua as tables with path, line, column and open
// fields. Lines and columns are 0-indexed; index() is 1-indexed and
// returns 0 for an empty history.
type NavModule struct {
	nav Navigator

	// Set while a keep() predicate runs; the navigator is locked then
	busy bool
}

// NewNavModule creates a new navigation module.
func NewNavModule(nav Navigator) *NavModule {
	return &NavModule{nav: nav}
}

// Name returns the module name.
func (m *NavModule) Name() string {
	return "nav"
}

// Register registers the module into the Lua state.
func (m *NavModule) Register(L *lua.LState) error {
	mod := L.NewTable()

	L.SetField(mod, "back", L.NewFunction(m.guard(m.back)))
	L.SetField(mod, "forward", L.NewFunction(m.guard(m.forward)))
	L.SetField(mod, "current", L.NewFunction(m.guard(m.current)))
	L.SetField(mod, "has_next", L.NewFunction(m.guard(m.hasNext)))
	L.SetField(mod, "has_previous", L.NewFunction(m.guard(m.hasPrevious)))
	L.SetField(mod, "entries", L.NewFunction(m.guard(m.entries)))
	L.SetField(mod, "index", L.NewFunction(m.guard(m.index)))
	L.SetField(mod, "forget", L.NewFunction(m.guard(m.forget)))
	L.SetField(mod, "keep", L.NewFunction(m.guard(m.keep)))

	L.SetGlobal("_nav", mod)
	return nil
}

// guard rejects calls made from inside a keep() predicate.
func (m *NavModule) guard(fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if m.busy {
			L.RaiseError("_nav cannot be used inside a keep predicate")
			return 0
		}
		return fn(L)
	}
}

// back() -> location or nil[, err]
// Moves back one entry, reopening its document if needed.
func (m *NavModule) back(L *lua.LState) int {
	loc, err := m.nav.Back()
	return pushMove(L, loc, err)
}

// forward() -> location or nil[, err]
// Moves forward one entry, reopening its document if needed.
func (m *NavModule) forward(L *lua.LState) int {
	loc, err := m.nav.Forward()
	return pushMove(L, loc, err)
}

// current() -> location or nil
func (m *NavModule) current(L *lua.LState) int {
	loc, ok := m.nav.Current()
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(locationTable(L, loc))
	return 1
}

// has_next() -> bool
func (m *NavModule) hasNext(L *lua.LState) int {
	L.Push(lua.LBool(m.nav.HasNext()))
	return 1
}

// has_previous() -> bool
func (m *NavModule) hasPrevious(L *lua.LState) int {
	L.Push(lua.LBool(m.nav.HasPrevious()))
	return 1
}

// entries() -> {locations}
// Returns all entries, oldest first.
func (m *NavModule) entries(L *lua.LState) int {
	tbl := L.NewTable()
	for i, loc := range m.nav.Entries() {
		tbl.RawSetInt(i+1, locationTable(L, loc))
	}
	L.Push(tbl)
	return 1
}

// index() -> number
func (m *NavModule) index(L *lua.LState) int {
	L.Push(lua.LNumber(m.nav.Index() + 1))
	return 1
}

// forget(path) -> removed
// Removes every entry for path.
func (m *NavModule) forget(L *lua.LState) int {
	path := L.CheckString(1)
	if path == "" {
		L.ArgError(1, "path cannot be empty")
		return 0
	}
	L.Push(lua.LNumber(m.nav.Forget(path)))
	return 1
}

// keep(fn) -> removed
// Removes every entry for which fn(location) returns a false value.
// If fn raises, no entry is removed and the error is re-raised.
func (m *NavModule) keep(L *lua.LState) int {
	fn := L.CheckFunction(1)

	m.busy = true
	removed, err := m.nav.KeepErr(func(loc navigation.Location) (bool, error) {
		err := L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, locationTable(L, loc))
		if err != nil {
			return false, err
		}
		ret := L.Get(-1)
		L.Pop(1)
		return lua.LVAsBool(ret), nil
	})
	m.busy = false

	if err != nil {
		L.RaiseError("keep: %v", err)
		return 0
	}
	L.Push(lua.LNumber(removed))
	return 1
}

// pushMove pushes the result of back() or forward().
func pushMove(L *lua.LState, loc navigation.Location, err error) int {
	if errors.Is(err, navigation.ErrNoHistory) {
		L.Push(lua.LNil)
		return 1
	}
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(locationTable(L, loc))
	return 1
}

// locationTable converts a location to a Lua table.
func locationTable(L *lua.LState, loc navigation.Location) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("path", lua.LString(loc.Path()))
	tbl.RawSetString("line", lua.LNumber(loc.Position.Line))
	tbl.RawSetString("column", lua.LNumber(loc.Position.Column))
	tbl.RawSetString("open", lua.LBool(loc.IsOpen()))
	return tbl
}

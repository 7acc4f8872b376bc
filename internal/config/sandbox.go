package config

import (
	lua "github.com/yuin/gopher-lua"
)

// settingsLibs are the only standard libraries a settings file can use.
// os, io, package, coroutine and debug are never opened.
var settingsLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// blockedBaseFuncs load code, reach the host or write to stdout.
var blockedBaseFuncs = []string{
	"dofile", "loadfile", "load", "loadstring",
	"require", "module", "collectgarbage", "print",
}

// newSandboxedVM creates a Lua VM for evaluating a settings file.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:    true,
		CallStackSize:   256,
		RegistryMaxSize: 8 * 1024,
	})
	for _, lib := range settingsLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range blockedBaseFuncs {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable defines a read-only "platform" global describing info.
// Call it before running the settings file.
func InjectPlatformTable(L *lua.LState, info *Info) error {
	t := L.NewTable()
	strs := map[string]string{
		"os":       info.OS,
		"arch":     info.Arch,
		"arch_raw": info.ArchRaw,
		"key":      info.Key(),
		"libc":     info.Libc,
	}
	for k, v := range strs {
		t.RawSetString(k, lua.LString(v))
	}
	flags := map[string]bool{
		"is_linux":   info.IsLinux(),
		"is_macos":   info.IsMacOS(),
		"is_windows": info.IsWindows(),
		"is_musl":    info.Musl(),
	}
	for k, v := range flags {
		t.RawSetString(k, lua.LBool(v))
	}

	if info.IsLinux() && info.Distro != "" {
		distro := L.NewTable()
		distro.RawSetString("id", lua.LString(info.Distro))
		distro.RawSetString("version", lua.LString(info.DistroVersion))
		t.RawSetString("distro", makeReadOnly(L, distro))
	}

	// when(cond, value) returns value if cond holds, nil otherwise.
	t.RawSetString("when", L.NewFunction(func(L *lua.LState) int {
		if lua.LVAsBool(L.Get(1)) {
			L.Push(L.Get(2))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal("platform", makeReadOnly(L, t))
	return nil
}

// makeReadOnly returns an empty proxy that reads through to table and raises
// on writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	mt.RawSetString("__index", table)
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only")
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}

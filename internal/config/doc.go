// Package config loads depkeeper's user settings.
//
// Settings are written as a Lua file (depkeeper.lua) and executed in a
// sandboxed gopher-lua VM with the os, io, debug and module-loading libraries
// removed. Platform information is injected as a read-only "platform" table
// so users can vary settings per machine:
//
//	depkeeper = {
//	    token = nil, -- prefer the DEPKEEPER_TOKEN environment variable
//	    release = { channel = "stable", update_interval_days = 4 },
//	    advanced = {
//	        automatic_dependency_management = true,
//	        additional_parameters = platform.when(platform.is_linux, "--all-projects"),
//	    },
//	}
//
// A missing settings file is not an error; DefaultSettings applies. Every
// parsed file is validated before it is returned.
//
// The package also defines Logger, the small structured logging interface
// shared by the other internal packages. *slog.Logger satisfies it.
package config

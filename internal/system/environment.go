package system

import (
	"runtime"
	"runtime/debug"
)

// Environment describes the toolchain and build of the running binary.
// It is attached to runs under metadata "environment" on request.
type Environment struct {
	GoVersion string
	OS        string
	Arch      string
	Module    string
	Version   string
	Revision  string
	Modified  bool
	// Modules maps each dependency path to its version.
	Modules map[string]string
}

// ReadEnvironment describes the current binary. Without build info only
// the toolchain fields are set.
func ReadEnvironment() Environment {
	bi, _ := debug.ReadBuildInfo()
	return EnvironmentFromBuildInfo(bi, runtime.GOOS, runtime.GOARCH)
}

// EnvironmentFromBuildInfo builds an Environment from bi, which may be nil.
func EnvironmentFromBuildInfo(bi *debug.BuildInfo, goos, goarch string) Environment {
	env := Environment{GoVersion: runtime.Version(), OS: goos, Arch: goarch, Modules: map[string]string{}}
	if bi == nil {
		return env
	}

	if bi.GoVersion != "" {
		env.GoVersion = bi.GoVersion
	}
	env.Module = bi.Main.Path
	env.Version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			env.Revision = s.Value
		case "vcs.modified":
			env.Modified = s.Value == "true"
		}
	}
	for _, dep := range bi.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		env.Modules[dep.Path] = dep.Version
	}
	return env
}

// Map renders the environment as run metadata.
func (e Environment) Map() map[string]any {
	modules := make(map[string]any, len(e.Modules))
	for path, version := range e.Modules {
		modules[path] = version
	}
	m := map[string]any{
		"go": map[string]any{
			"version": e.GoVersion,
			"os":      e.OS,
			"arch":    e.Arch,
		},
		"modules": modules,
	}
	if e.Module != "" {
		build := map[string]any{"module": e.Module, "version": e.Version}
		if e.Revision != "" {
			build["revision"] = e.Revision
			build["modified"] = e.Modified
		}
		m["build"] = build
	}
	return m
}

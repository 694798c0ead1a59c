package configstore

import (
	"path/filepath"
	"runtime"
	"time"
)

// CreateLaunchConfig derives the process-launch shape for a stack from its
// manifest command, declared runtime tag, and install path, per spec.md
// §4.F. bundledRuntimeBin resolves a runtime tag ("node", "python", "npx")
// to the absolute path of the bundled binary for the host platform; it may
// return "" when no bundled runtime is available, in which case the bare
// name is passed through for PATH lookup.
func CreateLaunchConfig(command []string, runtimeTag, stackPath string, bundledRuntimeBin func(string) string) LaunchConfig {
	if len(command) == 0 {
		bin := bundledRuntimeBin(runtimeTag)
		if bin == "" {
			bin = runtimeTag
		}
		args := []string{"dist/index.js"}
		if runtimeTag == "python" || runtimeTag == "python3" {
			args = []string{"-u", "src/server.py"}
		}
		return LaunchConfig{Bin: bin, Args: args, Cwd: stackPath}
	}

	bin, args := command[0], append([]string{}, command[1:]...)
	switch bin {
	case "node", "python", "python3":
		if resolved := bundledRuntimeBin(bin); resolved != "" {
			bin = resolved
		}
	case "npx":
		if resolved := bundledRuntimeBin("npx"); resolved != "" {
			bin = resolved
		}
	}
	return LaunchConfig{Bin: bin, Args: args, Cwd: stackPath}
}

// ResolvePathLikeArgs rewrites any argument that "looks path-like" (starts
// with ".", or contains "/" or "\\") and is not already absolute, making it
// absolute against baseDir. Consumers such as the agent registrar call this
// when projecting a LaunchConfig into a third-party agent's MCP entry.
func ResolvePathLikeArgs(args []string, baseDir string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = resolvePathLikeArg(a, baseDir)
	}
	return out
}

func resolvePathLikeArg(arg, baseDir string) string {
	if filepath.IsAbs(arg) {
		return arg
	}
	if !LooksPathLike(arg) {
		return arg
	}
	return filepath.Join(baseDir, arg)
}

// LooksPathLike reports whether s begins with "." or contains a path
// separator, per spec.md §4.H's rewrite rule for MCP launch arguments.
func LooksPathLike(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '.' {
		return true
	}
	for _, r := range s {
		if r == '/' || r == '\\' {
			return true
		}
	}
	return false
}

func isDarwin() bool {
	return runtime.GOOS == "darwin"
}

func nowISO8601() string {
	return time.Now().UTC().Format(time.RFC3339)
}

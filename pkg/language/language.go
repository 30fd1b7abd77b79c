// Package language assigns a language tag per file. Classification is
// best effort; "unknown" is a valid answer and rules with no language
// restriction still apply to unknown files.
package language

import (
	"path/filepath"
	"strings"

	"github.com/danwakefield/fnmatch"
)

// Unknown is returned when no heuristic matches.
const Unknown = "unknown"

var byExtension = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyw":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rb":    "ruby",
	".php":   "php",
	".java":  "java",
	".kt":    "kotlin",
	".cs":    "csharp",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".rs":    "rust",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".zsh":   "shell",
	".ps1":   "powershell",
	".sql":   "sql",
	".html":  "html",
	".htm":   "html",
	".css":   "css",
	".scss":  "css",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".jsonc": "json",
	".toml":  "toml",
	".xml":   "xml",
	".tf":    "terraform",
	".proto": "protobuf",
}

// filename patterns for files whose language is not carried by an
// extension.
var byFilename = []struct {
	pattern  string
	language string
}{
	{"Dockerfile*", "dockerfile"},
	{"Containerfile*", "dockerfile"},
	{"Makefile*", "makefile"},
	{"GNUmakefile", "makefile"},
	{"Jenkinsfile*", "groovy"},
	{"Rakefile", "ruby"},
	{"Gemfile", "ruby"},
	{"*.gradle", "groovy"},
}

var byShebang = map[string]string{
	"python":  "python",
	"python3": "python",
	"node":    "javascript",
	"bash":    "shell",
	"sh":      "shell",
	"zsh":     "shell",
	"ruby":    "ruby",
	"perl":    "perl",
	"php":     "php",
}

// Classify returns the language tag for a path. head may carry the
// first bytes of the file for shebang sniffing and may be nil.
func Classify(path string, head []byte) string {
	base := filepath.Base(path)

	if ext := strings.ToLower(filepath.Ext(base)); ext != "" {
		if lang, ok := byExtension[ext]; ok {
			return lang
		}
	}

	flags := fnmatch.FNM_PERIOD | fnmatch.FNM_NOESCAPE
	for _, entry := range byFilename {
		if fnmatch.Match(entry.pattern, base, flags) {
			return entry.language
		}
	}

	if lang := fromShebang(head); lang != "" {
		return lang
	}

	return Unknown
}

// fromShebang reads an interpreter name out of a "#!" first line.
func fromShebang(head []byte) string {
	if len(head) < 3 || head[0] != '#' || head[1] != '!' {
		return ""
	}
	line := string(head[2:])
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	interp := filepath.Base(fields[0])
	// "#!/usr/bin/env python3" puts the interpreter second
	if interp == "env" && len(fields) > 1 {
		interp = filepath.Base(fields[1])
	}
	if lang, ok := byShebang[interp]; ok {
		return lang
	}
	// strip a trailing version such as python3.12
	interp = strings.TrimRight(interp, "0123456789.")
	if lang, ok := byShebang[interp]; ok {
		return lang
	}
	return ""
}

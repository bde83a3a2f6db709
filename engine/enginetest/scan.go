package enginetest

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	directiveRe  = regexp.MustCompile(`^\s*#\s*(\w+)\s*(.*?)\s*$`)
	importRe     = regexp.MustCompile(`^\s*(?:import|extern)\s+[^;(]*?\b([A-Za-z_]\w*)\s*\([^;]*\)\s*;`)
	definitionRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:static\s+)?(?:inline\s+)?[A-Za-z_][\w\s]*?[\s*]+([A-Za-z_]\w*)\s*\([^;]*\)\s*\{?\s*$`)
)

// unit is what the scanner learned from one translation unit.
type unit struct {
	defines map[string]bool
	imports []string
	errors  []string
}

// scan runs a line-oriented subset of the preprocessor over src: #define,
// #undef, #ifdef, #ifndef, #else, #endif and #error. Function definitions
// and import declarations are collected from active lines only. Macros
// defined by the source are added to macros.
func scan(name, src string, macros map[string]string) *unit {
	u := &unit{defines: make(map[string]bool)}
	var active []bool
	live := func() bool {
		for _, a := range active {
			if !a {
				return false
			}
		}
		return true
	}

	for i, line := range strings.Split(src, "\n") {
		if m := directiveRe.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "ifdef":
				_, ok := macros[m[2]]
				active = append(active, ok)
			case "ifndef":
				_, ok := macros[m[2]]
				active = append(active, !ok)
			case "else":
				if n := len(active); n > 0 {
					active[n-1] = !active[n-1]
				}
			case "endif":
				if n := len(active); n > 0 {
					active = active[:n-1]
				}
			case "define":
				if live() {
					key, value, _ := strings.Cut(m[2], " ")
					macros[key] = strings.TrimSpace(value)
				}
			case "undef":
				if live() {
					delete(macros, m[2])
				}
			case "error":
				if live() {
					u.errors = append(u.errors, fmt.Sprintf("%s:%d: error: #error %s", name, i+1, m[2]))
				}
			}
			continue
		}
		if !live() {
			continue
		}
		if m := importRe.FindStringSubmatch(line); m != nil {
			u.imports = append(u.imports, m[1])
			continue
		}
		if m := definitionRe.FindStringSubmatch(line); m != nil {
			u.defines[m[1]] = true
		}
	}
	if len(active) > 0 {
		u.errors = append(u.errors, fmt.Sprintf("%s: error: #endif expected", name))
	}
	return u
}

package unwind

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stringMethod returns the bound method name of s.
func stringMethod(s string, name string) (*Func, bool) {
	m, ok := stringMethods[name]
	if !ok {
		return nil, false
	}
	return &Func{
		Name: "str." + name,
		Call: func(args []any, kwargs map[string]any) (any, error) {
			if len(kwargs) != 0 {
				return nil, fmt.Errorf("str.%s takes no keyword arguments", name)
			}
			return m(s, args)
		},
	}, true
}

var stringMethods = map[string]func(s string, args []any) (any, error){
	"ljust":  pad(func(fill string, n int) (string, string) { return "", strings.Repeat(fill, n) }),
	"rjust":  pad(func(fill string, n int) (string, string) { return strings.Repeat(fill, n), "" }),
	"center": pad(func(fill string, n int) (string, string) { return strings.Repeat(fill, n/2), strings.Repeat(fill, n-n/2) }),
	"zfill": func(s string, args []any) (any, error) {
		width, err := intArg(args, 0, "zfill")
		if err != nil || len(args) != 1 {
			return nil, fmt.Errorf("zfill: %w", errBuiltinArgs)
		}
		n := width - utf8.RuneCountInString(s)
		if n <= 0 {
			return s, nil
		}
		if err := checkSize(n, 1); err != nil {
			return nil, fmt.Errorf("zfill: %w", err)
		}
		sign := ""
		if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
			sign, s = s[:1], s[1:]
		}
		return sign + strings.Repeat("0", n) + s, nil
	},
	"upper":      noArgs(strings.ToUpper),
	"lower":      noArgs(strings.ToLower),
	"title":      noArgs(title),
	"capitalize": noArgs(capitalize),
	"strip":      trim(strings.TrimSpace, strings.Trim),
	"lstrip": trim(func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }, strings.TrimLeft),
	"rstrip": trim(func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }, strings.TrimRight),
	"startswith": affix(strings.HasPrefix),
	"endswith":   affix(strings.HasSuffix),
	"count": func(s string, args []any) (any, error) {
		sub, err := strArg(args, 0, "count")
		if err != nil || len(args) != 1 {
			return nil, fmt.Errorf("count: %w", errBuiltinArgs)
		}
		if sub == "" {
			return utf8.RuneCountInString(s) + 1, nil
		}
		return strings.Count(s, sub), nil
	},
	"find": func(s string, args []any) (any, error) {
		sub, err := strArg(args, 0, "find")
		if err != nil || len(args) != 1 {
			return nil, fmt.Errorf("find: %w", errBuiltinArgs)
		}
		i := strings.Index(s, sub)
		if i < 0 {
			return -1, nil
		}
		return utf8.RuneCountInString(s[:i]), nil
	},
	"replace": func(s string, args []any) (any, error) {
		if len(args) < 2 || len(args) > 3 {
			return nil, fmt.Errorf("replace: %w", errBuiltinArgs)
		}
		old, err := strArg(args, 0, "replace")
		if err != nil {
			return nil, err
		}
		repl, err := strArg(args, 1, "replace")
		if err != nil {
			return nil, err
		}
		n := -1
		if len(args) == 3 {
			if n, err = intArg(args, 2, "replace"); err != nil {
				return nil, err
			}
		}
		if grow := len(repl) - len(old); grow > 0 {
			count := strings.Count(s, old)
			if n >= 0 {
				count = min(count, n)
			}
			if err := checkSize(count, grow); err != nil {
				return nil, fmt.Errorf("replace: %w", err)
			}
		}
		return strings.Replace(s, old, repl, n), nil
	},
	"split": func(s string, args []any) (any, error) {
		if len(args) > 2 {
			return nil, fmt.Errorf("split: %w", errBuiltinArgs)
		}
		var parts []string
		switch {
		case len(args) == 0 || args[0] == nil:
			parts = strings.Fields(s)
		default:
			sep, err := strArg(args, 0, "split")
			if err != nil {
				return nil, err
			}
			if sep == "" {
				return nil, fmt.Errorf("split: empty separator")
			}
			n := -1
			if len(args) == 2 {
				limit, err := intArg(args, 1, "split")
				if err != nil {
					return nil, err
				}
				if limit >= 0 {
					n = limit + 1
				}
			}
			parts = strings.SplitN(s, sep, n)
		}
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	},
	"join": func(s string, args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("join: %w", errBuiltinArgs)
		}
		items, err := iterate(args[0])
		if err != nil {
			return nil, err
		}
		parts := make([]string, len(items))
		size := len(s) * max(len(items)-1, 0)
		for i, it := range items {
			p, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("join: sequence item %d: expected str, %s found", i, typeName(it))
			}
			parts[i] = p
			size += len(p)
		}
		if err := checkSize(1, size); err != nil {
			return nil, fmt.Errorf("join: %w", err)
		}
		return strings.Join(parts, s), nil
	},
	"isdigit": noArgsBool(func(s string) bool {
		return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
	}),
	"isalpha": noArgsBool(func(s string) bool {
		return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) < 0
	}),
}

// pad implements ljust, rjust and center: side splits the n fill runes
// between the left and the right of s.
func pad(side func(fill string, n int) (left, right string)) func(string, []any) (any, error) {
	return func(s string, args []any) (any, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, errBuiltinArgs
		}
		width, err := intArg(args, 0, "width")
		if err != nil {
			return nil, err
		}
		fill := " "
		if len(args) == 2 {
			if fill, err = strArg(args, 1, "fillchar"); err != nil {
				return nil, err
			}
			if utf8.RuneCountInString(fill) != 1 {
				return nil, fmt.Errorf("the fill character must be exactly one character long")
			}
		}
		n := width - utf8.RuneCountInString(s)
		if n <= 0 {
			return s, nil
		}
		if err := checkSize(n, len(fill)); err != nil {
			return nil, err
		}
		left, right := side(fill, n)
		return left + s + right, nil
	}
}

func trim(space func(string) string, cut func(string, string) string) func(string, []any) (any, error) {
	return func(s string, args []any) (any, error) {
		switch {
		case len(args) == 0 || (len(args) == 1 && args[0] == nil):
			return space(s), nil
		case len(args) == 1:
			chars, err := strArg(args, 0, "chars")
			if err != nil {
				return nil, err
			}
			return cut(s, chars), nil
		}
		return nil, errBuiltinArgs
	}
}

func affix(has func(string, string) bool) func(string, []any) (any, error) {
	return func(s string, args []any) (any, error) {
		if len(args) != 1 {
			return nil, errBuiltinArgs
		}
		if t, ok := args[0].(Tuple); ok {
			for _, it := range t {
				if p, ok := it.(string); ok && has(s, p) {
					return true, nil
				}
			}
			return false, nil
		}
		p, err := strArg(args, 0, "prefix")
		if err != nil {
			return nil, err
		}
		return has(s, p), nil
	}
}

func noArgs(fn func(string) string) func(string, []any) (any, error) {
	return func(s string, args []any) (any, error) {
		if len(args) != 0 {
			return nil, errBuiltinArgs
		}
		return fn(s), nil
	}
}

func noArgsBool(fn func(string) bool) func(string, []any) (any, error) {
	return func(s string, args []any) (any, error) {
		if len(args) != 0 {
			return nil, errBuiltinArgs
		}
		return fn(s), nil
	}
}

func title(s string) string {
	var b strings.Builder
	prev := false
	for _, r := range s {
		if prev {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToTitle(r))
		}
		prev = unicode.IsLetter(r)
	}
	return b.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToTitle(r)) + strings.ToLower(s[size:])
}

func strArg(args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: %w", name, errBuiltinArgs)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%s must be str, not %s", name, typeName(args[i]))
	}
	return s, nil
}

func intArg(args []any, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s: %w", name, errBuiltinArgs)
	}
	n, ok := asInt(args[i])
	if !ok {
		return 0, fmt.Errorf("%s must be int, not %s", name, typeName(args[i]))
	}
	return n, nil
}

// dictMethod returns the bound method name of m.
func dictMethod(m map[string]any, name string) (*Func, bool) {
	switch name {
	case "get":
		return &Func{Name: "dict.get", Call: func(args []any, kwargs map[string]any) (any, error) {
			if len(args) < 1 || len(args) > 2 || len(kwargs) != 0 {
				return nil, errBuiltinArgs
			}
			k, err := strArg(args, 0, "key")
			if err != nil {
				return nil, err
			}
			if v, ok := m[k]; ok {
				return v, nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return nil, nil
		}}, true
	case "keys":
		return &Func{Name: "dict.keys", Call: func(args []any, kwargs map[string]any) (any, error) {
			if len(args) != 0 || len(kwargs) != 0 {
				return nil, errBuiltinArgs
			}
			return sortedKeys(m), nil
		}}, true
	}
	return nil, false
}

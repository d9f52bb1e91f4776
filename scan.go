package unwind

import (
	"slices"
	"strings"

	"github.com/mickamy/unwind/internal/lex"
)

// Boundary returns the sub-expression that ends fragment.
//
// fragment is expected to end at a call target, for example "x = a.b" or
// "f(1, obj.meth". It is scanned backwards, token by token: a closing
// bracket is counted as outstanding, an opening bracket cancels an
// outstanding closer of its own kind or else marks a boundary, and "=",
// "," or ";" mark a boundary while no closer is outstanding. The text after
// the boundary nearest the end of fragment is returned; the whole fragment
// is returned when there is none. Bracket characters inside string
// literals are never counted.
func Boundary(fragment string) string {
	rev := reverse(fragment)
	pending := map[string]int{}
	outstanding := func() bool {
		for _, n := range pending {
			if n > 0 {
				return true
			}
		}
		return false
	}

	nearest := -1
	mark := func(col int) {
		if nearest < 0 || col < nearest {
			nearest = col
		}
	}
	for _, tok := range lex.Tokens(rev) {
		if tok.Kind != lex.Op {
			continue
		}
		switch {
		case lex.IsClose(tok):
			pending[tok.Text]++
		case lex.IsOpen(tok):
			closer := closerOf(tok.Text)
			if pending[closer] > 0 {
				pending[closer]--
			} else {
				mark(tok.Col)
			}
		case (tok.Text == "=" || tok.Text == "," || tok.Text == ";") && !outstanding():
			mark(tok.Col)
		}
	}
	if nearest < 0 || nearest > len(fragment) {
		return fragment
	}
	// rev[nearest] is fragment[len-1-nearest]; keep what follows it.
	return fragment[len(fragment)-nearest:]
}

// Split partitions an argument list at its top-level commas.
//
// args may be a parenthesized list such as "(a, g(b, c), d)", in which
// case only the text up to the parenthesis matching the first one is
// considered, or the raw inner text "a, g(b, c), d". Commas nested inside
// parentheses, brackets, braces or string literals never split. Fragments
// are trimmed and empty fragments are dropped.
func Split(args string) []string {
	toks := lex.Tokens(args)
	start, end, base := 0, len(args), 0
	if len(toks) > 0 && toks[0].Is("(") {
		start, base = toks[0].Col+1, 1
	}

	var cuts []int
	depth := 0
	for _, tok := range toks {
		if tok.Kind != lex.Op {
			continue
		}
		switch {
		case lex.IsOpen(tok):
			depth++
		case lex.IsClose(tok):
			depth--
			if base == 1 && depth == 0 {
				end = tok.Col
			}
		case tok.Text == "," && depth == base:
			cuts = append(cuts, tok.Col)
		}
		if base == 1 && depth == 0 {
			break
		}
	}

	var out []string
	prev := start
	for _, c := range append(cuts, end) {
		if c < prev {
			continue
		}
		if part := strings.TrimSpace(args[prev:c]); part != "" {
			out = append(out, part)
		}
		prev = c + 1
	}
	return out
}

func closerOf(open string) string {
	switch open {
	case "(":
		return ")"
	case "[":
		return "]"
	default:
		return "}"
	}
}

// reverse reverses s rune by rune, so the byte length is unchanged and a
// rune at byte offset c of the result ends at byte len(s)-c of s.
func reverse(s string) string {
	r := []rune(s)
	slices.Reverse(r)
	return string(r)
}

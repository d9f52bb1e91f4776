package unwind

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mickamy/unwind/internal/lex"
)

// windowMargin is the number of lines shown before and after the consumed
// span in a record's display window.
const windowMargin = 2

// Reconstruct rebuilds the statement that starts at line (1-based) of file.
//
// The source is read once. Starting at line, each physical line is
// tokenized while a stack of open brackets is kept; a closing bracket only
// pops its own kind. If the first line leaves no bracket open the statement
// is that line. Otherwise lines are consumed until the stack empties, and
// the last line is cut right after the closing bracket. The consumed lines
// are trimmed and concatenated into stmt.
//
// window holds the lines from two before to two after the consumed span,
// right-trimmed, regardless of how many lines were consumed.
//
// When the file cannot be read or does not contain line, stmt is the
// trimmed known line and window is nil. ok is false only if there is no
// source at all.
//
// Braces are not tracked in Go files, where a line ending in "{" opens a
// block rather than continuing an expression.
//
// Reconstruct reads file from the local filesystem; see [ReconstructFS].
func Reconstruct(file string, line int, known string) (stmt string, window []string, ok bool) {
	return ReconstructFS(localFS{}, file, line, known)
}

// ReconstructFS is [Reconstruct] reading source from fsys. A leading slash
// in file is dropped so absolute paths resolve under the root of fsys.
// A nil fsys reads nothing: stmt is the trimmed known line.
func ReconstructFS(fsys fs.FS, file string, line int, known string) (stmt string, window []string, ok bool) {
	lines, readable := readLines(fsys, file)
	if !readable || line < 1 || line > len(lines) {
		stmt = strings.TrimSpace(known)
		return stmt, nil, stmt != ""
	}

	trackBraces := !strings.HasSuffix(file, ".go")
	var (
		consumed []string
		brackets []string
		index    int
	)
scan:
	for index = 0; line-1+index < len(lines); index++ {
		code := lines[line-1+index]
		for _, tok := range lex.Tokens(code) {
			if tok.Kind != lex.Op || (!trackBraces && (tok.Text == "{" || tok.Text == "}")) {
				continue
			}
			switch {
			case lex.IsOpen(tok):
				brackets = append(brackets, tok.Text)
			case lex.IsClose(tok):
				if n := len(brackets); n > 0 && brackets[n-1] == lex.Openers[tok.Text] {
					brackets = brackets[:n-1]
				}
				if len(brackets) == 0 {
					consumed = append(consumed, code[:tok.Col+1])
					break scan
				}
			}
		}
		consumed = append(consumed, code)
		if index == 0 && len(brackets) == 0 {
			break
		}
	}
	if line-1+index >= len(lines) {
		index = len(lines) - line
	}

	parts := make([]string, len(consumed))
	for i, c := range consumed {
		parts[i] = strings.TrimSpace(c)
	}
	stmt = strings.Join(parts, "")

	lo := max(line-1-windowMargin, 0)
	hi := min(line+index+windowMargin, len(lines))
	window = make([]string, 0, hi-lo)
	for _, l := range lines[lo:hi] {
		window = append(window, strings.TrimRight(l, " \t\r\n"))
	}
	return stmt, window, true
}

// localFS opens names as given, relative to the working directory.
type localFS struct{}

func (localFS) Open(name string) (fs.File, error) { return os.Open(name) }

func (localFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (localFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func readLines(fsys fs.FS, file string) ([]string, bool) {
	if fsys == nil || file == "" {
		return nil, false
	}
	name := file
	if _, local := fsys.(localFS); !local {
		name = strings.TrimPrefix(filepath.ToSlash(file), "/")
		if !fs.ValidPath(name) {
			return nil, false
		}
	}
	info, err := fs.Stat(fsys, name)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, false
	}
	data = bytes.ToValidUTF8(data, []byte("�"))
	lines := strings.SplitAfter(string(data), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines, true
}

// Package shell implements the line-oriented REPL that drives a mounted
// volume: one whitespace-separated command per line, printing "OK" on
// success or one of the closed set of user-visible error strings on
// failure. It owns the current working directory; the engine itself is
// stateless with respect to it and expects fully composed paths.
package shell

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jpillora/fatvol/errors"
	"github.com/jpillora/fatvol/internal/fat"
	"github.com/jpillora/fatvol/internal/units"
)

// Shell holds the REPL's mutable state: the mounted volume and the path the
// user is currently "in". currentPath always carries both a leading and a
// trailing slash ("/", "/a/", "/a/b/", ...), mirroring the representation
// the command set builds paths against.
type Shell struct {
	Engine      *fat.Engine
	currentPath string
	Stdout      io.Writer
}

// New returns a shell positioned at the root of engine.
func New(engine *fat.Engine) *Shell {
	return &Shell{Engine: engine, currentPath: "/", Stdout: os.Stdout}
}

// buildPath resolves given against the shell's current directory: an
// absolute given (leading "/") is used as-is (minus its own leading
// slash); a relative given is appended to the current directory.
func (s *Shell) buildPath(given string) string {
	if strings.HasPrefix(given, "/") {
		return given[1:]
	}
	if given == "" {
		return s.currentPath[1 : len(s.currentPath)-1]
	}
	return s.currentPath[1:] + given
}

// Dispatch parses and runs one input line, returning the text it prints
// (without a trailing newline): "OK", one of the closed error strings, or
// "invalid command: <line>" for anything unrecognized or under-supplied,
// matching the original parser's behavior of simply refusing to recognize
// a line it can't fully destructure into a command.
func (s *Shell) Dispatch(line string) string {
	words := strings.Fields(line)
	if len(words) == 0 {
		return "invalid command: " + line
	}

	name, args := words[0], words[1:]
	cmd, ok := commands[name]
	if !ok || len(args) < cmd.minArgs {
		return "invalid command: " + line
	}
	return cmd.run(s, args)
}

type command struct {
	minArgs int
	run     func(*Shell, []string) string
}

// commands maps each command word to its handler and minimum argument
// count. ls, pwd, check, and exit tolerate a missing/empty argument list.
var commands = map[string]command{
	"cp":     {2, (*Shell).cmdCopy},
	"mv":     {2, (*Shell).cmdMove},
	"rm":     {1, (*Shell).cmdRemove},
	"mkdir":  {1, (*Shell).cmdMkdir},
	"rmdir":  {1, (*Shell).cmdRmdir},
	"ls":     {0, (*Shell).cmdList},
	"cat":    {1, (*Shell).cmdCat},
	"cd":     {1, (*Shell).cmdChdir},
	"pwd":    {0, (*Shell).cmdPwd},
	"info":   {1, (*Shell).cmdInfo},
	"incp":   {2, (*Shell).cmdCopyIn},
	"outcp":  {2, (*Shell).cmdCopyOut},
	"load":   {1, (*Shell).cmdLoad},
	"format": {1, (*Shell).cmdFormat},
	"bug":    {1, (*Shell).cmdBug},
	"check":  {0, (*Shell).cmdCheck},
	"exit":   {0, (*Shell).cmdExit},
}

const (
	msgOK               = "OK"
	msgFileNotFound     = "FILE NOT FOUND"
	msgPathNotFound     = "PATH NOT FOUND"
	msgExist            = "EXIST"
	msgNotEmpty         = "NOT EMPTY"
	msgCannotCreateFile = "CANNOT CREATE FILE"
)

func (s *Shell) cmdCopy(args []string) string {
	err := s.Engine.Copy(s.buildPath(args[0]), s.buildPath(args[1]))
	return classifyFileNotFound(err)
}

func (s *Shell) cmdMove(args []string) string {
	err := s.Engine.MoveFile(s.buildPath(args[0]), s.buildPath(args[1]))
	return classifyFileNotFound(err)
}

func (s *Shell) cmdRemove(args []string) string {
	err := s.Engine.RemoveFile(s.buildPath(args[0]))
	return classifyFileNotFound(err)
}

func (s *Shell) cmdMkdir(args []string) string {
	err := s.Engine.Mkdir(s.buildPath(args[0]))
	switch {
	case err == nil:
		return msgOK
	case stderrors.Is(err, errors.ErrFileExists):
		return msgExist
	default:
		return msgPathNotFound
	}
}

func (s *Shell) cmdRmdir(args []string) string {
	err := s.Engine.RemoveDir(s.buildPath(args[0]))
	switch {
	case err == nil:
		return msgOK
	case stderrors.Is(err, errors.ErrDirNotEmpty):
		return msgNotEmpty
	default:
		return msgFileNotFound
	}
}

func (s *Shell) cmdList(args []string) string {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" || strings.HasSuffix(path, "/") {
		path += "."
	}
	entries, err := s.Engine.Listing(s.buildPath(path))
	if err != nil {
		return msgFileNotFound
	}
	for _, e := range entries {
		kind := "FILE"
		if e.IsDirectory {
			kind = "DIR"
		}
		fmt.Fprintf(s.Stdout, "%s: %s\n", kind, e.Name)
	}
	return msgOK
}

func (s *Shell) cmdCat(args []string) string {
	err := s.Engine.Cat(s.buildPath(args[0]), s.Stdout)
	return classifyFileNotFound(err)
}

// cmdChdir reconstructs currentPath from the resolved target, collapsing
// "x/.." pairs and dropping bare "." segments rather than trusting the
// engine's resolved name (which the directory's own "." entry would give
// back as just "."). This mirrors the original shell's own path-rewriting
// step rather than re-deriving the path from on-disk state.
func (s *Shell) cmdChdir(args []string) string {
	target := s.buildPath(args[0])
	if _, err := s.Engine.Listing(target); err != nil {
		return msgPathNotFound
	}

	raw := strings.Split(target, "/")
	var kept []string
	for i := 0; i < len(raw); i++ {
		seg := raw[i]
		if seg == "" || seg == "." {
			continue
		}
		if seg == ".." {
			if len(kept) > 0 {
				kept = kept[:len(kept)-1]
			}
			continue
		}
		if i+1 < len(raw) && raw[i+1] == ".." {
			i++
			continue
		}
		kept = append(kept, seg)
	}

	var b strings.Builder
	b.WriteString("/")
	for _, seg := range kept {
		b.WriteString(seg)
		b.WriteString("/")
	}
	s.currentPath = b.String()
	return msgOK
}

func (s *Shell) cmdPwd([]string) string {
	fmt.Fprintln(s.Stdout, s.currentPath)
	return msgOK
}

func (s *Shell) cmdInfo(args []string) string {
	name, chain, err := s.Engine.Info(s.buildPath(args[0]))
	if err != nil {
		return msgFileNotFound
	}
	parts := make([]string, len(chain))
	for i, c := range chain {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintf(s.Stdout, "%s %s\n", name, strings.Join(parts, ", "))
	return msgOK
}

func (s *Shell) cmdCopyIn(args []string) string {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return msgFileNotFound
	}
	if err := s.Engine.NewFile(s.buildPath(args[1]), uint32(len(data))); err != nil {
		return msgPathNotFound
	}
	if err := s.Engine.WriteFile(s.buildPath(args[1]), data); err != nil {
		return msgPathNotFound
	}
	return msgOK
}

func (s *Shell) cmdCopyOut(args []string) string {
	out, err := os.Create(args[1])
	if err != nil {
		return msgFileNotFound
	}
	defer out.Close()

	if err := s.Engine.Cat(s.buildPath(args[0]), out); err != nil {
		return msgFileNotFound
	}
	return msgOK
}

// cmdLoad replays a script file one line at a time, echoing each line
// before its result and continuing regardless of whether a given line
// succeeds, fails, or is unrecognized.
func (s *Shell) cmdLoad(args []string) string {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return msgFileNotFound
	}
	s.RunScript(strings.NewReader(string(raw)))
	return msgOK
}

func (s *Shell) cmdFormat(args []string) string {
	capacity, err := units.ParseCapacity(args[0])
	if err != nil {
		return msgCannotCreateFile
	}
	if err := s.Engine.Format(capacity); err != nil {
		return msgCannotCreateFile
	}
	s.currentPath = "/"
	return msgOK
}

func (s *Shell) cmdBug(args []string) string {
	err := s.Engine.Bug(s.buildPath(args[0]))
	return classifyFileNotFound(err)
}

func (s *Shell) cmdCheck([]string) string {
	report, err := s.Engine.Check()
	if err != nil {
		return msgFileNotFound
	}
	for _, line := range report.Lines {
		fmt.Fprintln(s.Stdout, line)
	}
	if report.Problems != nil && report.Problems.Len() > 0 {
		fmt.Fprintln(s.Stdout, report.Problems.Error())
	}
	return msgOK
}

func (s *Shell) cmdExit([]string) string {
	return msgOK
}

func classifyFileNotFound(err error) string {
	if err == nil {
		return msgOK
	}
	return msgFileNotFound
}

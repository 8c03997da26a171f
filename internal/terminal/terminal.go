/*
 * avrcore - Interactive terminal REPL
 *
 * Copyright 2026, Nathan Woolley
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package terminal is a liner-backed REPL that drives a programmer handle
// directly: dump/write through the cache, flush/erase, and read/write
// named config fields. It is the interactive counterpart to the batch
// mode cmd/avrcore offers via flags.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/nwoolley/avrcore/cache"
	"github.com/nwoolley/avrcore/cfgvalue"
	"github.com/nwoolley/avrcore/part"
	"github.com/nwoolley/avrcore/programmer"
)

// Session bundles the state one REPL instance drives.
type Session struct {
	Pgm    programmer.Programmer
	Part   *part.Part
	Store  *cache.Store
	Fields []cfgvalue.Field
}

type cmdLine struct {
	line string
	pos  int
}

type command struct {
	name    string
	min     int
	process func(*cmdLine, *Session) (bool, error)
}

var cmdList = []command{
	{name: "dump", min: 1, process: dump},
	{name: "write", min: 1, process: write},
	{name: "flush", min: 2, process: flush},
	{name: "erase", min: 2, process: erase},
	{name: "reset", min: 3, process: reset},
	{name: "config", min: 3, process: configCmd},
	{name: "quit", min: 1, process: quit},
}

func matchCommand(c command, word string) bool {
	if len(word) > len(c.name) || len(word) < c.min {
		return false
	}
	return c.name[:len(word)] == word
}

func matchList(word string) []command {
	if word == "" {
		return nil
	}
	var match []command
	for _, c := range cmdList {
		if matchCommand(c, word) {
			match = append(match, c)
		}
	}
	return match
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && l.line[l.pos] == ' ' {
		l.pos++
	}
}

func (l *cmdLine) isEOL() bool { return l.pos >= len(l.line) }

func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.line) && l.line[l.pos] != ' ' {
		l.pos++
	}
	return l.line[start:l.pos]
}

// ProcessCommand parses and runs one REPL line, returning true if the
// session should end.
func ProcessCommand(line string, s *Session) (bool, error) {
	cl := &cmdLine{line: strings.TrimSpace(line)}
	word := cl.getWord()
	match := matchList(word)
	switch len(match) {
	case 0:
		return false, fmt.Errorf("command not found: %s", word)
	case 1:
		return match[0].process(cl, s)
	default:
		return false, fmt.Errorf("ambiguous command: %s", word)
	}
}

func completeCmd(line string) []string {
	word := strings.TrimSpace(line)
	if strings.Contains(word, " ") {
		return nil
	}
	var matches []string
	for _, c := range cmdList {
		if strings.HasPrefix(c.name, word) {
			matches = append(matches, c.name+" ")
		}
	}
	return matches
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 0, bits)
}

func dump(cl *cmdLine, s *Session) (bool, error) {
	memName := cl.getWord()
	mem := part.LocateMem(s.Part, memName)
	if mem == nil {
		return false, fmt.Errorf("no such memory: %s", memName)
	}
	addr, err := parseUint(cl.getWord(), 32)
	if err != nil {
		return false, errors.New("dump requires a numeric address")
	}
	n, err := parseUint(cl.getWord(), 32)
	if err != nil || n == 0 {
		n = 16
	}

	var sb strings.Builder
	for i := uint64(0); i < n; i++ {
		b, res := s.Store.ReadByteCached(s.Pgm, s.Part, mem, uint32(addr)+uint32(i))
		if !res.IsOK() {
			return false, fmt.Errorf("read at %#x failed: %v", addr+i, res.Err)
		}
		fmt.Fprintf(&sb, "%02x ", b)
	}
	fmt.Println(strings.TrimSpace(sb.String()))
	return false, nil
}

func write(cl *cmdLine, s *Session) (bool, error) {
	memName := cl.getWord()
	mem := part.LocateMem(s.Part, memName)
	if mem == nil {
		return false, fmt.Errorf("no such memory: %s", memName)
	}
	addr, err := parseUint(cl.getWord(), 32)
	if err != nil {
		return false, errors.New("write requires a numeric address")
	}
	data, err := parseUint(cl.getWord(), 8)
	if err != nil {
		return false, errors.New("write requires a numeric byte value")
	}

	res := s.Store.WriteByteCached(s.Pgm, s.Part, mem, uint32(addr), byte(data))
	if res.IsSoftFail() {
		fmt.Println("write vetoed: address is readonly")
		return false, nil
	}
	if !res.IsOK() {
		return false, fmt.Errorf("write failed: %v", res.Err)
	}
	return false, nil
}

func flush(_ *cmdLine, s *Session) (bool, error) {
	res := s.Store.FlushCache(s.Pgm, s.Part)
	if !res.IsOK() {
		return false, fmt.Errorf("flush failed: %v", res.Err)
	}
	fmt.Println("flush ok")
	return false, nil
}

func erase(cl *cmdLine, s *Session) (bool, error) {
	switch cl.getWord() {
	case "chip":
		res := s.Store.ChipEraseCached(s.Pgm, s.Part)
		if !res.IsOK() {
			return false, fmt.Errorf("chip erase failed: %v", res.Err)
		}
		fmt.Println("chip erase ok")
		return false, nil
	case "page":
		memName := cl.getWord()
		mem := part.LocateMem(s.Part, memName)
		if mem == nil {
			return false, fmt.Errorf("no such memory: %s", memName)
		}
		addr, err := parseUint(cl.getWord(), 32)
		if err != nil {
			return false, errors.New("erase page requires a numeric address")
		}
		res := s.Store.PageEraseCached(s.Pgm, s.Part, mem, uint32(addr))
		if !res.IsOK() {
			return false, fmt.Errorf("page erase failed: %v", res.Err)
		}
		fmt.Println("page erase ok")
		return false, nil
	default:
		return false, errors.New("erase requires chip or page")
	}
}

func reset(_ *cmdLine, s *Session) (bool, error) {
	s.Store.ResetCache()
	fmt.Println("cache reset, all pending writes discarded")
	return false, nil
}

func configCmd(cl *cmdLine, s *Session) (bool, error) {
	switch cl.getWord() {
	case "get":
		name := cl.getWord()
		f, err := cfgvalue.Find(s.Fields, name)
		if err != nil {
			return false, err
		}
		v, res := cfgvalue.GetConfigValue(s.Pgm, s.Part, f)
		if !res.IsOK() {
			return false, fmt.Errorf("get config failed: %v", res.Err)
		}
		fmt.Printf("%s = %d\n", f.Name, v)
		return false, nil
	case "set":
		name := cl.getWord()
		f, err := cfgvalue.Find(s.Fields, name)
		if err != nil {
			return false, err
		}
		v, err := parseUint(cl.getWord(), 8)
		if err != nil {
			return false, errors.New("config set requires a numeric value")
		}
		res := cfgvalue.SetConfigValue(s.Pgm, s.Part, f, int(v), func(msg string) {
			slog.Warn(msg)
		})
		if !res.IsOK() {
			return false, fmt.Errorf("set config failed: %v", res.Err)
		}
		return false, nil
	default:
		return false, errors.New("config requires get or set")
	}
}

func quit(_ *cmdLine, _ *Session) (bool, error) {
	return true, nil
}

// Run starts the REPL loop against s until the user quits or aborts the
// prompt (Ctrl-D/Ctrl-C).
func Run(s *Session) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string { return completeCmd(l) })

	for {
		input, err := line.Prompt("avrcore> ")
		if err == nil {
			line.AppendHistory(input)
			quitNow, cmdErr := ProcessCommand(input, s)
			if cmdErr != nil {
				fmt.Println("Error: " + cmdErr.Error())
			}
			if quitNow {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		slog.Error("error reading line", "err", err)
		return
	}
}

// RunScript feeds each non-blank, non-comment line of r through
// ProcessCommand in order, echoing each command. It stops early on a quit
// command, or on the first error, which it returns with its line number
// rather than printing it. It is the batch-mode
// counterpart to Run, for cmd/avrcore's --script flag.
func RunScript(r io.Reader, s *Session) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fmt.Println("avrcore> " + line)
		quitNow, err := ProcessCommand(line, s)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if quitNow {
			return nil
		}
	}
	return scanner.Err()
}

/*
 * avrcore - Directive-file part loader
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

// Package partcfg is a small demonstration loader that turns a
// line-oriented directive file into a part.Part, for the CLI demo and
// tests. It is not a general configuration-file reader: there is no
// model registry, no device attach/detach, just enough syntax to declare
// one part's memories.
//
// File format, one memory per line, '#' starts a comment:
//
//	<name> size=<n> page=<n> [offset=<n>] [word]
package partcfg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nwoolley/avrcore/part"
)

// LoadPart reads a directive file describing one part's memories and
// returns a *part.Part named after the file's base identifier (the
// caller supplies the part name; the file only lists memories).
func LoadPart(r io.Reader, partName string) (*part.Part, error) {
	p := &part.Part{Name: partName}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		mem, err := parseMemoryLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		p.Memories = append(p.Memories, mem)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(p.Memories) == 0 {
		return nil, errors.New("partcfg: no memories declared")
	}
	return p, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func parseMemoryLine(line string) (*part.Memory, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty directive")
	}
	name := fields[0]

	var size, page, offset int
	page = 1
	wordAddressed := false
	sawSize := false

	for _, tok := range fields[1:] {
		key, val, hasVal := strings.Cut(tok, "=")
		switch strings.ToLower(key) {
		case "word":
			wordAddressed = true
		case "size":
			if !hasVal {
				return nil, fmt.Errorf("%s: size requires a value", name)
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid size %q", name, val)
			}
			size = n
			sawSize = true
		case "page":
			if !hasVal {
				return nil, fmt.Errorf("%s: page requires a value", name)
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid page %q", name, val)
			}
			page = n
		case "offset":
			if !hasVal {
				return nil, fmt.Errorf("%s: offset requires a value", name)
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid offset %q", name, val)
			}
			offset = n
		default:
			return nil, fmt.Errorf("%s: unknown directive %q", name, key)
		}
	}

	if !sawSize {
		return nil, fmt.Errorf("%s: missing size=", name)
	}

	mem := part.NewMemory(name, size, page, offset)
	mem.WordAddressed = wordAddressed
	return mem, nil
}

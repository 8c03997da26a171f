/*
 * avrcore - Configuration-value IO (fuse/lock-bit style fields)
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

// Package cfgvalue reads and writes named bitfields inside small
// non-cacheable config memories (fuses, lock bits): a field is a byte
// offset, a mask, and a shift. Lookups always go straight through the
// programmer's byte I/O, never through package cache, so a value just
// written by another tool is never served stale.
package cfgvalue

import (
	"fmt"
	"strings"

	"github.com/nwoolley/avrcore/part"
	"github.com/nwoolley/avrcore/programmer"
)

// Field describes one named bitfield within a memory.
type Field struct {
	Name   string // Matched case-insensitively, by substring, against cname.
	Mem    string // Memory name, e.g. "fuse", "lock".
	Offset int    // Byte offset within the memory.
	Mask   uint8
	Shift  uint
}

// Find locates the unique field whose Name contains cname
// (case-insensitive). It returns an error if zero or more than one field
// matches.
func Find(fields []Field, cname string) (Field, error) {
	needle := strings.ToLower(cname)
	var match Field
	count := 0
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Name), needle) {
			match = f
			count++
		}
	}
	switch count {
	case 0:
		return Field{}, fmt.Errorf("avrcore: no config field matches %q", cname)
	case 1:
		return match, nil
	default:
		return Field{}, fmt.Errorf("avrcore: %q matches more than one config field", cname)
	}
}

// GetConfigValue reads f's target memory byte-wise (bypassing the cache)
// and extracts (byte & mask) >> shift.
func GetConfigValue(pgm programmer.Programmer, p *part.Part, f Field) (int, programmer.Result) {
	mem := part.LocateMem(p, f.Mem)
	if mem == nil || f.Offset < 0 || f.Offset >= mem.Size {
		return 0, programmer.Fail(programmer.ErrConfiguration)
	}
	b, res := pgm.ReadByte(p, mem, uint32(f.Offset))
	if !res.IsOK() {
		return 0, res
	}
	return int((b & f.Mask) >> f.Shift), programmer.Ok(1)
}

// SetConfigValue read-modify-writes f's target byte so that
// (byte & mask) >> shift == value, warning (via warn, which may be nil) if
// value has bits outside mask>>shift. The write is skipped if the
// resulting byte already equals the current one.
func SetConfigValue(pgm programmer.Programmer, p *part.Part, f Field, value int, warn func(string)) programmer.Result {
	mem := part.LocateMem(p, f.Mem)
	if mem == nil || f.Offset < 0 || f.Offset >= mem.Size {
		return programmer.Fail(programmer.ErrConfiguration)
	}

	maxVal := int(f.Mask >> f.Shift)
	if value < 0 || value > maxVal {
		if warn != nil {
			warn(fmt.Sprintf("value %d for %s exceeds field width (max %d)", value, f.Name, maxVal))
		}
	}

	cur, res := pgm.ReadByte(p, mem, uint32(f.Offset))
	if !res.IsOK() {
		return res
	}

	next := (cur &^ f.Mask) | (uint8(value)<<f.Shift)&f.Mask
	if next == cur {
		return programmer.Ok(0)
	}
	return pgm.WriteByte(p, mem, uint32(f.Offset), next)
}

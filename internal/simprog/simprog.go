/*
 * avrcore - Simulated programmer for tests and CLI demos
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

// Package simprog is a simulated in-process Programmer, standing in for a
// physical driver in tests and in the CLI demo, which always attaches it
// and picks its behaviour with the --behavior flag. It can
// impersonate three device behaviours: a normal memory that lifts bits
// freely, a NOR-like memory that can only clear bits and has no page
// erase (forcing a chip-erase escalation), and a NOR-like memory that
// does support page erase.
package simprog

import (
	"github.com/nwoolley/avrcore/part"
	"github.com/nwoolley/avrcore/programmer"
)

// WriteBehavior selects how Programmer.PagedWrite reconciles a page.
type WriteBehavior int

const (
	// WriteNormal replaces device bytes outright, as most real flash and
	// EEPROM implementations present themselves after an erase cycle.
	WriteNormal WriteBehavior = iota
	// WriteAndOnly ANDs new data into the device page and never offers
	// page erase, forcing the flush engine to escalate to chip erase.
	WriteAndOnly
	// WriteAndWithPageErase ANDs new data in but honours PageErase.
	WriteAndWithPageErase
)

// Call records one paged/erase operation for assertions in tests.
type Call struct {
	Op   string // "paged_write", "paged_read", "page_erase", "chip_erase"
	Mem  string
	Base uint32
	N    int
}

// Programmer is the simulated driver.
type Programmer struct {
	Behavior WriteBehavior
	Modes    part.Mode

	device map[string][]byte // canonical memory name -> device-side bytes
	locked map[string]func(addr uint32) bool

	Calls []Call
}

// New creates a simulated programmer with an empty (0xFF) device image for
// every memory in p.
func New(p *part.Part, behavior WriteBehavior) *Programmer {
	s := &Programmer{
		Behavior: behavior,
		device:   make(map[string][]byte),
		locked:   make(map[string]func(addr uint32) bool),
	}
	for _, m := range p.Memories {
		buf := make([]byte, m.Size)
		for i := range buf {
			buf[i] = 0xff
		}
		s.device[m.Name] = buf
	}
	return s
}

// SetDeviceByte pokes the device-side image directly, modelling
// pre-existing device contents without going through the driver API.
func (s *Programmer) SetDeviceByte(memName string, addr uint32, v byte) {
	s.device[memName][addr] = v
}

// DeviceByte reads the device-side image directly (test inspection only).
func (s *Programmer) DeviceByte(memName string, addr uint32) byte {
	return s.device[memName][addr]
}

// LockRange makes addresses in [lo, hi) readonly-vetoed for memName.
func (s *Programmer) LockRange(memName string, lo, hi uint32) {
	s.locked[memName] = func(addr uint32) bool { return addr >= lo && addr < hi }
}

func (s *Programmer) ReadByte(_ *part.Part, mem *part.Memory, addr uint32) (byte, programmer.Result) {
	buf := s.device[mem.Name]
	if addr >= uint32(len(buf)) {
		return 0, programmer.Fail(programmer.ErrOutOfRange)
	}
	return buf[addr], programmer.Ok(1)
}

func (s *Programmer) WriteByte(_ *part.Part, mem *part.Memory, addr uint32, data byte) programmer.Result {
	buf := s.device[mem.Name]
	if addr >= uint32(len(buf)) {
		return programmer.Fail(programmer.ErrOutOfRange)
	}
	if s.Behavior == WriteNormal {
		buf[addr] = data
	} else {
		buf[addr] &= data
	}
	return programmer.Ok(1)
}

func (s *Programmer) ChipErase(p *part.Part) programmer.Result {
	s.Calls = append(s.Calls, Call{Op: "chip_erase"})
	for _, m := range p.Memories {
		if m.Name != "flash" && m.Name != "eeprom" {
			continue
		}
		buf := s.device[m.Name]
		for i := range buf {
			buf[i] = 0xff
		}
	}
	return programmer.Ok(0)
}

func (s *Programmer) ProgModes() part.Mode { return s.Modes }

func (s *Programmer) HasPagedLoad() bool  { return true }
func (s *Programmer) HasPagedWrite() bool { return true }
func (s *Programmer) HasPageErase() bool  { return s.Behavior == WriteAndWithPageErase }
func (s *Programmer) HasReadonlyCheck() bool {
	return len(s.locked) > 0
}

func (s *Programmer) PagedLoad(_ *part.Part, mem *part.Memory, pageSize int, base uint32, n int) (int, programmer.Result) {
	s.Calls = append(s.Calls, Call{Op: "paged_read", Mem: mem.Name, Base: base, N: n})
	buf := s.device[mem.Name]
	copy(mem.Buf[base:int(base)+n], buf[base:int(base)+n])
	return n, programmer.Ok(n)
}

func (s *Programmer) PagedWrite(_ *part.Part, mem *part.Memory, pageSize int, base uint32, n int) (int, programmer.Result) {
	s.Calls = append(s.Calls, Call{Op: "paged_write", Mem: mem.Name, Base: base, N: n})
	buf := s.device[mem.Name]
	data := mem.Buf[base : int(base)+n]
	if s.Behavior == WriteNormal {
		copy(buf[base:int(base)+n], data)
	} else {
		for i := 0; i < n; i++ {
			buf[int(base)+i] &= data[i]
		}
	}
	return n, programmer.Ok(n)
}

func (s *Programmer) PageErase(_ *part.Part, mem *part.Memory, addr uint32) programmer.Result {
	if s.Behavior != WriteAndWithPageErase {
		return programmer.Fail(programmer.ErrConfiguration)
	}
	pageSize := mem.PageSize
	base := (addr / uint32(pageSize)) * uint32(pageSize)
	s.Calls = append(s.Calls, Call{Op: "page_erase", Mem: mem.Name, Base: base, N: pageSize})
	buf := s.device[mem.Name]
	for i := 0; i < pageSize; i++ {
		buf[int(base)+i] = 0xff
	}
	return programmer.Ok(0)
}

func (s *Programmer) Readonly(_ *part.Part, mem *part.Memory, addr uint32) bool {
	f, ok := s.locked[mem.Name]
	if !ok {
		return false
	}
	return f(addr)
}

/*
 * avrcore - Part/memory model
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

// Package part holds the purely declarative description of one target: its
// memories, their sizes and opcodes, and the programming modes it supports.
// Nothing in this package talks to a device.
package part

import "github.com/nwoolley/avrcore/bitengine"

// Mode is a bitmask of the programming interfaces a part supports.
type Mode uint32

const (
	ModeISP Mode = 1 << iota
	ModeTPI
	ModePDI
	ModeUPDI
	ModeJTAG
	ModeHVSP
	ModeHVPP
	ModeDebugWIRE
	ModeSPM // The "programmer" is firmware running on the target itself.
)

// PartOpKind indexes the part-level opcode table for ISP actions that are
// not tied to any one memory (program-enable, chip-erase, poll-ready, ...).
type PartOpKind int

const (
	OpPgmEnable PartOpKind = iota
	OpChipErase
	OpPollReady
	numPartOps
)

// Memory is a named region of a part's address space.
type Memory struct {
	Name          string
	Size          int
	PageSize      int
	Offset        int
	WordAddressed bool // True for flash-class memories, addressed in words.

	Ops map[bitengine.AddrClass]*bitengine.Opcode // Per-opcode pointers; absent entries are nil.

	MinWriteDelayUS int
	MaxWriteDelayUS int

	Buf  []byte // Host-side image of the memory.
	Tags []byte // One byte per Buf byte: non-zero if the user wrote it explicitly.
}

// Alias maps an alternate memory name onto a canonical Memory name, e.g.
// "userrow" onto "usersig".
type Alias struct {
	Name   string
	Target string
}

// Part describes one target device.
type Part struct {
	Name     string
	Memories []*Memory
	Aliases  []Alias
	Modes    Mode

	Signature [3]byte

	NBootSections   int
	BootSectionSize int

	Ops [numPartOps]*bitengine.Opcode

	Parent *Part
}

// boot section size fallback constants for the bootloader-region estimate
// (spec.md DESIGN NOTES, "Bootloader region estimate").
const (
	bootFallbackReserve = 16384 // bytes reserved when flash > 32768
	bootFallbackNumer   = 3     // else start at flash*3/4 (top quarter), rounded to a page
	bootFallbackDenom   = 4
	bootFallbackMinSize = 32768
)

// NewMemory allocates a Memory with the given name, size, page size and
// offset, an empty opcode map, and its buffer and tag array sized to size
// and zeroed.
func NewMemory(name string, size, pageSize, offset int) *Memory {
	return &Memory{
		Name:     name,
		Size:     size,
		PageSize: pageSize,
		Offset:   offset,
		Ops:      make(map[bitengine.AddrClass]*bitengine.Opcode),
		Buf:      make([]byte, size),
		Tags:     make([]byte, size),
	}
}

// LocateMemNoAlias finds a memory by its exact, canonical name.
func LocateMemNoAlias(p *Part, name string) *Memory {
	for _, m := range p.Memories {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// LocateMemAlias resolves name through the alias table only, returning the
// target memory it maps to.
func LocateMemAlias(p *Part, name string) *Memory {
	for _, a := range p.Aliases {
		if a.Name == name {
			return LocateMemNoAlias(p, a.Target)
		}
	}
	return nil
}

// LocateMem finds a memory by exact name first, falling back to the alias
// table.
func LocateMem(p *Part, name string) *Memory {
	if m := LocateMemNoAlias(p, name); m != nil {
		return m
	}
	return LocateMemAlias(p, name)
}

// cacheableBaseNames are the memory classes the write-back cache knows how
// to materialise and reconcile.
var cacheableBaseNames = map[string]bool{
	"flash":       true,
	"application": true, // XMEGA flash sub-region
	"apptable":    true, // XMEGA flash sub-region
	"boot":        true, // XMEGA flash sub-region
	"eeprom":      true,
	"bootrow":     true,
	"usersig":     true,
}

// IsPagedType reports whether mem belongs to one of the four cacheable
// memory classes (including their aliases, e.g. usersig/userrow).
func IsPagedType(mem *Memory) bool {
	if mem == nil {
		return false
	}
	return cacheableBaseNames[mem.Name]
}

// pagedAccessProvider is satisfied by a programmer that can load and write
// whole pages; it is defined here (rather than imported from package
// programmer) to keep part a leaf package with no dependency on the
// programmer contract.
type pagedAccessProvider interface {
	HasPagedLoad() bool
	HasPagedWrite() bool
}

// HasPagedAccess reports whether mem supports paged access on pgm: the
// memory must be one of the four cacheable classes, and the programmer must
// expose both paged_load and paged_write.
func HasPagedAccess(pgm pagedAccessProvider, mem *Memory) bool {
	return IsPagedType(mem) && pgm.HasPagedLoad() && pgm.HasPagedWrite()
}

// DataOffset returns the base address PDI/UPDI parts apply to all memory
// addresses; other programming modes use address 0.
func DataOffset(p *Part) uint32 {
	if p.Modes&(ModePDI|ModeUPDI) != 0 {
		return 0x1000000
	}
	return 0
}

// BootloaderRegionStart estimates the first flash address occupied by the
// bootloader, for parts that are themselves an SPM programmer and so
// cannot overwrite their own code region during a chip-erase. This mirrors
// avrdude's loose heuristic (spec.md DESIGN NOTES): prefer the part's
// declared boot sections; otherwise fall back to flash-16KiB for larger
// parts, or the top quarter of flash for smaller ones, rounded down to a
// page boundary.
func BootloaderRegionStart(mem *Memory, p *Part) int {
	if p.NBootSections > 0 && p.BootSectionSize > 0 {
		size := p.NBootSections * p.BootSectionSize
		start := mem.Size - size
		return roundDownToPage(start, mem.PageSize)
	}

	var start int
	if mem.Size > bootFallbackMinSize {
		start = mem.Size - bootFallbackReserve
	} else {
		start = mem.Size * bootFallbackNumer / bootFallbackDenom
	}
	return roundDownToPage(start, mem.PageSize)
}

func roundDownToPage(addr, pageSize int) int {
	if pageSize <= 1 {
		return addr
	}
	return (addr / pageSize) * pageSize
}

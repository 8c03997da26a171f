/*
 * avrcore - Per-memory write-back cache
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

// Package cache emulates byte-level random access over programmers that
// only support page-granular I/O. It maps each of the four cacheable
// memory classes to a local "intended" image (Cont) and a "last observed
// device image" (Copy), materialising pages lazily through package pager.
//
// The flush/erase write-back policy lives in flush.go, a separate file in
// this same package: the two are tightly coupled through the cache's page
// state (dirty detection, iscached bits) and keeping them in one package
// avoids a false split along a seam that has no natural API boundary.
package cache

import (
	"log/slog"

	"github.com/nwoolley/avrcore/internal/logging"
	"github.com/nwoolley/avrcore/pager"
	"github.com/nwoolley/avrcore/part"
	"github.com/nwoolley/avrcore/programmer"
)

// Class identifies one of the four cacheable memory classes.
type Class int

const (
	ClassFlash Class = iota
	ClassEEPROM
	ClassBootrow
	ClassUserSig
)

func (c Class) String() string {
	switch c {
	case ClassFlash:
		return "flash"
	case ClassEEPROM:
		return "eeprom"
	case ClassBootrow:
		return "bootrow"
	case ClassUserSig:
		return "usersig"
	default:
		return "unknown"
	}
}

// classOf maps a memory name onto the cache class it belongs to, including
// XMEGA flash sub-memories which all share the flash cache.
func classOf(mem *part.Memory) (Class, bool) {
	switch mem.Name {
	case "flash", "application", "apptable", "boot":
		return ClassFlash, true
	case "eeprom":
		return ClassEEPROM, true
	case "bootrow":
		return ClassBootrow, true
	case "usersig":
		return ClassUserSig, true
	default:
		return 0, false
	}
}

// Cache is the write-back state for one memory class.
type Cache struct {
	Class    Class
	Size     int
	PageSize int
	Offset   int

	Cont     []byte // Intended device contents.
	Copy     []byte // Last observed device contents.
	IsCached []bool // Per-page: has this page been materialised.
}

func newCache(mem *part.Memory, class Class) *Cache {
	pages := mem.Size / mem.PageSize
	return &Cache{
		Class:    class,
		Size:     mem.Size,
		PageSize: mem.PageSize,
		Offset:   mem.Offset,
		Cont:     make([]byte, mem.Size),
		Copy:     make([]byte, mem.Size),
		IsCached: make([]bool, pages),
	}
}

func (c *Cache) pageCount() int { return c.Size / c.PageSize }

// localAddr translates a memory-relative address into this cache's own
// coordinate frame; multiple memories (the XMEGA flash sub-regions) can
// share one cache at different offsets. Out-of-range is a configuration
// error, per spec, not a runtime one.
func (c *Cache) localAddr(addr uint32, mem *part.Memory) (uint32, programmer.Result) {
	ca := int64(addr) + int64(mem.Offset) - int64(c.Offset)
	if ca < 0 || ca >= int64(c.Size) {
		return 0, programmer.Fail(programmer.ErrConfiguration)
	}
	return uint32(ca), programmer.Ok(0)
}

func (c *Cache) memAddr(ca uint32, mem *part.Memory) uint32 {
	return uint32(int64(ca) - int64(mem.Offset) + int64(c.Offset))
}

// ensurePage materialises the page containing cache-local address ca if it
// has not been read from the device yet, mirroring it into both Cont and
// Copy so the flush engine can later diff "what we want" against "what was
// last seen".
func (c *Cache) ensurePage(pgm programmer.Programmer, p *part.Part, mem *part.Memory, ca uint32) programmer.Result {
	pageIdx := int(ca) / c.PageSize
	if c.IsCached[pageIdx] {
		return programmer.Ok(0)
	}

	base := uint32(pageIdx * c.PageSize)
	memAddr := c.memAddr(base, mem)

	buf := make([]byte, c.PageSize)
	res := pager.ReadPageDefault(pgm, p, mem, memAddr, buf)
	if !res.IsOK() {
		return res
	}

	copy(c.Cont[base:int(base)+c.PageSize], buf)
	copy(c.Copy[base:int(base)+c.PageSize], buf)
	c.IsCached[pageIdx] = true
	return programmer.Ok(c.PageSize)
}

// Store owns the (at most four) per-class caches that hang off one
// programmer handle's lifetime. It is created once per handle; per
// spec.md's design notes, making this a plain value (not module-level
// state) is what lets two handles run independently.
type Store struct {
	caches map[Class]*Cache
	logger *slog.Logger

	// DebugMask gates logging.Debugf tracing from this store and its
	// flush engine; zero value (no bits set) means silent, matching the
	// default off state of a CLI's --debug flag.
	DebugMask logging.Mask
}

// NewStore creates an empty cache store. logger may be nil, in which case
// slog.Default() is used.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{caches: make(map[Class]*Cache), logger: logger}
}

// cacheFor returns the cache for mem's class, creating it on first use.
// The second return is false if mem does not belong to a cacheable class.
func (s *Store) cacheFor(mem *part.Memory) (*Cache, bool) {
	class, ok := classOf(mem)
	if !ok {
		return nil, false
	}
	c, ok := s.caches[class]
	if !ok {
		c = newCache(mem, class)
		s.caches[class] = c
	}
	return c, true
}

// Get returns the cache already created for class, or nil if that class
// has never been touched.
func (s *Store) Get(class Class) *Cache { return s.caches[class] }

// HasPagedAccess reports whether mem supports paged access on pgm.
func (s *Store) HasPagedAccess(pgm programmer.Programmer, mem *part.Memory) bool {
	return part.HasPagedAccess(pgm, mem)
}

// ReadByteCached reads one byte through the cache. Non-cacheable memories
// delegate straight to the programmer. An out-of-range address flushes all
// pending writes and synthesises a zero byte, the "out-of-band read
// flushes writes" escape hatch terminal commands use.
func (s *Store) ReadByteCached(pgm programmer.Programmer, p *part.Part, mem *part.Memory, addr uint32) (byte, programmer.Result) {
	if !part.IsPagedType(mem) {
		return pgm.ReadByte(p, mem, addr)
	}

	if addr >= uint32(mem.Size) {
		s.logger.Debug("read out of range, flushing", "mem", mem.Name, "addr", addr)
		return 0, s.FlushCache(pgm, p)
	}

	c, _ := s.cacheFor(mem)
	ca, res := c.localAddr(addr, mem)
	if !res.IsOK() {
		return 0, res
	}
	logging.Debugf(s.logger, s.DebugMask, logging.MaskCache, "read", "mem", mem.Name, "addr", addr)
	if res := c.ensurePage(pgm, p, mem, ca); !res.IsOK() {
		return 0, res
	}
	return c.Cont[ca], programmer.Ok(1)
}

// WriteByteCached writes one byte through the cache. A readonly veto from
// the programmer is a soft failure, not a hard one, so bulk writers can
// skip it and continue. The containing page is materialised first; writing
// the value it then already holds is a no-op.
func (s *Store) WriteByteCached(pgm programmer.Programmer, p *part.Part, mem *part.Memory, addr uint32, data byte) programmer.Result {
	if !part.IsPagedType(mem) {
		return pgm.WriteByte(p, mem, addr, data)
	}

	if addr >= uint32(mem.Size) {
		s.logger.Debug("write out of range, flushing", "mem", mem.Name, "addr", addr)
		return s.FlushCache(pgm, p)
	}

	c, _ := s.cacheFor(mem)
	ca, res := c.localAddr(addr, mem)
	if !res.IsOK() {
		return res
	}

	if programmer.Readonly(pgm, p, mem, addr) {
		return programmer.SoftFail()
	}

	logging.Debugf(s.logger, s.DebugMask, logging.MaskCache, "write", "mem", mem.Name, "addr", addr)

	if res := c.ensurePage(pgm, p, mem, ca); !res.IsOK() {
		return res
	}

	if c.Cont[ca] == data {
		return programmer.Ok(0)
	}
	c.Cont[ca] = data
	return programmer.Ok(1)
}

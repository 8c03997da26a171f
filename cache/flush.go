/*
 * avrcore - Flush engine: page-erase vs chip-erase strategy and reconciliation
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

package cache

import (
	"github.com/nwoolley/avrcore/internal/logging"
	"github.com/nwoolley/avrcore/pager"
	"github.com/nwoolley/avrcore/part"
	"github.com/nwoolley/avrcore/programmer"
)

// writeDiscipline is the strategy the flush probe settles on for one
// memory class during a single flush.
type writeDiscipline int

const (
	disciplineNormal writeDiscipline = iota
	disciplinePageErase
	disciplineChipErase
)

// IsAnd reports whether s1[i] == s2[i]&s3[i] for the first n bytes. The
// flush engine uses it at a single "problem" byte per memory to decide
// whether that byte's change can be reached by AND-only (bit-clearing)
// writes: cont is AND-reachable from copy iff cont == copy & cont.
func IsAnd(s1, s2, s3 []byte, n int) bool {
	for i := 0; i < n; i++ {
		if s1[i] != s2[i]&s3[i] {
			return false
		}
	}
	return true
}

// findMemory returns a representative *part.Memory for class, preferring
// the canonical name over an XMEGA sub-region alias.
func findMemory(p *part.Part, class Class) *part.Memory {
	var fallback *part.Memory
	for _, m := range p.Memories {
		c, ok := classOf(m)
		if !ok || c != class {
			continue
		}
		if m.Name == class.String() {
			return m
		}
		if fallback == nil {
			fallback = m
		}
	}
	return fallback
}

func dirtyPages(c *Cache) []int {
	var pages []int
	for pg := 0; pg < c.pageCount(); pg++ {
		if !c.IsCached[pg] {
			continue
		}
		base := pg * c.PageSize
		changed := false
		for i := base; i < base+c.PageSize; i++ {
			if c.Cont[i] != c.Copy[i] {
				changed = true
				break
			}
		}
		if changed {
			pages = append(pages, pg)
		}
	}
	return pages
}

// problemAddr returns the cache-local offset of the first byte in a dirty
// page whose change cannot be reached by AND-only writes, or -1 if every
// change in every dirty page is bit-clearing only.
func problemAddr(c *Cache, pages []int) int {
	for _, pg := range pages {
		base := pg * c.PageSize
		for i := base; i < base+c.PageSize; i++ {
			if c.Cont[i] == c.Copy[i] {
				continue
			}
			if !IsAnd(c.Cont[i:i+1], c.Copy[i:i+1], c.Cont[i:i+1], 1) {
				return i
			}
		}
	}
	return -1
}

// probePage writes the page containing ca and reads it back into Copy,
// reporting whether the device now matches Cont.
func probePage(pgm programmer.Programmer, p *part.Part, mem *part.Memory, c *Cache, ca int) (bool, programmer.Result) {
	pageIdx := ca / c.PageSize
	base := pageIdx * c.PageSize
	memAddr := c.memAddr(uint32(base), mem)

	if res := pager.WritePageDefault(pgm, p, mem, memAddr, c.Cont[base:base+c.PageSize]); !res.IsOK() {
		return false, res
	}
	readback := make([]byte, c.PageSize)
	if res := pager.ReadPageDefault(pgm, p, mem, memAddr, readback); !res.IsOK() {
		return false, res
	}
	copy(c.Copy[base:base+c.PageSize], readback)
	return IsAnd(c.Cont[base:base+c.PageSize], c.Copy[base:base+c.PageSize], c.Cont[base:base+c.PageSize], c.PageSize) &&
		bytesEqual(c.Cont[base:base+c.PageSize], c.Copy[base:base+c.PageSize]), programmer.Ok(c.PageSize)
}

func bytesEqual(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// perMemoryState accumulates the per-class diff/probe outcome used across
// the probe and write-back passes of one FlushCache call.
type perMemoryState struct {
	class      Class
	cache      *Cache
	mem        *part.Memory
	dirty      []int
	discipline writeDiscipline
}

// FlushCache is the only place cache writes reach the device. For each
// touched memory class it diffs cached pages against their last-observed
// contents, probes (at most) one problem byte to pick a write discipline,
// escalates to a whole-chip erase if neither direct writes nor page erase
// can set the bits the user wants, and finally writes back every dirty
// page, verifying each by read-back.
func (s *Store) FlushCache(pgm programmer.Programmer, p *part.Part) programmer.Result {
	logging.Debugf(s.logger, s.DebugMask, logging.MaskFlush, "flush starting")

	var states []*perMemoryState
	needChipErase := false

	for _, class := range []Class{ClassFlash, ClassEEPROM, ClassBootrow, ClassUserSig} {
		c := s.caches[class]
		if c == nil {
			continue
		}
		dirty := dirtyPages(c)
		if len(dirty) == 0 {
			continue
		}
		mem := findMemory(p, class)
		if mem == nil {
			return programmer.Fail(programmer.ErrConfiguration)
		}
		st := &perMemoryState{class: class, cache: c, mem: mem, dirty: dirty, discipline: disciplineNormal}
		states = append(states, st)

		pa := problemAddr(c, dirty)
		if pa < 0 {
			continue // every change is AND-reachable; direct writes suffice.
		}

		ok, res := probePage(pgm, p, mem, c, pa)
		if res.IsErr() {
			return res
		}
		if ok {
			continue // direct write lifted the bit; normal discipline.
		}

		if pgm.HasPageErase() {
			if _, res := programmer.PageErase(pgm, p, mem, c.memAddr(uint32(pa), mem)); res.IsErr() {
				return res
			}
			ok, res = probePage(pgm, p, mem, c, pa)
			if res.IsErr() {
				return res
			}
			if ok {
				st.discipline = disciplinePageErase
				continue
			}
		}

		if class != ClassFlash && class != ClassEEPROM {
			return programmer.Fail(programmer.ErrVerify)
		}
		st.discipline = disciplineChipErase
		needChipErase = true
	}

	if needChipErase {
		if res := s.runChipErase(pgm, p, states); !res.IsOK() {
			return res
		}
		states = s.mergeChipEraseDirty(p, states)
	}

	for _, st := range states {
		for _, pg := range st.dirty {
			if res := s.writeBackPage(pgm, p, st, pg, needChipErase); !res.IsOK() {
				return res
			}
		}
	}

	return programmer.Ok(0)
}

// mergeChipEraseDirty recomputes dirty pages for flash and EEPROM after
// runChipErase has reset Copy to the post-erase device state: pages
// preserveUnread materialised specifically to survive the erase, and
// pages that were clean before the erase but whose pre-erase content
// wasn't all-0xFF, both become dirty now and must reach the write-back
// pass alongside whatever was already dirty when FlushCache started.
func (s *Store) mergeChipEraseDirty(p *part.Part, states []*perMemoryState) []*perMemoryState {
	byClass := make(map[Class]*perMemoryState, len(states))
	for _, st := range states {
		byClass[st.class] = st
	}
	for _, class := range []Class{ClassFlash, ClassEEPROM} {
		c := s.caches[class]
		if c == nil {
			continue
		}
		dirty := dirtyPages(c)
		if len(dirty) == 0 {
			continue
		}
		if st, ok := byClass[class]; ok {
			st.dirty = dirty
			continue
		}
		mem := findMemory(p, class)
		if mem == nil {
			continue
		}
		states = append(states, &perMemoryState{class: class, cache: c, mem: mem, dirty: dirty, discipline: disciplineChipErase})
	}
	return states
}

// writeBackPage erases (if this memory uses page-erase discipline and no
// chip-erase already happened this flush), writes, and verifies one dirty
// page.
func (s *Store) writeBackPage(pgm programmer.Programmer, p *part.Part, st *perMemoryState, pg int, chipErased bool) programmer.Result {
	c := st.cache
	base := pg * c.PageSize
	memAddr := c.memAddr(uint32(base), st.mem)

	if st.discipline == disciplinePageErase && !chipErased {
		if _, res := programmer.PageErase(pgm, p, st.mem, memAddr); res.IsErr() {
			return res
		}
	}

	if res := pager.WritePageDefault(pgm, p, st.mem, memAddr, c.Cont[base:base+c.PageSize]); !res.IsOK() {
		return res
	}

	readback := make([]byte, c.PageSize)
	if res := pager.ReadPageDefault(pgm, p, st.mem, memAddr, readback); !res.IsOK() {
		return res
	}
	copy(c.Copy[base:base+c.PageSize], readback)
	if !bytesEqual(c.Cont[base:base+c.PageSize], c.Copy[base:base+c.PageSize]) {
		return programmer.Fail(programmer.ErrVerify)
	}
	return programmer.Ok(c.PageSize)
}

// runChipErase implements the chip-erase escalation: preserve pages the
// user never wrote, invoke the erase, then model its aftermath in Copy so
// verification doesn't misfire on bytes the erase legitimately changed (or,
// for a bootloader programmer, legitimately could not touch).
func (s *Store) runChipErase(pgm programmer.Programmer, p *part.Part, states []*perMemoryState) programmer.Result {
	flashMem := findMemory(p, ClassFlash)
	eepromMem := findMemory(p, ClassEEPROM)

	if flashMem != nil {
		if res := s.preserveUnread(pgm, p, flashMem, ClassFlash); !res.IsOK() {
			return res
		}
	}
	if eepromMem != nil {
		if res := s.preserveUnread(pgm, p, eepromMem, ClassEEPROM); !res.IsOK() {
			return res
		}
	}

	// Pick, before erasing, the first EEPROM page that was not all 0xFF, so
	// reading it back afterwards shows whether the erase cleared EEPROM.
	eepromProbePage := -1
	if eepromMem != nil {
		ec := s.caches[ClassEEPROM]
		for pg := 0; pg < ec.pageCount() && eepromProbePage < 0; pg++ {
			for i := pg * ec.PageSize; i < (pg+1)*ec.PageSize; i++ {
				if ec.Copy[i] != 0xff {
					eepromProbePage = pg
					break
				}
			}
		}
	}

	if res := pgm.ChipErase(p); !res.IsOK() {
		return res
	}

	if flashMem != nil {
		flashCache := s.caches[ClassFlash]
		for i := range flashCache.Copy {
			flashCache.Copy[i] = 0xff
		}
		if pgm.ProgModes()&part.ModeSPM != 0 {
			bootStart := part.BootloaderRegionStart(flashMem, p)
			for base := bootStart; base < flashMem.Size; base += flashMem.PageSize {
				buf := make([]byte, flashMem.PageSize)
				if res := pager.ReadPageDefault(pgm, p, flashMem, uint32(base), buf); res.IsOK() {
					copy(flashCache.Copy[base:base+flashMem.PageSize], buf)
				}
			}
		}
	}

	if eepromMem != nil && eepromProbePage >= 0 {
		eepromCache := s.caches[ClassEEPROM]
		pageSize := eepromCache.PageSize
		base := eepromProbePage * pageSize
		buf := make([]byte, pageSize)
		if res := pager.ReadPageDefault(pgm, p, eepromMem, uint32(base), buf); res.IsOK() {
			allFF := true
			for _, b := range buf {
				if b != 0xff {
					allFF = false
					break
				}
			}
			if allFF {
				for i := range eepromCache.Copy {
					eepromCache.Copy[i] = 0xff
				}
			}
			// else: EEPROM was preserved by the erase; leave Copy alone.
		}
	}

	return programmer.Ok(0)
}

// preserveUnread reads back every page of mem that has not already been
// materialised, so a following chip-erase does not silently discard data
// (e.g. an existing bootloader, or user EEPROM content) the cache never
// saw.
func (s *Store) preserveUnread(pgm programmer.Programmer, p *part.Part, mem *part.Memory, class Class) programmer.Result {
	c := s.caches[class]
	if c == nil {
		c, _ = s.cacheFor(mem)
	}
	for pg := 0; pg < c.pageCount(); pg++ {
		if c.IsCached[pg] {
			continue
		}
		base := uint32(pg * c.PageSize)
		if res := c.ensurePage(pgm, p, mem, base); !res.IsOK() {
			return res
		}
	}
	return programmer.Ok(0)
}

// ChipEraseCached is a user-initiated erase, distinct from FlushCache:
// discards pending flash/EEPROM writes and presets their caches to the
// post-erase state without ever writing a dirty page back first.
func (s *Store) ChipEraseCached(pgm programmer.Programmer, p *part.Part) programmer.Result {
	if res := pgm.ChipErase(p); !res.IsOK() {
		return res
	}

	if flashMem := findMemory(p, ClassFlash); flashMem != nil {
		c, _ := s.cacheFor(flashMem)
		if pgm.ProgModes()&part.ModeSPM != 0 {
			// The programmer cannot have erased its own code: force a
			// re-read on next access instead of assuming 0xFF.
			for i := range c.IsCached {
				c.IsCached[i] = false
			}
		} else {
			for i := range c.Cont {
				c.Cont[i] = 0xff
				c.Copy[i] = 0xff
			}
			for i := range c.IsCached {
				c.IsCached[i] = true
			}
		}
	}

	if eepromMem := findMemory(p, ClassEEPROM); eepromMem != nil {
		c, _ := s.cacheFor(eepromMem)
		probePage := -1
		for pg := 0; pg < c.pageCount(); pg++ {
			if !c.IsCached[pg] {
				continue
			}
			base := pg * c.PageSize
			dirty := false
			for i := base; i < base+c.PageSize; i++ {
				if c.Cont[i] != c.Copy[i] {
					dirty = true
					break
				}
			}
			if dirty {
				probePage = pg
				break
			}
		}
		if probePage >= 0 {
			base := uint32(probePage * c.PageSize)
			buf := make([]byte, c.PageSize)
			if res := pager.ReadPageDefault(pgm, p, eepromMem, base, buf); res.IsOK() {
				allFF := true
				for _, b := range buf {
					if b != 0xff {
						allFF = false
						break
					}
				}
				if allFF {
					for i := range c.Cont {
						c.Cont[i] = 0xff
						c.Copy[i] = 0xff
					}
					for i := range c.IsCached {
						c.IsCached[i] = true
					}
				} else {
					// EEPROM preserved: discard pending writes only.
					copy(c.Cont, c.Copy)
				}
			}
		} else {
			copy(c.Cont, c.Copy)
		}
	}

	return programmer.Ok(0)
}

// PageEraseCached erases a single page and re-materialises it, failing if
// the device does not come back all-0xFF.
func (s *Store) PageEraseCached(pgm programmer.Programmer, p *part.Part, mem *part.Memory, addr uint32) programmer.Result {
	c, ok := s.cacheFor(mem)
	if !ok {
		return programmer.Fail(programmer.ErrConfiguration)
	}
	ca, res := c.localAddr(addr, mem)
	if !res.IsOK() {
		return res
	}
	pageIdx := int(ca) / c.PageSize
	base := pageIdx * c.PageSize
	memAddr := c.memAddr(uint32(base), mem)

	if pgm.HasPageErase() {
		if _, res := programmer.PageErase(pgm, p, mem, memAddr); res.IsErr() {
			return res
		}
	} else if c.PageSize == 1 {
		if res := pgm.WriteByte(p, mem, memAddr, 0xff); !res.IsOK() {
			return res
		}
	} else {
		return programmer.Fail(programmer.ErrConfiguration)
	}

	c.IsCached[pageIdx] = false
	if res := c.ensurePage(pgm, p, mem, ca); !res.IsOK() {
		return res
	}
	for i := base; i < base+c.PageSize; i++ {
		if c.Copy[i] != 0xff {
			return programmer.Fail(programmer.ErrVerify)
		}
	}
	return programmer.Ok(c.PageSize)
}

// ResetCache frees all four caches without writing anything back; every
// pending modification is lost.
func (s *Store) ResetCache() {
	s.caches = make(map[Class]*Cache)
}

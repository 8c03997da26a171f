/*
 * avrcore - Programmer capability interface
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

// Package programmer is the abstract contract a physical-programmer driver
// offers the core: byte I/O, optional page I/O, and erase. The core never
// drives a wire itself; every driver (SPI, JTAG, UPDI, USBasp, STK500v2,
// serprog, avrftdi, ...) implements this interface.
package programmer

import (
	"errors"

	"github.com/nwoolley/avrcore/part"
)

// Error kinds. These are sentinels, not concrete types: wrap them with
// fmt.Errorf("...: %w", ErrTransport) to attach detail while staying
// matchable with errors.Is.
var (
	// ErrConfiguration marks an offset/page-size inconsistency: fatal and
	// unrecoverable at the call site, never retried.
	ErrConfiguration = errors.New("avrcore: configuration error")
	// ErrTransport marks a negative return from a programmer call.
	ErrTransport = errors.New("avrcore: transport error")
	// ErrVerify marks a post-write read-back that didn't match.
	ErrVerify = errors.New("avrcore: verification mismatch")
	// ErrOutOfRange marks an address outside a memory's bounds.
	ErrOutOfRange = errors.New("avrcore: address out of range")
)

// Status is the three-way result discipline of spec.md's "error sum"
// design note: success, a soft (expected, recoverable) failure, or a hard
// error that must propagate.
type Status int

const (
	StatusOK Status = iota
	StatusSoftFail
	StatusErr
)

// Result replaces the C core's -1/-2/LIBAVRDUDE_SOFTFAIL sentinel returns.
type Result struct {
	N      int // Byte count or payload for a successful call.
	Status Status
	Err    error // Populated when Status == StatusErr.
}

// Ok builds a successful Result carrying n (a byte count, or 0 for calls
// with no natural count).
func Ok(n int) Result { return Result{N: n, Status: StatusOK} }

// SoftFail builds the readonly-veto soft failure: distinct from a hard
// error so bulk "write everything" loops can skip and continue.
func SoftFail() Result { return Result{Status: StatusSoftFail} }

// Fail wraps err as a hard failure.
func Fail(err error) Result { return Result{Status: StatusErr, Err: err} }

func (r Result) IsOK() bool       { return r.Status == StatusOK }
func (r Result) IsSoftFail() bool { return r.Status == StatusSoftFail }
func (r Result) IsErr() bool      { return r.Status == StatusErr }

// Programmer is the mandatory surface every driver must implement.
type Programmer interface {
	ReadByte(p *part.Part, mem *part.Memory, addr uint32) (byte, Result)
	WriteByte(p *part.Part, mem *part.Memory, addr uint32, data byte) Result
	ChipErase(p *part.Part) Result
	ProgModes() part.Mode

	// HasPagedLoad/HasPagedWrite/HasPageErase/HasReadonlyCheck let the
	// core ask, in the manner of part.HasPagedAccess, whether an optional
	// capability below is actually wired up, without resorting to a type
	// assertion at every call site. A driver that always answers false
	// for one of these must not implement the matching optional interface.
	HasPagedLoad() bool
	HasPagedWrite() bool
	HasPageErase() bool
	HasReadonlyCheck() bool
}

// PagedLoader is implemented by programmers that can load a whole page in
// one transport round-trip.
type PagedLoader interface {
	PagedLoad(p *part.Part, mem *part.Memory, pageSize int, base uint32, n int) (int, Result)
}

// PagedWriter is implemented by programmers that can write a whole page in
// one transport round-trip.
type PagedWriter interface {
	PagedWrite(p *part.Part, mem *part.Memory, pageSize int, base uint32, n int) (int, Result)
}

// PageEraser is implemented by programmers that can erase a single page
// without erasing the whole chip.
type PageEraser interface {
	PageErase(p *part.Part, mem *part.Memory, addr uint32) Result
}

// ReadonlyChecker is implemented by programmers that can veto a write to a
// specific address (e.g. a locked bootloader section).
type ReadonlyChecker interface {
	Readonly(p *part.Part, mem *part.Memory, addr uint32) bool
}

// PagedLoad/PagedWrite/PageErase/Readonly adapt the optional interfaces
// into plain calls the cache/flush/pager packages can make without each
// repeating the type assertion and capability check.

// PagedLoad calls pgm's PagedLoad if it both declares and implements the
// capability; otherwise it returns a configuration error.
func PagedLoad(pgm Programmer, p *part.Part, mem *part.Memory, pageSize int, base uint32, n int) (int, Result) {
	if !pgm.HasPagedLoad() {
		return 0, Fail(ErrConfiguration)
	}
	pl, ok := pgm.(PagedLoader)
	if !ok {
		return 0, Fail(ErrConfiguration)
	}
	return pl.PagedLoad(p, mem, pageSize, base, n)
}

// PagedWrite calls pgm's PagedWrite if it both declares and implements the
// capability; otherwise it returns a configuration error.
func PagedWrite(pgm Programmer, p *part.Part, mem *part.Memory, pageSize int, base uint32, n int) (int, Result) {
	if !pgm.HasPagedWrite() {
		return 0, Fail(ErrConfiguration)
	}
	pw, ok := pgm.(PagedWriter)
	if !ok {
		return 0, Fail(ErrConfiguration)
	}
	return pw.PagedWrite(p, mem, pageSize, base, n)
}

// PageErase calls pgm's PageErase if available.
func PageErase(pgm Programmer, p *part.Part, mem *part.Memory, addr uint32) (bool, Result) {
	if !pgm.HasPageErase() {
		return false, Result{}
	}
	pe, ok := pgm.(PageEraser)
	if !ok {
		return false, Result{}
	}
	return true, pe.PageErase(p, mem, addr)
}

// Readonly reports whether pgm vetoes a write to addr; false if the
// programmer exposes no such predicate.
func Readonly(pgm Programmer, p *part.Part, mem *part.Memory, addr uint32) bool {
	if !pgm.HasReadonlyCheck() {
		return false
	}
	rc, ok := pgm.(ReadonlyChecker)
	if !ok {
		return false
	}
	return rc.Readonly(p, mem, addr)
}

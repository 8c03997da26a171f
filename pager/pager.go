/*
 * avrcore - Default page-access helper
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

// Package pager provides the default page read/write helper that snapshots
// and restores a memory's host-side buffer around a driver's paged_load or
// paged_write call, falling back to byte loops when a paged read fails.
// Programmer drivers work directly out of mem.Buf; this
// snapshot/restore discipline is what lets the cache package treat mem.Buf
// as read-only across the call.
package pager

import (
	"github.com/nwoolley/avrcore/part"
	"github.com/nwoolley/avrcore/programmer"
)

// ReadPageDefault reads the page containing addr into buf. Without paged
// access it fails with a configuration error. If paged_load fails, it
// retries byte-wise through ReadByte; any single byte failure fails the
// whole read.
func ReadPageDefault(pgm programmer.Programmer, p *part.Part, mem *part.Memory, addr uint32, buf []byte) programmer.Result {
	if !part.HasPagedAccess(pgm, mem) || addr >= uint32(mem.Size) {
		return programmer.Fail(programmer.ErrConfiguration)
	}

	if mem.PageSize == 1 {
		b, res := pgm.ReadByte(p, mem, addr)
		if res.IsOK() {
			buf[0] = b
		}
		return res
	}

	base := (addr / uint32(mem.PageSize)) * uint32(mem.PageSize)
	n := mem.PageSize

	snapshot := make([]byte, n)
	copy(snapshot, mem.Buf[base:int(base)+n])
	defer copy(mem.Buf[base:int(base)+n], snapshot)

	_, res := programmer.PagedLoad(pgm, p, mem, mem.PageSize, base, n)
	if res.IsOK() {
		copy(buf[:n], mem.Buf[base:int(base)+n])
		return res
	}

	// Fall back to byte-wise reads; ReadByte is part of the mandatory
	// Programmer surface, so this fallback is always available.
	for i := 0; i < n; i++ {
		b, r := pgm.ReadByte(p, mem, base+uint32(i))
		if !r.IsOK() {
			return r
		}
		buf[i] = b
	}
	return programmer.Ok(n)
}

// WritePageDefault writes data as the page containing addr. It snapshots
// mem.Buf, stages data into it for the driver's paged_write call, then
// restores the snapshot; there is no byte-wise fallback at this layer.
func WritePageDefault(pgm programmer.Programmer, p *part.Part, mem *part.Memory, addr uint32, data []byte) programmer.Result {
	if !part.HasPagedAccess(pgm, mem) || addr >= uint32(mem.Size) {
		return programmer.Fail(programmer.ErrConfiguration)
	}

	if mem.PageSize == 1 {
		return pgm.WriteByte(p, mem, addr, data[0])
	}

	base := (addr / uint32(mem.PageSize)) * uint32(mem.PageSize)
	n := mem.PageSize

	snapshot := make([]byte, n)
	copy(snapshot, mem.Buf[base:int(base)+n])
	defer copy(mem.Buf[base:int(base)+n], snapshot)

	copy(mem.Buf[base:int(base)+n], data[:n])
	_, res := programmer.PagedWrite(pgm, p, mem, mem.PageSize, base, n)
	return res
}

/*
 * avrcore - Opcode bit-assembly engine
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

// Package bitengine assembles and decodes the 4-byte ISP command words that
// every part declares opcodes for. An Opcode is a declarative 32-bit layout;
// the functions here are pure and tolerant of missing bit kinds.
package bitengine

// Kind is the role a single command bit plays in an opcode.
type Kind int

const (
	Ignore  Kind = iota // Don't-care bit, wire value fixed to 0.
	Value               // Fixed 0/1 payload bit.
	Address             // Pulls one bit of the target address.
	Input               // Pulls one bit of the data byte being sent.
	Output              // Delivers one bit of the response byte.
)

// CmdBit is one position in a 32-bit opcode layout.
type CmdBit struct {
	Kind  Kind
	Value uint8 // Payload for Value bits (0 or 1).
	Bitno int   // Source/destination bit number for Address/Input/Output.
}

// Opcode is the declarative layout of one 4-byte ISP instruction. Index 31
// is the MSB of wire byte 0; index 0 is the LSB of wire byte 3.
type Opcode [32]CmdBit

// AddrClass identifies which address-bit range an opcode needs, since that
// range depends on whether the opcode addresses a whole memory, a page
// within it, or the page-index extension above 16 bits of ISP address.
type AddrClass int

const (
	AddrRead AddrClass = iota
	AddrWrite
	AddrLoadPageLo
	AddrLoadPageHi
	AddrWritePage
	AddrLoadExtAddr
)

// wireByte returns which of the 4 wire bytes holds opcode bit i.
func wireByte(i int) int { return 3 - i/8 }

// wireBit returns the bit position within wireByte(i) for opcode bit i.
func wireBit(i int) uint { return uint(i % 8) }

func setWireBit(cmd *[4]byte, i int, v uint8) {
	b := wireByte(i)
	shift := wireBit(i)
	if v != 0 {
		cmd[b] |= 1 << shift
	} else {
		cmd[b] &^= 1 << shift
	}
}

func getWireBit(cmd *[4]byte, i int) uint8 {
	b := wireByte(i)
	shift := wireBit(i)
	return (cmd[b] >> shift) & 1
}

// SetBits lays down every Value and Ignore bit of op into cmd. Address,
// Input and Output positions are left untouched so callers can compose
// SetBits with SetAddr/SetInput in any order.
func SetBits(op *Opcode, cmd *[4]byte) {
	for i := 0; i < 32; i++ {
		switch op[i].Kind {
		case Value:
			setWireBit(cmd, i, op[i].Value)
		case Ignore:
			setWireBit(cmd, i, 0)
		}
	}
}

// SetAddr copies every bit of addr that op declares an Address position for.
func SetAddr(op *Opcode, cmd *[4]byte, addr uint32) {
	for i := 0; i < 32; i++ {
		if op[i].Kind != Address {
			continue
		}
		bn := op[i].Bitno
		setWireBit(cmd, i, uint8((addr>>uint(bn))&1))
	}
}

// bitsFor returns the number of bits needed to address n distinct byte or
// word locations, i.e. ceil(log2(n)); it returns 0 for n <= 1.
func bitsFor(n int) int {
	if n <= 1 {
		return 0
	}
	b := 0
	for (1 << uint(b)) < n {
		b++
	}
	return b
}

// addrRange computes the [lo, hi] address-bit span an opcode class needs,
// given the owning memory's byte size, page size, and whether the memory is
// word- rather than byte-addressed (flash on most parts).
func addrRange(class AddrClass, memSize, pageSize int, wordAddressed bool) (lo, hi int) {
	unit := func(n int) int {
		if wordAddressed {
			n /= 2
		}
		return n
	}

	switch class {
	case AddrLoadPageLo, AddrLoadPageHi:
		lo = 0
		hi = bitsFor(unit(pageSize)) - 1
	case AddrLoadExtAddr:
		lo = bitsFor(unit(pageSize))
		hi = bitsFor(unit(memSize)) - 1
	case AddrWritePage:
		lo = 0
		hi = bitsFor(memSize) - 1 // page base is a byte address even on flash
	default: // AddrRead, AddrWrite
		lo = 0
		hi = bitsFor(unit(memSize)) - 1
	}

	if hi < lo {
		hi = lo
	}
	if class != AddrLoadExtAddr && hi > 15 {
		hi = 15
	}
	return lo, hi
}

// SetAddrMem is SetAddr restricted to the address-bit range this opcode
// class actually needs. Bits outside [lo, hi] are cleared to 0 regardless
// of addr. It returns bn+1 for the lowest required bit bn the opcode fails
// to declare an Address position for, or 0 if the opcode covers the whole
// range.
func SetAddrMem(op *Opcode, class AddrClass, memSize, pageSize int, wordAddressed bool, cmd *[4]byte, addr uint32) int {
	lo, hi := addrRange(class, memSize, pageSize, wordAddressed)

	effAddr := addr
	if wordAddressed && class != AddrWritePage {
		effAddr >>= 1
	}

	have := make([]bool, hi+1)
	for i := 0; i < 32; i++ {
		if op[i].Kind != Address {
			continue
		}
		bn := op[i].Bitno
		if bn < lo || bn > hi {
			setWireBit(cmd, i, 0)
			continue
		}
		setWireBit(cmd, i, uint8((effAddr>>uint(bn))&1))
		have[bn] = true
	}

	for bn := lo; bn <= hi; bn++ {
		if !have[bn] {
			return bn + 1
		}
	}
	return 0
}

// SetInput copies every bit of data that op declares an Input position for.
func SetInput(op *Opcode, cmd *[4]byte, data uint8) {
	for i := 0; i < 32; i++ {
		if op[i].Kind != Input {
			continue
		}
		bn := op[i].Bitno
		setWireBit(cmd, i, (data>>uint(bn))&1)
	}
}

// GetOutput assembles a result byte from every Output bit op declares,
// reading the corresponding bit out of the 4-byte response res. Response
// positions op does not claim as Output leave the corresponding result bit
// at 0.
func GetOutput(op *Opcode, res *[4]byte) uint8 {
	var data uint8
	for i := 0; i < 32; i++ {
		if op[i].Kind != Output {
			continue
		}
		bn := op[i].Bitno
		if getWireBit(res, i) != 0 {
			data |= 1 << uint(bn)
		}
	}
	return data
}

// Intlog2 returns the bit position of the highest set bit of n, or -1 if
// n is 0 (spec's "-infinity", represented as a sentinel since Go has no
// integer infinity).
func Intlog2(n uint32) int {
	if n == 0 {
		return -1
	}
	pos := -1
	for n != 0 {
		pos++
		n >>= 1
	}
	return pos
}

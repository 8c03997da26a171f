/*
 * avrcore - Wrapper for slog
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

// Package logging wraps slog with a handler that always mirrors warnings
// and above to stderr, and mirrors debug/info lines too when a debug flag
// is set, while writing every level to a log file.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler writes formatted log lines to a file and conditionally to
// stderr.
type Handler struct {
	out   io.Writer
	h     slog.Handler
	mu    *sync.Mutex
	debug bool
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, debug: h.debug}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, debug: h.debug}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	formattedTime := r.Time.Format("2006/01/02 15:04:05")

	strs := []string{formattedTime, level, r.Message}
	if r.NumAttrs() != 0 {
		r.Attrs(func(a slog.Attr) bool {
			strs = append(strs, a.Key+"="+a.Value.String())
			return true
		})
	}
	line := strings.Join(strs, " ") + "\n"
	b := []byte(line)

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}
	if h.debug || r.Level >= slog.LevelWarn {
		_, err = os.Stderr.Write(b)
	}
	return err
}

// SetDebug toggles whether debug/info lines are also mirrored to stderr.
func (h *Handler) SetDebug(debug bool) { h.debug = debug }

// NewHandler builds a Handler writing to file (which may be nil to
// discard) at the given level, starting with debug mirroring off.
func NewHandler(file io.Writer, level slog.Level) *Handler {
	return &Handler{
		out: file,
		h:   slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}),
		mu:  &sync.Mutex{},
	}
}

// New builds a ready-to-use *slog.Logger backed by a Handler, and returns
// the handler too so callers can flip SetDebug at runtime.
func New(file io.Writer, level slog.Level) (*slog.Logger, *Handler) {
	h := NewHandler(file, level)
	return slog.New(h), h
}

// Mask is a bitmask of named debug-logging sources, so a CLI can turn on
// per-module tracing cheaply (--debug=cache,flush) without a full slog
// level change.
type Mask uint32

const (
	MaskCache Mask = 1 << iota
	MaskFlush
	MaskBits
)

var maskNames = map[string]Mask{
	"cache": MaskCache,
	"flush": MaskFlush,
	"bits":  MaskBits,
}

// ParseMask ORs together the masks named in a comma-separated list
// (e.g. "cache,flush"); an unrecognised name is ignored.
func ParseMask(names string) Mask {
	var m Mask
	start := 0
	for i := 0; i <= len(names); i++ {
		if i == len(names) || names[i] == ',' {
			if bit, ok := maskNames[names[start:i]]; ok {
				m |= bit
			}
			start = i + 1
		}
	}
	return m
}

// Debugf logs at debug level through logger only if bit is set in mask,
// so a module's tracing can be switched on independently of the global
// slog level.
func Debugf(logger *slog.Logger, mask, bit Mask, msg string, args ...any) {
	if mask&bit == 0 {
		return
	}
	logger.Debug(msg, args...)
}

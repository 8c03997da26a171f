/*
 * avrcore - Command-line demo driver
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

// Command avrcore drives a simulated AVR programmer handle through an
// interactive terminal, standing in for a real SPI/UPDI/JTAG driver until
// one is wired up. It exists to exercise cache, flush, and cfgvalue
// end-to-end without hardware.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	getopt "github.com/pborman/getopt/v2"

	"github.com/nwoolley/avrcore/cache"
	"github.com/nwoolley/avrcore/cfgvalue"
	"github.com/nwoolley/avrcore/internal/logging"
	"github.com/nwoolley/avrcore/internal/partcfg"
	"github.com/nwoolley/avrcore/internal/simprog"
	"github.com/nwoolley/avrcore/internal/terminal"
	"github.com/nwoolley/avrcore/part"
)

func main() {
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.StringLong("debug", 'd', "", "Debug sources to trace: cache,flush,bits")
	optBehavior := getopt.StringLong("behavior", 'b', "normal", "Simulated write behaviour: normal, and-only, and-page-erase")
	optPartFile := getopt.StringLong("part-file", 'p', "", "Directive file describing the part's memories; uses a built-in demo part if unset")
	optScript := getopt.StringLong("script", 's', "", "Run a scripted sequence of commands instead of the interactive terminal")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "avrcore: cannot create log file:", err)
			os.Exit(1)
		}
	}
	logger, handler := logging.New(file, slog.LevelDebug)
	slog.SetDefault(logger)
	handler.SetDebug(*optLogFile == "")
	debugMask := logging.ParseMask(*optDebug)

	behavior, err := parseBehavior(*optBehavior)
	if err != nil {
		fmt.Fprintln(os.Stderr, "avrcore:", err)
		os.Exit(1)
	}

	p, err := loadPart(*optPartFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "avrcore:", err)
		os.Exit(1)
	}
	pgm := simprog.New(p, behavior)
	store := cache.NewStore(logger)
	store.DebugMask = debugMask

	logger.Info("avrcore started", "part", p.Name, "behavior", *optBehavior)

	fields := demoFields()
	if *optPartFile != "" {
		// A loaded directive file only declares memories, not fuse/lock
		// bit layouts, so the config command has nothing to look up.
		fields = nil
	}

	session := &terminal.Session{
		Pgm:    pgm,
		Part:   p,
		Store:  store,
		Fields: fields,
	}

	if *optScript != "" {
		f, err := os.Open(*optScript)
		if err != nil {
			fmt.Fprintln(os.Stderr, "avrcore: cannot open script:", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := terminal.RunScript(f, session); err != nil {
			fmt.Fprintln(os.Stderr, "avrcore: script error:", err)
			os.Exit(1)
		}
	} else {
		terminal.Run(session)
	}

	logger.Info("avrcore exiting")
}

// loadPart returns the built-in demo part when partFile is empty, or the
// part described by the named directive file otherwise.
func loadPart(partFile string) (*part.Part, error) {
	if partFile == "" {
		return demoPart(), nil
	}
	f, err := os.Open(partFile)
	if err != nil {
		return nil, fmt.Errorf("cannot open part file: %w", err)
	}
	defer f.Close()
	return partcfg.LoadPart(f, strings.TrimSuffix(filepath.Base(partFile), filepath.Ext(partFile)))
}

func parseBehavior(name string) (simprog.WriteBehavior, error) {
	switch name {
	case "normal":
		return simprog.WriteNormal, nil
	case "and-only":
		return simprog.WriteAndOnly, nil
	case "and-page-erase":
		return simprog.WriteAndWithPageErase, nil
	default:
		return 0, fmt.Errorf("unknown behavior %q", name)
	}
}

// demoPart models a small ATmega-class target: paged flash and EEPROM,
// plus a three-byte fuse memory for cfgvalue demos.
func demoPart() *part.Part {
	flash := part.NewMemory("flash", 32768, 128, 0)
	flash.WordAddressed = true
	eeprom := part.NewMemory("eeprom", 1024, 4, 0)
	fuse := part.NewMemory("fuse", 3, 1, 0)

	return &part.Part{
		Name:     "atmega328p-demo",
		Memories: []*part.Memory{flash, eeprom, fuse},
		Modes:    part.ModeISP,
	}
}

func demoFields() []cfgvalue.Field {
	return []cfgvalue.Field{
		{Name: "CKSEL", Mem: "fuse", Offset: 0, Mask: 0x0f, Shift: 0},
		{Name: "SUT", Mem: "fuse", Offset: 0, Mask: 0x30, Shift: 4},
		{Name: "BODLEVEL", Mem: "fuse", Offset: 2, Mask: 0x07, Shift: 0},
	}
}

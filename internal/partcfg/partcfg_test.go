package partcfg

import (
	"strings"
	"testing"
)

const demoFile = `
# demo part directive file
flash size=32768 page=128 word
eeprom size=1024 page=4
fuse size=3 page=1
`

func TestLoadPartParsesMemories(t *testing.T) {
	p, err := LoadPart(strings.NewReader(demoFile), "atmega328p-demo")
	if err != nil {
		t.Fatalf("LoadPart failed: %v", err)
	}
	if len(p.Memories) != 3 {
		t.Fatalf("got %d memories, want 3", len(p.Memories))
	}
	flash := p.Memories[0]
	if flash.Name != "flash" || flash.Size != 32768 || flash.PageSize != 128 || !flash.WordAddressed {
		t.Errorf("flash = %+v", flash)
	}
	eeprom := p.Memories[1]
	if eeprom.Name != "eeprom" || eeprom.Size != 1024 || eeprom.PageSize != 4 || eeprom.WordAddressed {
		t.Errorf("eeprom = %+v", eeprom)
	}
}

func TestLoadPartRejectsMissingSize(t *testing.T) {
	_, err := LoadPart(strings.NewReader("flash page=128\n"), "bad")
	if err == nil {
		t.Error("expected error for missing size=")
	}
}

func TestLoadPartRejectsUnknownDirective(t *testing.T) {
	_, err := LoadPart(strings.NewReader("flash size=1024 bogus=1\n"), "bad")
	if err == nil {
		t.Error("expected error for unknown directive")
	}
}

func TestLoadPartRejectsEmptyFile(t *testing.T) {
	_, err := LoadPart(strings.NewReader("# just a comment\n"), "empty")
	if err == nil {
		t.Error("expected error for a file with no memories")
	}
}

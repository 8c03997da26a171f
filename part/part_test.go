package part

import "testing"

func testPart() *Part {
	p := &Part{Name: "attest"}
	flash := NewMemory("flash", 64*1024, 256, 0)
	flash.WordAddressed = true
	eeprom := NewMemory("eeprom", 2048, 8, 0)
	fuse := NewMemory("fuse", 3, 1, 0)
	usersig := NewMemory("usersig", 256, 256, 0)

	p.Memories = []*Memory{flash, eeprom, fuse, usersig}
	p.Aliases = []Alias{{Name: "userrow", Target: "usersig"}}
	p.Modes = ModeISP
	return p
}

func TestLocateMemExact(t *testing.T) {
	p := testPart()
	m := LocateMemNoAlias(p, "eeprom")
	if m == nil || m.Name != "eeprom" {
		t.Fatalf("expected to find eeprom, got %v", m)
	}
	if LocateMemNoAlias(p, "userrow") != nil {
		t.Errorf("alias name must not resolve through LocateMemNoAlias")
	}
}

func TestLocateMemAlias(t *testing.T) {
	p := testPart()
	m := LocateMemAlias(p, "userrow")
	if m == nil || m.Name != "usersig" {
		t.Fatalf("expected userrow to resolve to usersig, got %v", m)
	}
}

func TestLocateMemFallsBackToAlias(t *testing.T) {
	p := testPart()
	m := LocateMem(p, "userrow")
	if m == nil || m.Name != "usersig" {
		t.Fatalf("LocateMem should resolve aliases, got %v", m)
	}
	if LocateMem(p, "nope") != nil {
		t.Errorf("unknown name should resolve to nil")
	}
}

func TestIsPagedType(t *testing.T) {
	p := testPart()
	cases := map[string]bool{
		"flash":   true,
		"eeprom":  true,
		"usersig": true,
		"fuse":    false,
	}
	for name, want := range cases {
		m := LocateMemNoAlias(p, name)
		if got := IsPagedType(m); got != want {
			t.Errorf("IsPagedType(%s) = %v, want %v", name, got, want)
		}
	}
}

type fakeCaps struct{ load, write bool }

func (f fakeCaps) HasPagedLoad() bool  { return f.load }
func (f fakeCaps) HasPagedWrite() bool { return f.write }

func TestHasPagedAccess(t *testing.T) {
	p := testPart()
	flash := LocateMemNoAlias(p, "flash")
	fuse := LocateMemNoAlias(p, "fuse")

	if !HasPagedAccess(fakeCaps{true, true}, flash) {
		t.Errorf("flash with full capability should have paged access")
	}
	if HasPagedAccess(fakeCaps{true, false}, flash) {
		t.Errorf("flash without paged_write should not have paged access")
	}
	if HasPagedAccess(fakeCaps{true, true}, fuse) {
		t.Errorf("fuse is never a cacheable class")
	}
}

func TestDataOffset(t *testing.T) {
	p := testPart()
	if DataOffset(p) != 0 {
		t.Errorf("ISP part should have zero data offset")
	}
	p.Modes = ModeUPDI
	if DataOffset(p) != 0x1000000 {
		t.Errorf("UPDI part should offset data by 0x1000000")
	}
}

func TestBootloaderRegionStartDeclared(t *testing.T) {
	p := testPart()
	p.NBootSections = 2
	p.BootSectionSize = 512
	flash := LocateMemNoAlias(p, "flash")
	start := BootloaderRegionStart(flash, p)
	want := flash.Size - 2*512
	if start != want {
		t.Errorf("start = %d, want %d", start, want)
	}
}

func TestBootloaderRegionStartFallbackLarge(t *testing.T) {
	p := testPart()
	flash := LocateMemNoAlias(p, "flash") // 64KiB > 32768
	start := BootloaderRegionStart(flash, p)
	want := roundDownToPage(flash.Size-bootFallbackReserve, flash.PageSize)
	if start != want {
		t.Errorf("start = %d, want %d", start, want)
	}
}

func TestBootloaderRegionStartFallbackSmall(t *testing.T) {
	p := testPart()
	small := NewMemory("flash", 8192, 64, 0)
	start := BootloaderRegionStart(small, p)
	want := roundDownToPage(small.Size*3/4, small.PageSize)
	if start != want {
		t.Errorf("start = %d, want %d", start, want)
	}
}

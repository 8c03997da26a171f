package programmer

import (
	"testing"

	"github.com/nwoolley/avrcore/part"
)

// minimalProgrammer implements Programmer but no optional capabilities,
// exercising the "may be absent" paths.
type minimalProgrammer struct{}

func (minimalProgrammer) ReadByte(_ *part.Part, _ *part.Memory, _ uint32) (byte, Result) {
	return 0, Ok(1)
}
func (minimalProgrammer) WriteByte(_ *part.Part, _ *part.Memory, _ uint32, _ byte) Result {
	return Ok(1)
}
func (minimalProgrammer) ChipErase(_ *part.Part) Result { return Ok(0) }
func (minimalProgrammer) ProgModes() part.Mode          { return part.ModeISP }
func (minimalProgrammer) HasPagedLoad() bool            { return false }
func (minimalProgrammer) HasPagedWrite() bool           { return false }
func (minimalProgrammer) HasPageErase() bool            { return false }
func (minimalProgrammer) HasReadonlyCheck() bool        { return false }

func TestResultVariants(t *testing.T) {
	ok := Ok(5)
	if !ok.IsOK() || ok.N != 5 {
		t.Errorf("Ok(5) = %+v", ok)
	}
	sf := SoftFail()
	if !sf.IsSoftFail() {
		t.Errorf("SoftFail() should be soft-fail")
	}
	fail := Fail(ErrVerify)
	if !fail.IsErr() || fail.Err != ErrVerify {
		t.Errorf("Fail(ErrVerify) = %+v", fail)
	}
}

func TestOptionalCapabilitiesAbsent(t *testing.T) {
	pgm := minimalProgrammer{}
	p := &part.Part{}
	mem := part.NewMemory("flash", 256, 256, 0)

	if _, res := PagedLoad(pgm, p, mem, 256, 0, 256); !res.IsErr() {
		t.Errorf("PagedLoad on minimal programmer should hard-fail")
	}
	if _, res := PagedWrite(pgm, p, mem, 256, 0, 256); !res.IsErr() {
		t.Errorf("PagedWrite on minimal programmer should hard-fail")
	}
	if did, _ := PageErase(pgm, p, mem, 0); did {
		t.Errorf("PageErase must report it did not run when absent")
	}
	if Readonly(pgm, p, mem, 0) {
		t.Errorf("Readonly must default to false when absent")
	}
}

package wire

import (
	"bytes"
	"testing"
)

func TestUint64RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUint64(&buf, 0xdeadbeefcafebabe); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadUint64(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0xdeadbeefcafebabe {
		t.Errorf("got %x, want %x", got, uint64(0xdeadbeefcafebabe))
	}
}

func TestUint32RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	WriteUint32(&buf, 0x01020304)
	got, err := ReadUint32(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0x01020304 {
		t.Errorf("got %x, want %x", got, uint32(0x01020304))
	}
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteString(&buf, "hello, meow"); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadString(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "hello, meow" {
		t.Errorf("got %q", got)
	}
}

func TestEmptyStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	WriteString(&buf, "")
	got, err := ReadString(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestReadStringShort(t *testing.T) {
	var buf bytes.Buffer
	WriteUint64(&buf, 10) // claims 10 bytes, provides none
	if _, err := ReadString(&buf); err == nil {
		t.Error("expected short-read error")
	}
}

func TestReadStringInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	bad := []byte{0xff, 0xfe}
	WriteBytes(&buf, bad)
	if _, err := ReadString(&buf); err == nil {
		t.Error("expected invalid UTF-8 error")
	}
}

func TestMagicRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	WriteMagic(&buf, "MEOW")
	if err := ReadMagic(&buf, "MEOW"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMagicMismatch(t *testing.T) {
	var buf bytes.Buffer
	WriteMagic(&buf, "WOOF")
	if err := ReadMagic(&buf, "MEOW"); err == nil {
		t.Error("expected magic mismatch error")
	}
}

package textsource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	t.Run("ValidUTF8PassesThrough", func(t *testing.T) {
		in := []byte("héllo wörld")
		if got := Decode(in); got != "héllo wörld" {
			t.Errorf("Decode = %q", got)
		}
	})

	t.Run("InvalidBytesBecomeReplacementRunes", func(t *testing.T) {
		got := Decode([]byte{'a', 0xff, 0xfe, 'b'})
		if !strings.Contains(got, "�") {
			t.Errorf("expected replacement characters, got %q", got)
		}
		if !strings.HasPrefix(got, "a") || !strings.HasSuffix(got, "b") {
			t.Errorf("valid bytes should survive: %q", got)
		}
	})

	t.Run("TruncatedSequence", func(t *testing.T) {
		// 0xE2 0x82 is the start of a 3-byte sequence with the tail cut
		// off.
		got := Decode([]byte{0xe2, 0x82})
		if !strings.Contains(got, "�") {
			t.Errorf("expected replacement characters, got %q", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := Decode(nil); got != "" {
			t.Errorf("Decode(nil) = %q", got)
		}
	})
}

func TestReadFile(t *testing.T) {
	t.Run("ValidFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ok.txt")
		if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
			t.Fatal(err)
		}
		text, err := ReadFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "plain text" {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("CorruptFileDecodesLossily", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.txt")
		if err := os.WriteFile(path, []byte{'x', 0xc3, 'y', 0xff}, 0o644); err != nil {
			t.Fatal(err)
		}
		text, err := ReadFile(path)
		if err != nil {
			t.Fatalf("lossy decode should not fail: %v", err)
		}
		if !strings.Contains(text, "�") {
			t.Errorf("expected replacement characters, got %q", text)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := ReadFile(filepath.Join(t.TempDir(), "absent")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}

func TestReadAll(t *testing.T) {
	t.Run("ReadsEverything", func(t *testing.T) {
		text, err := ReadAll(strings.NewReader("from a stream"), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "from a stream" {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("HonorsByteCap", func(t *testing.T) {
		text, err := ReadAll(strings.NewReader("0123456789"), 4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "0123" {
			t.Errorf("text = %q, want capped read", text)
		}
	})
}

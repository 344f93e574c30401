package slot

import "testing"

// ============================================================
// CRC16 Tests - Reference Vectors
// ============================================================

func TestCRC16_Vectors(t *testing.T) {
	tests := []struct {
		input string
		want  uint16
	}{
		{"", 0x0000},
		{"123456789", 0x31C3},
		{"sfger132515", 0xA45C},
		{"hae9Napahngaikeethievubaibogiech", 0x58CE},
		{"AAAAAAAAAAAAAAAAAAAAAA", 0x92CD},
		{"Hello, World!", 0x4FD6},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CRC16([]byte(tt.input)); got != tt.want {
				t.Errorf("CRC16(%q) = 0x%04X, want 0x%04X", tt.input, got, tt.want)
			}
		})
	}
}

// ============================================================
// Hash Tag Tests
// ============================================================

func TestTag(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"no braces", "foo", "foo"},
		{"simple tag", "foo{bar}baz", "bar"},
		{"tag only", "{user1000}", "user1000"},
		{"empty tag ignored", "foo{}bar", "foo{}bar"},
		{"unterminated brace", "foo{bar", "foo{bar"},
		{"first pair wins", "{a}{b}", "a"},
		{"nested braces", "foo{{bar}}baz", "{bar"},
		{"close before open", "foo}bar{baz}", "baz"},
		{"empty key", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(Tag([]byte(tt.key))); got != tt.want {
				t.Errorf("Tag(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

// ============================================================
// Slot Tests
// ============================================================

func TestOf_EmptyKey(t *testing.T) {
	if got := Of(nil); got != 0 {
		t.Errorf("Of(nil) = %d, want 0", got)
	}
	if got := Of([]byte{}); got != 0 {
		t.Errorf("Of(empty) = %d, want 0", got)
	}
}

func TestOf_TagEquivalence(t *testing.T) {
	// Keys sharing a hash tag must land on the same slot.
	base := OfString("bar")

	keys := []string{
		"foo{bar}baz",
		"{bar}",
		"x{bar}",
		"{bar}.suffix",
		"aaaa{bar}bbbb{other}",
	}
	for _, k := range keys {
		if got := OfString(k); got != base {
			t.Errorf("OfString(%q) = %d, want %d (slot of tag %q)", k, got, base, "bar")
		}
	}
}

func TestOf_InRange(t *testing.T) {
	keys := []string{"a", "user:1000", "some:longer:key:with:colons", "{tag}key", "\x00\xff"}
	for _, k := range keys {
		if got := OfString(k); got >= Count {
			t.Errorf("OfString(%q) = %d, out of range [0,%d)", k, got, Count)
		}
	}
}

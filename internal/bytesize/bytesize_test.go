package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want ByteSize
	}{
		{"1024", 1024},
		{"256KiB", 256 * KiB},
		{"256Ki", 256 * KiB},
		{"1Mi", MiB},
		{"100MB", 100 * MB},
		{"1Gi", GiB},
		{"1.5Gi", GiB + 512*MiB},
		{"2tb", 2 * TB},
		{" 64 kib ", 64 * KiB},
		{"0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parse %q: expected %d, got %d", tt.in, tt.want, got)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "12xy", "-5", "1..5Gi"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("256KiB")); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if b != 256*KiB {
		t.Errorf("expected 256KiB, got %d", b)
	}

	if err := b.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for bogus input")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   ByteSize
		want string
	}{
		{512, "512B"},
		{256 * KiB, "256.00KiB"},
		{MiB, "1.00MiB"},
		{3 * GiB, "3.00GiB"},
	}

	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("%d: expected %s, got %s", uint64(tt.in), tt.want, got)
		}
	}
}

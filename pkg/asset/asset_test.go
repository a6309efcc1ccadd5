package asset

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
		ok   bool
	}{
		{raw: "depth", want: Depth, ok: true},
		{raw: " Canny ", want: Canny, ok: true},
		{raw: "original", want: Original, ok: true},
		{raw: "normal", ok: false},
		{raw: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		category Category
		rest     string
	}{
		{name: "prefixed", id: "depth/a.png", category: Depth, rest: "a.png"},
		{name: "bare", id: "a.png", category: "", rest: "a.png"},
		{name: "unknown prefix", id: "misc/a.png", category: "", rest: "misc/a.png"},
		{name: "nested name", id: "canny/sub/a.png", category: Canny, rest: "sub/a.png"},
		{name: "leading slash", id: "/a.png", category: "", rest: "/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rest := Split(tt.id)
			if c != tt.category || rest != tt.rest {
				t.Errorf("Split(%q) = %q, %q; want %q, %q", tt.id, c, rest, tt.category, tt.rest)
			}
		})
	}
}

func TestBasename(t *testing.T) {
	tests := map[string]string{
		"a.png":           "a",
		"depth/a.png":     "a",
		"depth/a.b.png":   "a.b",
		"noext":           "noext",
		".hidden":         ".hidden",
		"canny/x/y/z.jpg": "z",
	}
	for in, want := range tests {
		if got := Basename(in); got != want {
			t.Errorf("Basename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPath(t *testing.T) {
	if got := Path(Depth, "a.png"); got != "depth/a.png" {
		t.Errorf("Path = %q", got)
	}
	if got := Path(Depth, "canny/a.png"); got != "canny/a.png" {
		t.Errorf("prefixed Path = %q", got)
	}
	if got := Path("", "a.png"); got != "a.png" {
		t.Errorf("no category Path = %q", got)
	}
	if got := Parse("pose/b.webp").Path(); got != "pose/b.webp" {
		t.Errorf("Asset.Path = %q", got)
	}
}

func TestIsImage(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.webp", "e.bmp"} {
		if !IsImage(name) {
			t.Errorf("IsImage(%q) = false", name)
		}
	}
	for _, name := range []string{"a.txt", "b", "c.png.json"} {
		if IsImage(name) {
			t.Errorf("IsImage(%q) = true", name)
		}
	}
}

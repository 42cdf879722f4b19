package entities

import "testing"

func TestParsePath_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"root", "/", "/"},
		{"simple", "/index.html", "/index.html"},
		{"nested", "/app/assets/main.js", "/app/assets/main.js"},
		{"missing leading slash is normalized", "index.html", "/index.html"},
		{"dots and dashes in segment", "/a_b-c.d/e.f", "/a_b-c.d/e.f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vp, err := ParsePath(tt.in)
			if err != nil {
				t.Fatalf("ParsePath(%q) unexpected error: %v", tt.in, err)
			}
			if vp.String() != tt.want {
				t.Errorf("ParsePath(%q) = %q, want %q", tt.in, vp.String(), tt.want)
			}
		})
	}
}

func TestParsePath_Invalid(t *testing.T) {
	tests := []string{
		"",
		"/a//b",
		"/a/./b",
		"/a/../b",
		"/a/",
		"/a b",
		"/a$b",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			if _, err := ParsePath(in); err == nil {
				t.Errorf("ParsePath(%q) expected error, got none", in)
			}
		})
	}
}

func TestVirtualPath_ParentAndBase(t *testing.T) {
	vp := MustParsePath("/app/assets/main.js")
	if vp.Base() != "main.js" {
		t.Errorf("Base() = %q, want main.js", vp.Base())
	}
	parent := vp.Parent()
	if parent.String() != "/app/assets" {
		t.Errorf("Parent() = %q, want /app/assets", parent.String())
	}
	root := MustParsePath("/")
	if root.Parent().String() != "/" {
		t.Errorf("root Parent() should be itself, got %q", root.Parent().String())
	}
}

func TestVirtualPath_Join(t *testing.T) {
	root := MustParsePath("/")
	child, err := root.Join("app")
	if err != nil {
		t.Fatal(err)
	}
	if child.String() != "/app" {
		t.Errorf("Join from root = %q, want /app", child.String())
	}

	grandchild, err := child.Join("index.html")
	if err != nil {
		t.Fatal(err)
	}
	if grandchild.String() != "/app/index.html" {
		t.Errorf("Join = %q, want /app/index.html", grandchild.String())
	}

	if _, err := child.Join("bad/name"); err == nil {
		t.Error("Join with a multi-segment name should fail")
	}
}

func TestVirtualPath_HasPrefix(t *testing.T) {
	a := MustParsePath("/app")
	b := MustParsePath("/app/sub")
	c := MustParsePath("/other")

	if !b.HasPrefix(a) {
		t.Error("/app/sub should have prefix /app")
	}
	if c.HasPrefix(a) {
		t.Error("/other should not have prefix /app")
	}
	if !a.HasPrefix(a) {
		t.Error("a path has itself as a prefix")
	}
	root := MustParsePath("/")
	if !a.HasPrefix(root) {
		t.Error("every path has the root as a prefix")
	}
}

func TestVirtualPath_Equal(t *testing.T) {
	a := MustParsePath("/app/x")
	b := MustParsePath("/app/x")
	c := MustParsePath("/app/y")
	if !a.Equal(b) {
		t.Error("identical paths should be equal")
	}
	if a.Equal(c) {
		t.Error("different paths should not be equal")
	}
}

package driver

import (
	"strings"
	"testing"
)

func TestObjectPathMirrorsSourceUnderTriple(t *testing.T) {
	got := objectPath("build", "main.pyc", "x86_64-unknown-linux-gnu")
	want := "build/x86_64-unknown-linux-gnu/main.pyc.o"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestObjectPathSeparatesTargetTriples(t *testing.T) {
	a := objectPath("build", "main.pyc", "x86_64-unknown-linux-gnu")
	b := objectPath("build", "main.pyc", "aarch64-unknown-linux-gnu")
	if a == b {
		t.Fatalf("expected different triples to produce different object paths, both got %q", a)
	}
}

func TestObjectPathNeutralizesParentTraversal(t *testing.T) {
	got := objectPath("build", "../../etc/passwd.pyc", "x86_64-unknown-linux-gnu")
	if strings.Contains(got, "..") {
		t.Fatalf("expected no parent-directory traversal left in the object path, got %q", got)
	}
}

func TestOptFlagResetsOutOfRangeLevelsToZero(t *testing.T) {
	cases := map[int]string{
		-1: "-O0",
		0:  "-O0",
		1:  "-O1",
		2:  "-O2",
		3:  "-O3",
		4:  "-O0",
	}
	for level, want := range cases {
		if got := optFlag(level); got != want {
			t.Errorf("optFlag(%d) = %q, want %q", level, got, want)
		}
	}
}

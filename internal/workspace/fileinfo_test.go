package workspace

import "testing"

func TestHasBinaryContent(t *testing.T) {
	if hasBinaryContent([]byte("plain text\nwith lines\n")) {
		t.Error("text flagged as binary")
	}
	if !hasBinaryContent([]byte{'a', 0x00, 'b'}) {
		t.Error("NUL byte not flagged")
	}
	if hasBinaryContent(nil) {
		t.Error("empty content flagged as binary")
	}
}

func TestIsBinaryExtension(t *testing.T) {
	if !isBinaryExtension("photo.PNG") {
		t.Error("expected .PNG to be binary")
	}
	if isBinaryExtension("readme.md") {
		t.Error("expected .md to be text")
	}
}

func TestIsHiddenName(t *testing.T) {
	if !isHiddenName(".gitignore") {
		t.Error("expected .gitignore hidden")
	}
	if isHiddenName("visible.txt") {
		t.Error("expected visible.txt not hidden")
	}
	if isHiddenName(".") {
		t.Error("expected . not counted as hidden")
	}
}

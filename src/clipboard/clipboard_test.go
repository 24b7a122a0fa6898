package clipboard

import (
	"testing"
)

func TestWithTextRestores(t *testing.T) {
	if err := Init(); err != nil {
		t.Skipf("clipboard unavailable: %v", err)
	}
	if err := Write("previous"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var during string
	err := WithText(`C:\Videos\clip.mp4`, func() error {
		var err error
		during, err = Read()
		return err
	})
	if err != nil {
		t.Fatalf("WithText: %v", err)
	}
	if during != `C:\Videos\clip.mp4` {
		t.Errorf("clipboard during fn = %q", during)
	}
	if got, _ := Read(); got != "previous" {
		t.Errorf("clipboard after fn = %q, want previous text", got)
	}
}

package shortcuts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decode(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("%s is not valid JSON after patch: %v\n%s", path, err, data)
	}
	return m
}

func TestPatchFileJSON(t *testing.T) {
	dir := t.TempDir()
	original := `{
  "presets": [
    {"name": "Default", "sequence": {"selectAll": ["Ctrl+A"], "replaceFragment": [], "other": ["F1"]}},
    {"name": "Custom", "nested": {"segmentCombination": ["Alt+C"]}}
  ],
  "precompileCombination": ["Shift+P"]
}`
	path := writeFile(t, dir, "shortcut.json", original)

	res := NewPatcher(Required).PatchFile(path)
	if res.Err != nil {
		t.Fatalf("PatchFile: %v", res.Err)
	}
	// sequence: replaceFragment, precompileCombination, segmentCombination
	// nested: segmentCombination; top level: precompileCombination.
	if res.Changes != 5 || res.Regex {
		t.Errorf("Changes = %d, Regex = %v", res.Changes, res.Regex)
	}

	m := decode(t, path)
	seq := m["presets"].([]any)[0].(map[string]any)["sequence"].(map[string]any)
	for _, b := range Required {
		if !equalKeys(seq[b.Action], b.Keys) {
			t.Errorf("sequence %s = %v", b.Action, seq[b.Action])
		}
	}
	if !equalKeys(seq["other"], []string{"F1"}) {
		t.Errorf("unrelated binding changed: %v", seq["other"])
	}
	nested := m["presets"].([]any)[1].(map[string]any)["nested"].(map[string]any)
	if !equalKeys(nested["segmentCombination"], []string{"Alt+G"}) {
		t.Errorf("nested = %v", nested)
	}

	bak, err := os.ReadFile(path + ".bak")
	if err != nil || string(bak) != original {
		t.Errorf(".bak = %q, %v", bak, err)
	}

	// Second pass finds nothing to do.
	if again := NewPatcher(Required).PatchFile(path); again.Changes != 0 || again.Err != nil {
		t.Errorf("second pass = %+v", again)
	}
}

func TestPatchFileRegexFallback(t *testing.T) {
	dir := t.TempDir()
	// Trailing commas make this invalid JSON.
	path := writeFile(t, dir, "loose.json", `{
  "replaceFragment": [
    "Ctrl+R",
  ],
  "selectAll": ["Ctrl+A"],
}`)

	res := NewPatcher(Required).PatchFile(path)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Changes != 1 || !res.Regex {
		t.Fatalf("res = %+v", res)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"replaceFragment": ["Ctrl+L"]`) {
		t.Errorf("patched text:\n%s", data)
	}
	if !strings.Contains(string(data), `"selectAll": ["Ctrl+A"]`) {
		t.Errorf("selectAll lost:\n%s", data)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("no .bak: %v", err)
	}
}

func TestPatchFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"selectAll": ["Ctrl+Shift+A"]}`)
	writeFile(t, dir, "b.json", `{"selectAll": ["Ctrl+A"]}`)
	writeFile(t, dir, "notes.txt", `{"selectAll": []}`)

	rep, err := NewPatcher(Required).PatchFolder(dir)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Changes != 1 || len(rep.Files) != 2 {
		t.Errorf("report = %+v", rep)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.json.bak")); !os.IsNotExist(err) {
		t.Error("unchanged file got a .bak")
	}

	missing, err := NewPatcher(Required).PatchFolder(filepath.Join(dir, "absent"))
	if err != nil || missing.Changes != 0 {
		t.Errorf("missing dir = %+v, %v", missing, err)
	}
}

// Package shortcuts rewrites the editor's keyboard shortcut files so the
// bindings the macros send are the ones the editor listens for.
package shortcuts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Binding is one shortcut action and the key list it must carry.
type Binding struct {
	Action string
	Keys   []string
}

// Required lists the editor actions the bypass macros depend on.
var Required = []Binding{
	{Action: "replaceFragment", Keys: []string{"Ctrl+L"}},
	{Action: "selectAll", Keys: []string{"Ctrl+A"}},
	{Action: "precompileCombination", Keys: []string{"Ctrl+P"}},
	{Action: "segmentCombination", Keys: []string{"Alt+G"}},
}

// FileResult reports what happened to one shortcut file.
type FileResult struct {
	Path    string
	Changes int
	Regex   bool
	Err     error
}

// Report summarises a folder patch.
type Report struct {
	Files   []FileResult
	Changes int
}

// Patcher applies a binding set to shortcut files.
type Patcher struct {
	bindings []Binding
	patterns []*regexp.Regexp
}

func NewPatcher(bindings []Binding) *Patcher {
	p := &Patcher{bindings: bindings}
	for _, b := range bindings {
		p.patterns = append(p.patterns,
			regexp.MustCompile(`(?s)("`+regexp.QuoteMeta(b.Action)+`"\s*:\s*)\[.*?\]`))
	}
	return p
}

// PatchFolder patches every *.json directly inside dir. A missing dir is not
// an error; it reports zero changes. Unreadable files are skipped and listed.
func (p *Patcher) PatchFolder(dir string) (Report, error) {
	var rep Report
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return rep, err
	}
	sort.Strings(matches)
	for _, path := range matches {
		res := p.PatchFile(path)
		if res.Err != nil {
			log.Printf("Shortcuts: skip %s: %v", filepath.Base(path), res.Err)
		} else if res.Changes > 0 {
			log.Printf("Shortcuts: %s: %d change(s)", filepath.Base(path), res.Changes)
		}
		rep.Files = append(rep.Files, res)
		rep.Changes += res.Changes
	}
	return rep, nil
}

// PatchFile rewrites one file. The JSON tree is patched first; when that
// changes nothing (or the file is not strict JSON) the raw text is patched
// with a per-action regex. A .bak copy is written before any change.
func (p *Patcher) PatchFile(path string) FileResult {
	res := FileResult{Path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}

	var doc any
	if json.Unmarshal(raw, &doc) == nil {
		if n := p.patchNode(doc); n > 0 {
			out, err := encode(doc)
			if err != nil {
				res.Err = err
				return res
			}
			if err := writeWithBackup(path, out); err != nil {
				res.Err = err
				return res
			}
			res.Changes = n
			return res
		}
	}

	text, n := p.patchText(string(raw))
	if n == 0 {
		return res
	}
	if err := writeWithBackup(path, []byte(text)); err != nil {
		res.Err = err
		return res
	}
	res.Changes, res.Regex = n, true
	return res
}

// patchNode walks a decoded JSON value. A map with a "sequence" object gets
// every binding enforced inside it; any key equal to an action name, at any
// depth, gets its value replaced.
func (p *Patcher) patchNode(node any) int {
	changed := 0
	switch v := node.(type) {
	case map[string]any:
		if seq, ok := v["sequence"].(map[string]any); ok {
			for _, b := range p.bindings {
				if !equalKeys(seq[b.Action], b.Keys) {
					seq[b.Action] = keyList(b.Keys)
					changed++
				}
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if b, ok := p.binding(k); ok && !equalKeys(v[k], b.Keys) {
				v[k] = keyList(b.Keys)
				changed++
			}
			changed += p.patchNode(v[k])
		}
	case []any:
		for _, item := range v {
			changed += p.patchNode(item)
		}
	}
	return changed
}

// patchText counts only occurrences whose value actually differs.
func (p *Patcher) patchText(text string) (string, int) {
	total := 0
	for i, re := range p.patterns {
		want := quoteKeys(p.bindings[i].Keys)
		text = re.ReplaceAllStringFunc(text, func(m string) string {
			sub := re.FindStringSubmatch(m)
			replaced := sub[1] + want
			if compact(m[len(sub[1]):]) != compact(want) {
				total++
			}
			return replaced
		})
	}
	return text, total
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func (p *Patcher) binding(action string) (Binding, bool) {
	for _, b := range p.bindings {
		if b.Action == action {
			return b, true
		}
	}
	return Binding{}, false
}

func equalKeys(v any, want []string) bool {
	list, ok := v.([]any)
	if !ok || len(list) != len(want) {
		return false
	}
	for i, item := range list {
		if s, ok := item.(string); !ok || s != want[i] {
			return false
		}
	}
	return true
}

func keyList(keys []string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func quoteKeys(keys []string) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		b, _ := json.Marshal(k)
		quoted[i] = string(b)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func encode(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeWithBackup(path string, data []byte) error {
	if err := copyFile(path, path+".bak"); err != nil {
		log.Printf("Shortcuts: backup of %s failed: %v", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, st.ModTime(), st.ModTime())
}

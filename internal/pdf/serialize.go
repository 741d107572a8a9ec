package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	pdflib "github.com/digitorus/pdf"
)

// inlineValue serializes a value from the source document. Indirect
// objects stay references; direct values are written inline. A resolved
// direct value inherits the pointer of the object it was read from, so
// indirection is detected by comparing against the parent's object id.
func inlineValue(v pdflib.Value, parentID uint32) string {
	if id := v.GetPtr().GetID(); id != 0 && id != parentID {
		return fmt.Sprintf("%d 0 R", id)
	}
	switch v.Kind() {
	case pdflib.Bool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case pdflib.Integer:
		return fmt.Sprintf("%d", v.Int64())
	case pdflib.Real:
		return fnum(v.Float64())
	case pdflib.String:
		return pdfTextString(v.RawString())
	case pdflib.Name:
		return "/" + pdfName(v.Name())
	case pdflib.Array:
		var b strings.Builder
		b.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			b.WriteString(" ")
			b.WriteString(inlineValue(v.Index(i), parentID))
		}
		b.WriteString(" ]")
		return b.String()
	case pdflib.Dict:
		var b strings.Builder
		b.WriteString("<<")
		for _, k := range v.Keys() {
			fmt.Fprintf(&b, " /%s %s", pdfName(k), inlineValue(v.Key(k), parentID))
		}
		b.WriteString(" >>")
		return b.String()
	default:
		return "null"
	}
}

// rewriteDict serializes a dictionary object for an incremental
// rewrite, substituting the entries in replace and skipping those in
// drop. Entries in replace that the dictionary lacks are appended.
func rewriteDict(v pdflib.Value, replace map[string]string, drop map[string]bool) []byte {
	selfID := v.GetPtr().GetID()
	pending := make(map[string]string, len(replace))
	for k, r := range replace {
		pending[k] = r
	}
	var b bytes.Buffer
	b.WriteString("<<\n")
	for _, k := range v.Keys() {
		if drop[k] {
			continue
		}
		if r, ok := pending[k]; ok {
			fmt.Fprintf(&b, "  /%s %s\n", pdfName(k), r)
			delete(pending, k)
			continue
		}
		fmt.Fprintf(&b, "  /%s %s\n", pdfName(k), inlineValue(v.Key(k), selfID))
	}
	for _, k := range sortedKeys(pending) {
		fmt.Fprintf(&b, "  /%s %s\n", pdfName(k), pending[k])
	}
	b.WriteString(">>")
	return b.Bytes()
}

// importValue copies a value from another document into the update,
// recreating every indirect object it references. The memo maps source
// object ids to destination ids so shared subtrees are copied once.
func (u *Updater) importValue(v pdflib.Value, parentID uint32, memo map[uint32]uint32) (string, error) {
	if id := v.GetPtr().GetID(); id != 0 && id != parentID {
		dstID, err := u.importObject(v, memo)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d 0 R", dstID), nil
	}
	switch v.Kind() {
	case pdflib.Bool:
		if v.Bool() {
			return "true", nil
		}
		return "false", nil
	case pdflib.Integer:
		return fmt.Sprintf("%d", v.Int64()), nil
	case pdflib.Real:
		return fnum(v.Float64()), nil
	case pdflib.String:
		return pdfTextString(v.RawString()), nil
	case pdflib.Name:
		return "/" + pdfName(v.Name()), nil
	case pdflib.Array:
		var b strings.Builder
		b.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			s, err := u.importValue(v.Index(i), v.GetPtr().GetID(), memo)
			if err != nil {
				return "", err
			}
			b.WriteString(" ")
			b.WriteString(s)
		}
		b.WriteString(" ]")
		return b.String(), nil
	case pdflib.Dict, pdflib.Stream:
		var b strings.Builder
		b.WriteString("<<")
		for _, k := range v.Keys() {
			s, err := u.importValue(v.Key(k), v.GetPtr().GetID(), memo)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, " /%s %s", pdfName(k), s)
		}
		b.WriteString(" >>")
		return b.String(), nil
	default:
		return "null", nil
	}
}

// importObject copies a single indirect object from another document.
// Streams are re-encoded with the updater's compression settings.
func (u *Updater) importObject(v pdflib.Value, memo map[uint32]uint32) (uint32, error) {
	srcID := v.GetPtr().GetID()
	if dstID, ok := memo[srcID]; ok {
		return dstID, nil
	}
	// Reserve the id before recursing so cycles resolve to it.
	dstID := u.AddObject(nil)
	memo[srcID] = dstID

	if v.Kind() == pdflib.Stream {
		var dict strings.Builder
		for _, k := range v.Keys() {
			if k == "Length" || k == "Filter" || k == "DecodeParms" {
				continue
			}
			s, err := u.importValue(v.Key(k), srcID, memo)
			if err != nil {
				return 0, err
			}
			fmt.Fprintf(&dict, "/%s %s ", pdfName(k), s)
		}
		data, err := io.ReadAll(v.Reader())
		if err != nil {
			return 0, fmt.Errorf("read stream %d: %w", srcID, err)
		}
		u.setObjectBody(dstID, u.streamBody(strings.TrimSpace(dict.String()), data))
		return dstID, nil
	}

	s, err := u.importValue(v, srcID, memo)
	if err != nil {
		return 0, err
	}
	u.setObjectBody(dstID, []byte(s))
	return dstID, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysU32(m map[string]uint32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCategoryKeys(m map[string]map[string]uint32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// inherited walks the page tree upward to resolve an inherited page
// attribute such as MediaBox or Rotate.
func inherited(page pdflib.Value, key string) pdflib.Value {
	for v := page; !v.IsNull(); v = v.Key("Parent") {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
	}
	return pdflib.Value{}
}

// pageGeometry reads the effective MediaBox and rotation of a page.
func pageGeometry(page pdflib.Value) PageGeometry {
	geo := PageGeometry{Width: 612, Height: 792}
	if mb := inherited(page, "MediaBox"); mb.Kind() == pdflib.Array && mb.Len() == 4 {
		geo.Width = mb.Index(2).Float64() - mb.Index(0).Float64()
		geo.Height = mb.Index(3).Float64() - mb.Index(1).Float64()
	}
	if rot := inherited(page, "Rotate"); !rot.IsNull() {
		geo.Rotation = NormalizeRotation(rot.Float64())
	}
	return geo
}

// contentsWith returns a /Contents array preserving the page's existing
// streams and appending the given object.
func contentsWith(page pdflib.Value, appended uint32) string {
	var refs []string
	contents := page.Key("Contents")
	switch contents.Kind() {
	case pdflib.Array:
		for i := 0; i < contents.Len(); i++ {
			if id := contents.Index(i).GetPtr().GetID(); id != 0 {
				refs = append(refs, fmt.Sprintf("%d 0 R", id))
			}
		}
	case pdflib.Stream:
		if id := contents.GetPtr().GetID(); id != 0 {
			refs = append(refs, fmt.Sprintf("%d 0 R", id))
		}
	}
	refs = append(refs, fmt.Sprintf("%d 0 R", appended))
	return "[ " + strings.Join(refs, " ") + " ]"
}

// mergeResources builds a /Resources dictionary that keeps every
// existing entry and adds the given category/name references.
func mergeResources(res pdflib.Value, adds map[string]map[string]uint32) string {
	resID := res.GetPtr().GetID()
	var b strings.Builder
	b.WriteString("<<")
	seen := make(map[string]bool)
	for _, cat := range res.Keys() {
		seen[cat] = true
		extra, ok := adds[cat]
		if !ok {
			fmt.Fprintf(&b, " /%s %s", pdfName(cat), inlineValue(res.Key(cat), resID))
			continue
		}
		catVal := res.Key(cat)
		catID := catVal.GetPtr().GetID()
		fmt.Fprintf(&b, " /%s <<", pdfName(cat))
		for _, name := range catVal.Keys() {
			fmt.Fprintf(&b, " /%s %s", pdfName(name), inlineValue(catVal.Key(name), catID))
		}
		for _, name := range sortedKeysU32(extra) {
			fmt.Fprintf(&b, " /%s %d 0 R", name, extra[name])
		}
		b.WriteString(" >>")
	}
	for _, cat := range sortedCategoryKeys(adds) {
		if seen[cat] {
			continue
		}
		fmt.Fprintf(&b, " /%s <<", pdfName(cat))
		for _, name := range sortedKeysU32(adds[cat]) {
			fmt.Fprintf(&b, " /%s %d 0 R", name, adds[cat][name])
		}
		b.WriteString(" >>")
	}
	b.WriteString(" >>")
	return b.String()
}

// pdfName escapes irregular characters in a name with #xx sequences.
func pdfName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c > '~' || strings.ContainsRune("/()<>[]{}#%", rune(c)) {
			fmt.Fprintf(&b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// pdfTextString writes a string literal, falling back to hex form for
// content outside printable ASCII.
func pdfTextString(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] < ' ' || s[i] > '~' {
			return "<" + strings.ToUpper(hex.EncodeToString([]byte(s))) + ">"
		}
	}
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "(", "\\(")
	s = strings.ReplaceAll(s, ")", "\\)")
	return "(" + s + ")"
}

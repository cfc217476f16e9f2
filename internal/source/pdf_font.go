package source

import (
	"sort"
	"strings"
	"unicode/utf16"
)

// fontCodec turns the bytes of a shown string into text for one page font.
// Composite (Type0) fonts address glyphs with multi-byte codes that carry no
// meaning without a ToUnicode CMap.
type fontCodec struct {
	composite bool
	cmap      *toUnicode
}

func (f *fontCodec) decode(b []byte) string {
	if f.cmap == nil {
		if f.composite {
			return ""
		}
		return decodePDFString(b)
	}

	width := 1
	if f.composite {
		width = 2
	}
	var sb strings.Builder
	for len(b) > 0 {
		code, n := f.cmap.next(b, width)
		b = b[n:]
		if s, ok := f.cmap.lookup(code); ok {
			sb.WriteString(s)
		} else if !f.composite && code >= 0x20 {
			sb.WriteRune(rune(code))
		}
	}
	return sb.String()
}

// toUnicode is a parsed ToUnicode CMap: the code lengths it declares and the
// bfchar and bfrange mappings.
type toUnicode struct {
	spaces []codespace
	chars  map[uint32]string
	ranges []bfRange
}

type codespace struct {
	n      int
	lo, hi uint32
}

type bfRange struct {
	lo, hi uint32
	base   []uint16
	list   []string
}

// next reads one character code from b using the declared codespaces,
// falling back to width bytes when none match.
func (c *toUnicode) next(b []byte, width int) (uint32, int) {
	for _, sp := range c.spaces {
		if sp.n > len(b) {
			continue
		}
		if code := codeOf(b[:sp.n]); code >= sp.lo && code <= sp.hi {
			return code, sp.n
		}
	}
	if width > len(b) {
		width = len(b)
	}
	return codeOf(b[:width]), width
}

func (c *toUnicode) lookup(code uint32) (string, bool) {
	if s, ok := c.chars[code]; ok {
		return s, true
	}
	for _, r := range c.ranges {
		if code < r.lo || code > r.hi {
			continue
		}
		off := code - r.lo
		if r.list != nil {
			if int(off) < len(r.list) {
				return r.list[off], true
			}
			return "", false
		}
		u := append([]uint16(nil), r.base...)
		u[len(u)-1] += uint16(off)
		return string(utf16.Decode(u)), true
	}
	return "", false
}

// parseToUnicode reads the codespace and bf sections of a CMap program.
// It returns nil when the CMap maps nothing.
func parseToUnicode(data []byte) *toUnicode {
	cm := &toUnicode{chars: make(map[uint32]string)}
	lx := &lexer{data: data}
	var args []operand
	for {
		tok, op, ok := lx.next()
		if !ok {
			break
		}
		if op == "" {
			args = append(args, tok)
			continue
		}
		switch op {
		case "endcodespacerange":
			for i := 0; i+1 < len(args); i += 2 {
				lo, hi := args[i], args[i+1]
				if !isCode(lo) || !isCode(hi) || len(lo.str) != len(hi.str) {
					continue
				}
				cm.spaces = append(cm.spaces, codespace{n: len(lo.str), lo: codeOf(lo.str), hi: codeOf(hi.str)})
			}
		case "endbfchar":
			for i := 0; i+1 < len(args); i += 2 {
				src, dst := args[i], args[i+1]
				if isCode(src) && dst.kind == opString {
					cm.chars[codeOf(src.str)] = utf16BE(dst.str)
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(args); i += 3 {
				lo, hi, dst := args[i], args[i+1], args[i+2]
				if !isCode(lo) || !isCode(hi) {
					continue
				}
				r := bfRange{lo: codeOf(lo.str), hi: codeOf(hi.str)}
				if r.hi < r.lo {
					continue
				}
				switch dst.kind {
				case opString:
					r.base = utf16Units(dst.str)
					if len(r.base) == 0 {
						continue
					}
				case opArray:
					r.list = make([]string, 0, len(dst.arr))
					for _, el := range dst.arr {
						r.list = append(r.list, utf16BE(el.str))
					}
				default:
					continue
				}
				cm.ranges = append(cm.ranges, r)
			}
		}
		args = args[:0]
	}

	if len(cm.chars) == 0 && len(cm.ranges) == 0 {
		return nil
	}
	sort.SliceStable(cm.spaces, func(i, j int) bool { return cm.spaces[i].n < cm.spaces[j].n })
	return cm
}

func isCode(o operand) bool {
	return o.kind == opString && len(o.str) > 0 && len(o.str) <= 4
}

func codeOf(b []byte) uint32 {
	var c uint32
	for _, x := range b {
		c = c<<8 | uint32(x)
	}
	return c
}

func utf16Units(b []byte) []uint16 {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return u
}

func utf16BE(b []byte) string {
	return string(utf16.Decode(utf16Units(b)))
}

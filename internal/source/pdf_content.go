package source

import (
	"math"
	"strconv"
	"strings"

	"github.com/reiness/edos-jls-chatbot/internal/normalize"
)

// Content streams are a postfix language: operands, then an operator. Only
// the text operators matter here.

// tjSpaceThreshold is the TJ displacement (thousandths of an em) treated as
// a word gap.
const tjSpaceThreshold = -200

type operand struct {
	kind int
	num  float64
	str  []byte
	arr  []operand
}

const (
	opOther = iota
	opNumber
	opString
	opArray
	opName
)

// textLines runs a page content stream and returns its text lines, each
// tagged with the largest effective font size used on it. fonts maps the
// page's font resource names to their decoders; strings shown in a font
// missing from it are read as single-byte or UTF-16 text.
func textLines(content []byte, fonts map[string]*fontCodec) []normalize.TextRun {
	st := &textState{scale: 1, fonts: fonts}
	lx := &lexer{data: content}
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
		if op == "BI" {
			lx.skipInlineImage()
		} else {
			st.apply(op, args)
		}
		args = args[:0]
	}
	st.flush()
	return st.lines
}

type textState struct {
	fonts    map[string]*fontCodec
	font     *fontCodec
	fontSize float64
	scale    float64
	lineY    float64
	haveY    bool

	line     strings.Builder
	lineSize float64
	lines    []normalize.TextRun
}

func (s *textState) apply(op string, args []operand) {
	switch op {
	case "BT":
		s.scale = 1
		s.haveY = false
	case "ET", "T*":
		s.flush()
	case "Tf":
		if len(args) > 0 && args[0].kind == opName {
			s.font = s.fonts[string(args[0].str)]
		}
		if n, ok := num(args, 1); ok {
			s.fontSize = math.Abs(n)
		}
	case "Td", "TD":
		if ty, ok := num(args, 1); ok && ty != 0 {
			s.flush()
		} else {
			s.space()
		}
	case "Tm":
		if len(args) == 6 {
			b, d, f := args[1].num, args[3].num, args[5].num
			if sc := math.Hypot(b, d); sc > 0 {
				s.scale = sc
			}
			if s.haveY && f != s.lineY {
				s.flush()
			} else if s.haveY {
				s.space()
			}
			s.lineY, s.haveY = f, true
		}
	case "Tj":
		if len(args) > 0 {
			s.show(args[len(args)-1])
		}
	case "'":
		s.flush()
		if len(args) > 0 {
			s.show(args[len(args)-1])
		}
	case "\"":
		s.flush()
		if len(args) == 3 {
			s.show(args[2])
		}
	case "TJ":
		if len(args) > 0 && args[len(args)-1].kind == opArray {
			for _, el := range args[len(args)-1].arr {
				switch el.kind {
				case opString:
					s.show(el)
				case opNumber:
					if el.num < tjSpaceThreshold {
						s.space()
					}
				}
			}
		}
	}
}

func (s *textState) show(o operand) {
	if o.kind != opString {
		return
	}
	var txt string
	if s.font != nil {
		txt = s.font.decode(o.str)
	} else {
		txt = decodePDFString(o.str)
	}
	if txt == "" {
		return
	}
	s.line.WriteString(txt)
	if size := s.fontSize * s.scale; size > s.lineSize {
		s.lineSize = size
	}
}

func (s *textState) space() {
	if s.line.Len() > 0 && !strings.HasSuffix(s.line.String(), " ") {
		s.line.WriteByte(' ')
	}
}

func (s *textState) flush() {
	if txt := strings.TrimSpace(s.line.String()); txt != "" {
		s.lines = append(s.lines, normalize.TextRun{Text: txt, Size: s.lineSize})
	}
	s.line.Reset()
	s.lineSize = 0
}

func num(args []operand, i int) (float64, bool) {
	if i < len(args) && args[i].kind == opNumber {
		return args[i].num, true
	}
	return 0, false
}

// decodePDFString maps string bytes to text: UTF-16BE when marked with a BOM,
// otherwise one byte per character (Latin-1, close to PDFDocEncoding for
// printable text). Control bytes are dropped.
func decodePDFString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		return utf16BE(b[2:])
	}
	var sb strings.Builder
	for _, c := range b {
		if c < 0x20 && c != '\t' {
			continue
		}
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

type lexer struct {
	data []byte
	pos  int
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// next returns either an operand or, when op is non-empty, an operator.
func (l *lexer) next() (tok operand, op string, ok bool) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isPDFSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			l.pos++
			return operand{kind: opString, str: l.literal()}, "", true
		case c == '<':
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
				l.pos += 2
				return operand{}, "", true
			}
			l.pos++
			return operand{kind: opString, str: l.hex()}, "", true
		case c == '>':
			l.pos++
			if l.pos < len(l.data) && l.data[l.pos] == '>' {
				l.pos++
			}
			return operand{}, "", true
		case c == '[':
			l.pos++
			return operand{kind: opArray, arr: l.array()}, "", true
		case c == ']', c == '{', c == '}', c == ')':
			l.pos++
		case c == '/':
			l.pos++
			return operand{kind: opName, str: []byte(l.word())}, "", true
		default:
			w := l.word()
			if w == "" {
				l.pos++
				continue
			}
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return operand{kind: opNumber, num: n}, "", true
			}
			switch w {
			case "true", "false", "null":
				return operand{}, "", true
			}
			return operand{}, w, true
		}
	}
	return operand{}, "", false
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *lexer) array() []operand {
	var out []operand
	for l.pos < len(l.data) {
		// Peek for the closing bracket.
		for l.pos < len(l.data) && isPDFSpace(l.data[l.pos]) {
			l.pos++
		}
		if l.pos < len(l.data) && l.data[l.pos] == ']' {
			l.pos++
			return out
		}
		tok, op, ok := l.next()
		if !ok {
			break
		}
		if op == "" {
			out = append(out, tok)
		}
	}
	return out
}

// literal reads a (string) body; the opening parenthesis is consumed.
func (l *lexer) literal() []byte {
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if l.pos >= len(l.data) {
				return out
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

// hex reads a <hex> body; the opening bracket is consumed.
func (l *lexer) hex() []byte {
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if c := l.data[l.pos]; !isPDFSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // '>'
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage advances past the binary data of a BI ... ID ... EI block.
func (l *lexer) skipInlineImage() {
	for {
		_, op, ok := l.next()
		if !ok {
			return
		}
		if op == "ID" {
			break
		}
	}
	for l.pos+2 < len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			isPDFSpace(l.data[l.pos-1]) && (l.pos+2 == len(l.data) || isPDFSpace(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

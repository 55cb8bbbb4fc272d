package searchdata

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var errUnterminated = errors.New("unterminated string")

// quoteStrings rewrites every JavaScript string literal in body as a YAML
// double-quoted scalar, decoding JS escapes on the way. Everything outside
// strings is copied as is.
func quoteStrings(body []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(body) + len(body)/8)
	for i := 0; i < len(body); {
		c := body[i]
		if c != '\'' && c != '"' {
			out.WriteByte(c)
			i++
			continue
		}
		s, n, err := jsString(body[i:])
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", i, err)
		}
		// strconv escapes are a subset of YAML's double-quoted escapes
		out.WriteString(strconv.Quote(s))
		i += n
	}
	return out.Bytes(), nil
}

// jsString decodes the quoted literal at the start of b and reports how
// many bytes it spans.
func jsString(b []byte) (string, int, error) {
	quote := b[0]
	var sb strings.Builder
	high := rune(-1) // unpaired high surrogate

	flush := func() {
		if high >= 0 {
			sb.WriteRune(utf8.RuneError)
			high = -1
		}
	}
	put := func(r rune) {
		if high >= 0 {
			if pair := utf16.DecodeRune(high, r); pair != utf8.RuneError {
				sb.WriteRune(pair)
				high = -1
				return
			}
			flush()
		}
		if r >= 0xD800 && r < 0xDC00 {
			high = r
			return
		}
		sb.WriteRune(r)
	}

	for i := 1; i < len(b); {
		c := b[i]
		switch {
		case c == quote:
			flush()
			return sb.String(), i + 1, nil
		case c == '\n':
			return "", 0, errUnterminated
		case c != '\\':
			r, size := utf8.DecodeRune(b[i:])
			put(r)
			i += size
			continue
		}

		if i+1 >= len(b) {
			break
		}
		e := b[i+1]
		i += 2
		switch e {
		case 'n':
			put('\n')
		case 't':
			put('\t')
		case 'r':
			put('\r')
		case 'b':
			put('\b')
		case 'f':
			put('\f')
		case 'v':
			put('\v')
		case '0':
			put(0)
		case '\n':
			// line continuation
		case 'x':
			r, err := hexRune(b, i, 2)
			if err != nil {
				return "", 0, err
			}
			put(r)
			i += 2
		case 'u':
			if i < len(b) && b[i] == '{' {
				end := bytes.IndexByte(b[i:], '}')
				if end < 0 {
					return "", 0, fmt.Errorf("bad \\u{} escape")
				}
				r, err := hexRune(b, i+1, end-1)
				if err != nil {
					return "", 0, err
				}
				put(r)
				i += end + 1
				continue
			}
			r, err := hexRune(b, i, 4)
			if err != nil {
				return "", 0, err
			}
			put(r)
			i += 4
		default:
			// \' \" \\ and any other character stand for themselves
			r, size := utf8.DecodeRune(b[i-1:])
			put(r)
			i += size - 1
		}
	}
	return "", 0, errUnterminated
}

func hexRune(b []byte, at, n int) (rune, error) {
	if n <= 0 || at+n > len(b) {
		return 0, fmt.Errorf("short escape")
	}
	v, err := strconv.ParseUint(string(b[at:at+n]), 16, 32)
	if err != nil || v > utf8.MaxRune {
		return 0, fmt.Errorf("bad escape %q", b[at:at+n])
	}
	return rune(v), nil
}

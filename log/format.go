// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

const (
	timeFormat        = "2006-01-02T15:04:05-0700"
	termTimeFormat    = "01-02|15:04:05.000"
	termMsgJust       = 40
	termCtxMaxPadding = 40
)

const (
	colorReset = "\x1b[0m"
	colorKey   = "\x1b[32m"
)

var spaces = []byte(strings.Repeat(" ", termMsgJust))

func levelColor(l slog.Level) string {
	switch l {
	case LevelCrit:
		return "\x1b[35m"
	case LevelError:
		return "\x1b[31m"
	case LevelWarn:
		return "\x1b[33m"
	case LevelInfo:
		return "\x1b[32m"
	case LevelDebug:
		return "\x1b[36m"
	case LevelTrace:
		return "\x1b[34m"
	}
	return ""
}

// format renders r into buf as
//
//	LVL [time] message key=value key=value ...
//
// and returns the extended buffer. Callers must hold h.mu.
func (h *TerminalHandler) format(buf []byte, r slog.Record, useColor bool) []byte {
	b := bytes.NewBuffer(buf)

	lvl := LevelAlignedString(r.Level)
	if useColor {
		if color := levelColor(r.Level); color != "" {
			lvl = color + lvl + colorReset
		}
	}
	b.WriteString(lvl)
	b.WriteByte('[')
	b.WriteString(r.Time.Format(termTimeFormat))
	b.WriteString("] ")

	msg := escapeMessage(r.Message)
	b.WriteString(msg)

	// justify short messages so the attribute columns of consecutive
	// records line up
	if r.NumAttrs()+len(h.attrs) > 0 && len(msg) < termMsgJust {
		b.Write(spaces[:termMsgJust-len(msg)])
	}

	for _, attr := range h.attrs {
		h.writeAttr(b, attr, useColor)
	}
	r.Attrs(func(attr slog.Attr) bool {
		h.writeAttr(b, attr, useColor)
		return true
	})
	b.WriteByte('\n')
	return b.Bytes()
}

func (h *TerminalHandler) writeAttr(b *bytes.Buffer, attr slog.Attr, useColor bool) {
	key := escapeString(attr.Key)
	val := formatValue(attr.Value)

	b.WriteByte(' ')
	if useColor {
		b.WriteString(colorKey)
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(colorReset)
	} else {
		b.WriteString(key)
		b.WriteByte('=')
	}
	b.WriteString(val)

	// pad values to the widest value seen so far for this key
	padding := h.fieldPadding[key]
	if len(val) > padding {
		padding = len(val)
		h.fieldPadding[key] = padding
	}
	if padding > len(val) && padding <= termCtxMaxPadding {
		b.Write(spaces[:padding-len(val)])
	}
}

// formatValue renders an attribute value as terminal-format text.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindInt64:
		return string(appendInt64(nil, v.Int64()))
	case slog.KindUint64:
		return string(appendUint64(nil, v.Uint64(), false))
	case slog.KindString:
		return escapeString(v.String())
	case slog.KindTime:
		return v.Time().Format(timeFormat)
	}

	if s, ok := stringifyAny(v); ok {
		return escapeString(s)
	}
	return escapeString(fmt.Sprintf("%+v", v.Any()))
}

// stringifyAny converts the value types that have a canonical textual form,
// guarding against typed-nil Stringers.
func stringifyAny(v slog.Value) (string, bool) {
	switch x := v.Any().(type) {
	case *big.Int:
		if x == nil {
			return "<nil>", true
		}
		return x.String(), true
	case *uint256.Int:
		if x == nil {
			return "<nil>", true
		}
		return x.Dec(), true
	case error:
		if x == nil {
			return "<nil>", true
		}
		return x.Error(), true
	case fmt.Stringer:
		if x == nil || (reflect.ValueOf(x).Kind() == reflect.Pointer && reflect.ValueOf(x).IsNil()) {
			return "<nil>", true
		}
		return x.String(), true
	}
	return "", false
}

// appendInt64 formats n with thousand separators and writes into buffer b.
func appendInt64(b []byte, n int64) []byte {
	if n < 0 {
		return appendUint64(b, uint64(-n), true)
	}
	return appendUint64(b, uint64(n), false)
}

// appendUint64 formats n with thousand separators and writes into buffer b.
func appendUint64(b []byte, n uint64, neg bool) []byte {
	// Small numbers are fine as is
	if n < 100000 {
		if neg {
			b = append(b, '-')
		}
		return strconv.AppendInt(b, int64(n), 10)
	}
	// Large numbers should be split
	const maxLength = 26

	var (
		out   = make([]byte, maxLength)
		i     = maxLength - 1
		comma = 0
	)
	for ; n > 0; i-- {
		if comma == 3 {
			comma = 0
			out[i] = ','
		} else {
			comma++
			out[i] = '0' + byte(n%10)
			n /= 10
		}
	}
	if neg {
		out[i] = '-'
		i--
	}
	return append(b, out[i+1:]...)
}

// escapeString quotes s when it contains characters that would break the
// key=value syntax.
func escapeString(s string) string {
	needsQuoting := false
	for _, r := range s {
		// everything below " (0x22) and above ~ (0x7E), plus equal-sign
		if r <= '"' || r == '=' || r > '~' {
			needsQuoting = true
			break
		}
	}
	if !needsQuoting {
		return s
	}
	return strconv.Quote(s)
}

// escapeMessage is a more lenient escapeString: spaces and line breaks in the
// message body stay unquoted so multi-line messages render as written.
func escapeMessage(s string) string {
	needsQuoting := false
	for _, r := range s {
		if r == '\r' || r == '\n' || r == '\t' {
			continue
		}
		// everything below <space> (0x20) and above ~ (0x7E), plus equal-sign
		if r < ' ' || r > '~' || r == '=' {
			needsQuoting = true
			break
		}
	}
	if !needsQuoting {
		return s
	}
	return strconv.Quote(s)
}

package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type field struct {
	key string
	val any
}

// entry is an insertion-ordered set of fields; setting a key again replaces it.
type entry struct {
	fields []field
	index  map[string]int
}

func newEntry(capacity int) *entry {
	return &entry{
		fields: make([]field, 0, capacity),
		index:  make(map[string]int, capacity),
	}
}

func (e *entry) set(key string, val any) {
	if i, ok := e.index[key]; ok {
		e.fields[i].val = val
		return
	}
	e.index[key] = len(e.fields)
	e.fields = append(e.fields, field{key: key, val: val})
}

func (e *entry) setDefault(key, val string) {
	if val == "" {
		return
	}
	if _, ok := e.index[key]; !ok {
		e.set(key, val)
	}
}

func (e *entry) del(key string) {
	i, ok := e.index[key]
	if !ok {
		return
	}
	e.fields = append(e.fields[:i], e.fields[i+1:]...)
	delete(e.index, key)
	for j := i; j < len(e.fields); j++ {
		e.index[e.fields[j].key] = j
	}
}

func (e *entry) str(key string) string {
	i, ok := e.index[key]
	if !ok {
		return ""
	}
	switch v := e.fields[i].val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// sorted returns the fields with ranked keys first, then the rest by name.
func (e *entry) sorted(rank map[string]int) []field {
	out := append([]field(nil), e.fields...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i].key]
		rj, jok := rank[out[j].key]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i].key < out[j].key
		}
	})
	return out
}

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// encode renders e as one newline-terminated line.
func encode(e *entry, format logFormat, rank map[string]int) ([]byte, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	fields := e.sorted(rank)
	if format == formatJSON {
		buf.WriteByte('{')
		for i, f := range fields {
			data, err := json.Marshal(f.val)
			if err != nil {
				return nil, fmt.Errorf("logger: encode %s: %w", f.key, err)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(f.key))
			buf.WriteByte(':')
			buf.Write(data)
		}
		buf.WriteByte('}')
	} else {
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(f.key)
			buf.WriteByte('=')
			buf.WriteString(kvValue(f.val))
		}
	}
	buf.WriteByte('\n')
	return append([]byte(nil), buf.Bytes()...), nil
}

func kvValue(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

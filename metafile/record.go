package metafile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

/*
Serialization of metadata batches in a format that is easy to append,
easy to parse and human-readable.

The format is line-oriented. A header line opens a batch:

	@<objectName>@<timestamp>

and every following line up to the next header is a property of that
object, assigned at that time:

	<key>=<value>

Values are opaque text and may contain '=', so property lines split on
the first '=' only. There is no escaping, so keys must not contain '='
and object names must not contain '@'. Newlines separate lines and
cannot appear in names, keys or values.
*/

// ErrNoHeader is returned when a record file contains a property line
// before any header line.
var ErrNoHeader = errors.New("property line before any header line")

// DatedValue is a property value and the time it was assigned.
type DatedValue struct {
	Value string
	Time  time.Time
}

// Batch is a set of properties assigned to one object at one time.
type Batch struct {
	Object string
	// when writing, if not provided we use current time
	Time       time.Time
	Properties map[string]string
}

// timestamps are written as RFC 3339 with nanoseconds, in UTC
const timeLayout = time.RFC3339Nano

// zone-less ISO-8601, as written by older tools; parsed as UTC
const timeLayoutNoZone = "2006-01-02T15:04:05.999999999"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(timeLayoutNoZone, s)
}

// ParseHeaderLine parses a "@name@timestamp" header line.
func ParseHeaderLine(line string) (string, time.Time, error) {
	if !strings.HasPrefix(line, "@") {
		return "", time.Time{}, fmt.Errorf("not a header line: '%s'", line)
	}
	rest := line[1:]
	idx := strings.IndexByte(rest, '@')
	if idx == -1 {
		return "", time.Time{}, fmt.Errorf("header line missing second '@': '%s'", line)
	}
	name := rest[:idx]
	t, err := parseTime(rest[idx+1:])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid timestamp in header line '%s': %w", line, err)
	}
	return name, t, nil
}

// ParsePropertyLine splits a "key=value" line on the first '='.
// The value is taken verbatim and may itself contain '='.
func ParsePropertyLine(line string) (string, string, error) {
	idx := strings.IndexByte(line, '=')
	if idx == -1 {
		return "", "", fmt.Errorf("property line missing '=': '%s'", line)
	}
	return line[:idx], line[idx+1:], nil
}

// sorted key order so that serialization doesn't depend on map iteration
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func marshalBatch(wb *bytes.Buffer, b *Batch) {
	wb.WriteByte('@')
	wb.WriteString(b.Object)
	wb.WriteByte('@')
	wb.WriteString(formatTime(b.Time))
	wb.WriteByte('\n')
	for _, k := range sortedKeys(b.Properties) {
		wb.WriteString(k)
		wb.WriteByte('=')
		wb.WriteString(b.Properties[k])
		wb.WriteByte('\n')
	}
}

// MarshalBatch serializes one batch as a header line followed by one
// property line per key, in sorted key order.
// For efficiency re-uses wb. If wb is nil, will allocate a new buffer.
// Returned bytes are valid until the next use of wb.
func MarshalBatch(b *Batch, wb *bytes.Buffer) []byte {
	if wb == nil {
		wb = &bytes.Buffer{}
	} else {
		wb.Reset()
	}
	marshalBatch(wb, b)
	return wb.Bytes()
}

// ParseRecord reads a record file line by line and returns its batches
// in file order. A property line before the first header line is a
// fatal parse error (ErrNoHeader).
func ParseRecord(scanner *bufio.Scanner) ([]*Batch, error) {
	var batches []*Batch
	var cur *Batch
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.HasPrefix(line, "@") {
			name, t, err := ParseHeaderLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur = &Batch{
				Object:     name,
				Time:       t,
				Properties: map[string]string{},
			}
			batches = append(batches, cur)
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, ErrNoHeader)
		}
		key, value, err := ParsePropertyLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		cur.Properties[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading record: %w", err)
	}
	return batches, nil
}

// ParseRecordFromData parses a record held in memory.
func ParseRecordFromData(d []byte) ([]*Batch, error) {
	scanner := bufio.NewScanner(bytes.NewReader(d))
	return ParseRecord(scanner)
}

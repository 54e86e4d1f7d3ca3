package coords

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("X=%d Y=%d Z=%d", c.X, c.Y, c.Z)
}

// Locations maps location names to coordinates and remembers insertion
// order. Overwriting an existing name keeps its position. The zero value is
// an empty set ready to use.
type Locations struct {
	names  []string
	byName map[string]Coordinate
}

func (l *Locations) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

func (l *Locations) Get(name string) (Coordinate, bool) {
	if l == nil {
		return Coordinate{}, false
	}
	c, ok := l.byName[name]
	return c, ok
}

// Set stores c under name and returns the coordinate it replaced, if any.
func (l *Locations) Set(name string, c Coordinate) (prev Coordinate, existed bool) {
	if l.byName == nil {
		l.byName = make(map[string]Coordinate)
	}
	prev, existed = l.byName[name]
	if !existed {
		l.names = append(l.names, name)
	}
	l.byName[name] = c
	return prev, existed
}

func (l *Locations) Delete(name string) bool {
	if l == nil {
		return false
	}
	if _, ok := l.byName[name]; !ok {
		return false
	}
	delete(l.byName, name)
	for i, n := range l.names {
		if n == name {
			l.names = append(l.names[:i], l.names[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the set and returns how many entries it held.
func (l *Locations) Clear() int {
	if l == nil {
		return 0
	}
	n := len(l.names)
	l.names = nil
	l.byName = nil
	return n
}

func (l *Locations) Names() []string {
	if l == nil {
		return nil
	}
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Each visits entries in insertion order.
func (l *Locations) Each(fn func(name string, c Coordinate)) {
	if l == nil {
		return
	}
	for _, n := range l.names {
		fn(n, l.byName[n])
	}
}

func (l *Locations) Clone() *Locations {
	out := &Locations{}
	l.Each(func(name string, c Coordinate) { out.Set(name, c) })
	return out
}

func (l *Locations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if l != nil {
		for i, n := range l.names {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(l.byName[n])
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (l *Locations) UnmarshalJSON(data []byte) error {
	l.Clear()
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("locations: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("locations: expected name, got %v", tok)
		}
		var c Coordinate
		if err := dec.Decode(&c); err != nil {
			return fmt.Errorf("locations: %q: %w", name, err)
		}
		l.Set(name, c)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

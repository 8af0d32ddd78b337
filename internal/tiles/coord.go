// Package tiles defines quadtree tile coordinates and the on-disk tile store.
package tiles

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord identifies a tile in the quadtree pyramid. Level L holds a
// 2^L x 2^L grid, so 0 <= X,Y < 2^L.
type Coord struct {
	Level int
	X     int
	Y     int
}

// Valid reports whether the coordinate lies inside its level's grid.
func (c Coord) Valid() bool {
	if c.Level < 0 || c.Level > 62 {
		return false
	}
	n := 1 << c.Level
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// Parent returns the covering tile one level up. Undefined at level 0.
func (c Coord) Parent() (Coord, bool) {
	if c.Level <= 0 {
		return Coord{}, false
	}
	return Coord{Level: c.Level - 1, X: c.X >> 1, Y: c.Y >> 1}, true
}

// Ancestors returns the chain of strict ancestors ordered from the direct
// parent down to level 0.
func (c Coord) Ancestors() []Coord {
	out := make([]Coord, 0, c.Level)
	cur := c
	for {
		p, ok := cur.Parent()
		if !ok {
			return out
		}
		out = append(out, p)
		cur = p
	}
}

// String renders the manifest form "level/x/y".
func (c Coord) String() string {
	return strconv.Itoa(c.Level) + "/" + strconv.Itoa(c.X) + "/" + strconv.Itoa(c.Y)
}

// ParseCoord parses "level/x/y" or "level:x:y".
func ParseCoord(s string) (Coord, error) {
	sep := "/"
	if !strings.Contains(s, "/") {
		sep = ":"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return Coord{}, fmt.Errorf("invalid tile %q: want level/x/y", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Coord{}, fmt.Errorf("invalid tile %q: %w", s, err)
		}
		vals[i] = v
	}
	c := Coord{Level: vals[0], X: vals[1], Y: vals[2]}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("tile %s outside level %d grid", c, c.Level)
	}
	return c, nil
}

// ParseCoordList parses a comma-separated list of tiles.
func ParseCoordList(s string) ([]Coord, error) {
	var out []Coord
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := ParseCoord(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Less orders coordinates by (level, x, y) for deterministic task lists.
func Less(a, b Coord) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

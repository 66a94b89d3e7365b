// Package table loads system declarations from TOML or YAML files.
//
// A table describes the scheduling metadata of systems as data; update hooks
// are attached afterwards by id through a Binder.
//
//	[[systems]]
//	id = "movement"
//	reads = ["Velocity"]
//	writes = ["Position"]
//	cost = 4.0
//
//	[[systems]]
//	id = "audio"
//	reads = ["SoundEmitter"]
//	after = ["movement"]
//	main_thread = true
package table

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/oriumgames/ecsched"
)

// Format is a table file format.
type Format int

const (
	TOML Format = iota
	YAML
)

func (f Format) String() string {
	switch f {
	case TOML:
		return "toml"
	case YAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return 0, fmt.Errorf("table %s: unsupported extension %q", path, filepath.Ext(path))
	}
}

// Row is one system declaration as it appears in a table file.
type Row struct {
	ID         string   `toml:"id" yaml:"id"`
	Reads      []string `toml:"reads" yaml:"reads"`
	Writes     []string `toml:"writes" yaml:"writes"`
	Before     []string `toml:"before" yaml:"before"`
	After      []string `toml:"after" yaml:"after"`
	MainThread bool     `toml:"main_thread" yaml:"main_thread"`
	Cost       float64  `toml:"cost" yaml:"cost"`
	Enabled    *bool    `toml:"enabled" yaml:"enabled"`   // nil = enabled
	Interval   string   `toml:"interval" yaml:"interval"` // time.ParseDuration syntax
	Script     string   `toml:"script" yaml:"script"`     // optional Lua script path
}

// Declaration converts the row into a declaration without an update hook.
func (r Row) Declaration() (ecsched.Declaration, error) {
	decl := ecsched.Declaration{
		ID:         ecsched.SystemID(r.ID),
		MainThread: r.MainThread,
		Cost:       r.Cost,
		Disabled:   r.Enabled != nil && !*r.Enabled,
	}
	for _, c := range r.Reads {
		decl.Reads = append(decl.Reads, ecsched.ComponentNamed(c))
	}
	for _, c := range r.Writes {
		decl.Writes = append(decl.Writes, ecsched.ComponentNamed(c))
	}
	for _, id := range r.Before {
		decl.Before = append(decl.Before, ecsched.SystemID(id))
	}
	for _, id := range r.After {
		decl.After = append(decl.After, ecsched.SystemID(id))
	}
	if r.Interval != "" {
		d, err := time.ParseDuration(r.Interval)
		if err != nil {
			return ecsched.Declaration{}, fmt.Errorf("system %q: interval: %w", r.ID, err)
		}
		decl.Interval = d
	}
	return decl, nil
}

type tableFile struct {
	Systems []Row `toml:"systems" yaml:"systems"`
}

// Table holds the rows of one table file in file order.
type Table struct {
	rows []Row
	byID map[ecsched.SystemID]int
}

// Load reads a table file, choosing the format by extension.
func Load(path string) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	t, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a table from data.
func Parse(data []byte, format Format) (*Table, error) {
	var f tableFile
	switch format {
	case TOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&f)
		if err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse toml: unknown key %q", undecoded[0].String())
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}

	t := &Table{
		rows: f.Systems,
		byID: make(map[ecsched.SystemID]int, len(f.Systems)),
	}
	for i, r := range f.Systems {
		id := ecsched.NormalizeID(ecsched.SystemID(r.ID))
		if id == "" {
			return nil, fmt.Errorf("row %d: %w: empty id", i, ecsched.ErrInvalidDeclaration)
		}
		if _, dup := t.byID[id]; dup {
			return nil, fmt.Errorf("row %d: %w", i, &ecsched.DuplicateSystemError{ID: id})
		}
		t.byID[id] = i
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the rows in file order.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Row finds a row by system id.
func (t *Table) Row(id ecsched.SystemID) (Row, bool) {
	i, ok := t.byID[ecsched.NormalizeID(id)]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

// Declarations converts every row and attaches the hook b returns for it.
// A nil Binder leaves every hook empty.
func (t *Table) Declarations(b Binder) ([]ecsched.Declaration, error) {
	out := make([]ecsched.Declaration, 0, len(t.rows))
	var errs []error
	for _, r := range t.rows {
		decl, err := r.Declaration()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if b != nil {
			sys, err := b.Bind(r)
			if err != nil {
				errs = append(errs, fmt.Errorf("system %q: %w", r.ID, err))
				continue
			}
			decl.System = sys
		}
		out = append(out, decl)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Bundle returns a bundle holding every declaration of the table.
func (t *Table) Bundle(name string, b Binder) (*ecsched.Bundle, error) {
	decls, err := t.Declarations(b)
	if err != nil {
		return nil, err
	}
	return ecsched.NewBundle(name).Add(decls...), nil
}

package frontend

import (
	"fmt"
	"go/token"
	"io/fs"
	"path"
	"slices"
	"strings"
	"testing/fstest"

	"github.com/cottand/bamlc/frontend/ast"
	"github.com/cottand/bamlc/frontend/ilerr"
)

// LoadSettings controls which files LoadSchema reads
type LoadSettings struct {
	// Dir is the path of the folder in the filesystem where the schema files are located.
	// The default is `.`
	Dir string
	// Extensions are the file suffixes considered schema files,
	// the default is .yaml and .yml
	Extensions []string
	// File restricts loading to a single file of Dir
	File string
}

func (s LoadSettings) extensions() []string {
	if len(s.Extensions) == 0 {
		return []string{".yaml", ".yml"}
	}
	return s.Extensions
}

// LoadSchema parses every schema file in settings.Dir (not recursively),
// in lexical order, into a single ast.Schema
func LoadSchema(fsys fs.FS, settings LoadSettings) (*ast.Schema, *ilerr.Errors, error) {
	dir := settings.Dir
	if dir == "" {
		dir = "."
	}
	names, err := schemaFiles(fsys, dir, settings)
	if err != nil {
		return nil, nil, err
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no schema files found in %s", dir)
	}

	fset := token.NewFileSet()
	var schemas []*ast.Schema
	var errs *ilerr.Errors
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, nil, err
		}
		schema, fileErrs, err := ParseSchemaFile(fset, name, data)
		if err != nil {
			return nil, nil, err
		}
		errs = errs.Merge(fileErrs)
		schemas = append(schemas, schema)
	}
	loaderLogger.Info("loaded schema", "files", len(names), "dir", dir)
	return MergeSchemas(schemas...), errs, nil
}

func schemaFiles(fsys fs.FS, dir string, settings LoadSettings) ([]string, error) {
	if settings.File != "" {
		return []string{settings.File}, nil
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.ContainsFunc(settings.extensions(), func(ext string) bool { return strings.HasSuffix(e.Name(), ext) }) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// NewSchemaFromBytes parses a single file, meant for testing
func NewSchemaFromBytes(data []byte) (*ast.Schema, *ilerr.Errors, error) {
	filesystem := fstest.MapFS{
		"test.yaml": &fstest.MapFile{
			Data: data,
		},
	}
	return LoadSchema(filesystem, LoadSettings{})
}

package artifact

import (
	"fmt"
	"path"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var skipNames = map[string]struct{}{
	"module-info.class":  {},
	"package-info.class": {},
}

var nestedDirs = []string{"BOOT-INF/lib/", "WEB-INF/lib/"}

// filter decides which entry paths are class files to yield.
type filter struct {
	gi        *ignore.GitIgnore
	versioned bool
}

func newFilter(opts Options) (*filter, error) {
	f := &filter{versioned: opts.Versioned}
	switch {
	case opts.ExcludeFile != "":
		gi, err := ignore.CompileIgnoreFileAndLines(opts.ExcludeFile, opts.Exclude...)
		if err != nil {
			return nil, fmt.Errorf("artifact: exclude file: %w", err)
		}
		f.gi = gi
	case len(opts.Exclude) > 0:
		f.gi = ignore.CompileIgnoreLines(opts.Exclude...)
	}
	return f, nil
}

func (f *filter) excluded(name string) bool {
	return f.gi != nil && f.gi.MatchesPath(name)
}

// class reports whether name is a class file entry to decode.
func (f *filter) class(name string) bool {
	if !strings.HasSuffix(name, ".class") {
		return false
	}
	if _, skip := skipNames[path.Base(name)]; skip {
		return false
	}
	if !f.versioned && strings.HasPrefix(name, "META-INF/versions/") {
		return false
	}
	return !f.excluded(name)
}

// nestedJar reports whether name is a library jar packaged inside an
// application archive.
func (f *filter) nestedJar(name string) bool {
	if !strings.HasSuffix(name, ".jar") || f.excluded(name) {
		return false
	}
	for _, dir := range nestedDirs {
		if strings.HasPrefix(name, dir) && !strings.Contains(name[len(dir):], "/") {
			return true
		}
	}
	return false
}

func isArchiveName(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".jar" || ext == ".zip" || ext == ".war"
}

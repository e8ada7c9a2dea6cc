package finder

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/afero"

	"github.com/ritzau/dirscan/pkg/walker"
)

func newTree(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/work", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, f := range files {
		path := filepath.Join("/work", f)
		if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll(%s): %v", filepath.Dir(path), err)
		}
		if err := afero.WriteFile(fsys, path, nil, 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", path, err)
		}
	}
	return fsys
}

func TestFindFiles(t *testing.T) {
	tree := []string{
		"README.md",
		"app.log",
		"app.logger",
		"build/target/out.txt",
		"src/main.go",
		"src/main_test.go",
		"var/x.log/keep.txt",
	}

	tests := []struct {
		name    string
		exclude []string
		want    []string
	}{
		{
			name:    "no patterns returns every file",
			exclude: nil,
			want: []string{
				"/work/README.md",
				"/work/app.log",
				"/work/app.logger",
				"/work/build/target/out.txt",
				"/work/src/main.go",
				"/work/src/main_test.go",
				"/work/var/x.log/keep.txt",
			},
		},
		{
			name:    "literal excludes any path containing it",
			exclude: []string{"target"},
			want: []string{
				"/work/README.md",
				"/work/app.log",
				"/work/app.logger",
				"/work/src/main.go",
				"/work/src/main_test.go",
				"/work/var/x.log/keep.txt",
			},
		},
		{
			name:    "extension excludes exact extension only",
			exclude: []string{"*.log"},
			want: []string{
				"/work/README.md",
				"/work/app.logger",
				"/work/build/target/out.txt",
				"/work/src/main.go",
				"/work/src/main_test.go",
				"/work/var/x.log/keep.txt",
			},
		},
		{
			name:    "mixed patterns",
			exclude: []string{"_test", "*.md", "build"},
			want: []string{
				"/work/app.log",
				"/work/app.logger",
				"/work/src/main.go",
				"/work/var/x.log/keep.txt",
			},
		},
		{
			name:    "unsupported patterns are ignored",
			exclude: []string{"*log", "src*", ""},
			want: []string{
				"/work/README.md",
				"/work/app.log",
				"/work/app.logger",
				"/work/build/target/out.txt",
				"/work/src/main.go",
				"/work/src/main_test.go",
				"/work/var/x.log/keep.txt",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newTree(t, tree...)

			result, err := FindFiles(fsys, Options{Root: "/work", Exclude: tt.exclude})
			if err != nil {
				t.Fatalf("FindFiles() error = %v", err)
			}
			if !reflect.DeepEqual(result.Files, tt.want) {
				t.Errorf("FindFiles() files =\n%v\nwant\n%v", result.Files, tt.want)
			}
		})
	}
}

func TestFindFiles_ExcludedDirectoryDescendantsStillVisited(t *testing.T) {
	fsys := newTree(t, "a.txt", "b/c.txt")

	result, err := FindFiles(fsys, Options{Root: "/work", Exclude: []string{"b"}})
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}

	if !reflect.DeepEqual(result.Files, []string{"/work/a.txt"}) {
		t.Errorf("Expected [/work/a.txt], got %v", result.Files)
	}
	// /work, /work/a.txt, /work/b, /work/b/c.txt
	if result.Visited != 4 {
		t.Errorf("Expected 4 visited entries, got %d", result.Visited)
	}
	if result.ExcludedDirs != 1 || result.ExcludedFiles != 1 {
		t.Errorf("Expected 1 excluded dir and 1 excluded file, got %d and %d",
			result.ExcludedDirs, result.ExcludedFiles)
	}
}

func TestFindFiles_PruneSkipsSubtree(t *testing.T) {
	fsys := newTree(t, "a.txt", "b/c.txt", "b/d/e.txt")

	result, err := FindFiles(fsys, Options{Root: "/work", Exclude: []string{"b"}, Prune: true})
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}

	if !reflect.DeepEqual(result.Files, []string{"/work/a.txt"}) {
		t.Errorf("Expected [/work/a.txt], got %v", result.Files)
	}
	// /work, /work/a.txt, /work/b
	if result.Visited != 3 {
		t.Errorf("Expected 3 visited entries with pruning, got %d", result.Visited)
	}
}

func TestFindFiles_ResultHoldsNoDirectories(t *testing.T) {
	fsys := newTree(t, "x/y/z.txt")
	if err := fsys.MkdirAll("/work/empty/nested", 0o755); err != nil {
		t.Fatal(err)
	}

	result, err := FindFiles(fsys, Options{Root: "/work"})
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}

	if !reflect.DeepEqual(result.Files, []string{"/work/x/y/z.txt"}) {
		t.Errorf("Expected only the file, got %v", result.Files)
	}
}

func TestFindFiles_Idempotent(t *testing.T) {
	fsys := newTree(t, "q.txt", "a/b.txt", "a/c/d.log", "z/y.txt")
	opts := Options{Root: "/work", Exclude: []string{"*.log"}}

	first, err := FindFiles(fsys, opts)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	second, err := FindFiles(fsys, opts)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Repeated scans differ:\n%+v\n%+v", first, second)
	}
}

func TestFindFiles_MissingRootFails(t *testing.T) {
	result, err := FindFiles(afero.NewMemMapFs(), Options{Root: "/nope"})

	if result != nil {
		t.Errorf("Expected no partial result, got %+v", result)
	}
	var ioErr *walker.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Expected *walker.IOError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestFindFilesOS_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ok.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	locked := filepath.Join(dir, "locked")
	if err := os.MkdirAll(locked, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	result, err := FindFilesOS(Options{Root: dir})
	if err == nil {
		t.Fatalf("Expected error, got result %v", result.Files)
	}
	if result != nil {
		t.Errorf("Expected no partial result, got %+v", result)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("Expected permission error, got %v", err)
	}
}

func TestFindFilesOS_RealTree(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"a.txt", "b/c.txt", "b/skip.tmp"} {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	result, err := FindFilesOS(Options{Root: dir, Exclude: []string{"*.tmp"}})
	if err != nil {
		t.Fatalf("FindFilesOS() error = %v", err)
	}

	want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b", "c.txt")}
	if !reflect.DeepEqual(result.Files, want) {
		t.Errorf("Expected %v, got %v", want, result.Files)
	}
}

func TestFindFilesOS_RelativeRootMatchesLiteralText(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"sub/a.txt", "sub/inner/b.txt", "build/out.o", "keep.txt"} {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(dir)

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "root text as pattern excludes everything",
			opts: Options{Root: "./sub", Exclude: []string{"./sub"}},
			want: []string{},
		},
		{
			name: "dot root keeps prefix",
			opts: Options{Root: ".", Exclude: []string{"./build"}},
			want: []string{"./keep.txt", "./sub/a.txt", "./sub/inner/b.txt"},
		},
		{
			name: "trailing separator root",
			opts: Options{Root: "sub/"},
			want: []string{"sub/a.txt", "sub/inner/b.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FindFilesOS(tt.opts)
			if err != nil {
				t.Fatalf("FindFilesOS() error = %v", err)
			}
			got := []string{}
			for _, f := range result.Files {
				got = append(got, filepath.ToSlash(f))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

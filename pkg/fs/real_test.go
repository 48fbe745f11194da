package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func Test_RealFS_Exists_Returns_False_When_Path_Does_Not_Exist(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()

	exists, err := fs.Exists(filepath.Join(dir, "does-not-exist.bin"))

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, false; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_Exists_Returns_True_When_Path_Is_A_Directory(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	subdir := filepath.Join(t.TempDir(), "nand")

	if err := fs.MkdirAll(subdir, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	exists, err := fs.Exists(subdir)

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, true; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

func Test_RealFS_WriteFileAtomic_Replaces_Contents_And_Applies_Perm(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	path := filepath.Join(t.TempDir(), "page_map.bin")

	if err := os.WriteFile(path, []byte("old contents"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := fs.WriteFileAtomic(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if got, want := string(data), "\x01\x02\x03"; got != want {
		t.Fatalf("data=%q, want=%q", got, want)
	}

	info, err := fs.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if got, want := info.Mode().Perm(), os.FileMode(0o644); got != want {
		t.Fatalf("perm=%v, want=%v", got, want)
	}
}

func Test_Locker_TryLock_Returns_ErrWouldBlock_When_Already_Held(t *testing.T) {
	t.Parallel()

	locker := NewLocker(NewReal())
	path := filepath.Join(t.TempDir(), ".lock")

	first, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("first TryLock: %v", err)
	}

	_, err = locker.TryLock(path)
	if got, want := err, ErrWouldBlock; !errors.Is(got, want) {
		t.Fatalf("second TryLock err=%v, want=%v", got, want)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	again, err := locker.TryLock(path)
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}

	_ = again.Close()
}

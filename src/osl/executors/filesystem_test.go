package executors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
)

func newTestCtx() *execctx.ExecutionContext {
	sec := execctx.NewSecurityContext("demo", "sess-1", nil)
	return execctx.New(sec)
}

func TestFilesystemExecutor_ReadSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	exec := NewFilesystemExecutor("demo")
	op := operations.NewFileReadOperation(path)
	res, err := exec.Execute(context.Background(), op, newTestCtx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Output) != "hello world" {
		t.Fatalf("got %q", res.Output)
	}
	if !res.Success() {
		t.Fatal("expected success status")
	}
	if res.Metadata["path"] != path {
		t.Fatalf("expected path metadata, got %q", res.Metadata["path"])
	}
	if res.StartedAt == nil || res.CompletedAt == nil {
		t.Fatal("expected timestamps to be set")
	}
}

func TestFilesystemExecutor_ReadMissingFails(t *testing.T) {
	exec := NewFilesystemExecutor("demo")
	op := operations.NewFileReadOperation("/nonexistent/path/for/sure")
	if _, err := exec.Execute(context.Background(), op, newTestCtx()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFilesystemExecutor_ReadDirectoryRejected(t *testing.T) {
	dir := t.TempDir()
	exec := NewFilesystemExecutor("demo")
	op := operations.NewFileReadOperation(dir)
	if err := exec.Validate(context.Background(), op, newTestCtx()); err == nil {
		t.Fatal("expected validation error reading a directory")
	}
}

func TestFilesystemExecutor_WriteRequiresExistingParent(t *testing.T) {
	exec := NewFilesystemExecutor("demo")
	op := operations.NewFileWriteOperation("/nonexistent/parent/file.txt", []byte("x"), false)
	if err := exec.Validate(context.Background(), op, newTestCtx()); err == nil {
		t.Fatal("expected validation error for missing parent")
	}
}

func TestFilesystemExecutor_DeleteRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	exec := NewFilesystemExecutor("demo")
	op := operations.NewDeleteOperation(dir)
	if err := exec.Validate(context.Background(), op, newTestCtx()); err == nil {
		t.Fatal("expected validation error deleting a directory")
	}
}

func TestFilesystemExecutor_CreateDirRejectsExisting(t *testing.T) {
	dir := t.TempDir()
	exec := NewFilesystemExecutor("demo")
	op := operations.NewCreateDirOperation(dir, false)
	if err := exec.Validate(context.Background(), op, newTestCtx()); err == nil {
		t.Fatal("expected validation error for already-existing dir")
	}
}

func TestFilesystemExecutor_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	exec := NewFilesystemExecutor("demo")

	wop := operations.NewFileWriteOperation(path, []byte("payload"), false)
	res, err := exec.Execute(context.Background(), wop, newTestCtx())
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if res.Metadata["bytes_written"] != "7" {
		t.Fatalf("expected 7 bytes written, got %s", res.Metadata["bytes_written"])
	}

	rop := operations.NewFileReadOperation(path)
	res, err = exec.Execute(context.Background(), rop, newTestCtx())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(res.Output) != "payload" {
		t.Fatalf("got %q", res.Output)
	}
}

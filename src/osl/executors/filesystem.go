package executors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airssys-go/platform/src/osl/execctx"
	"github.com/airssys-go/platform/src/osl/operations"
	"github.com/airssys-go/platform/src/osl/oserr"
)

// FilesystemExecutor implements Executor[*operations.FilesystemOp].
//
// Validation contracts (spec §4.1):
//   - Read: path must exist and must not be a directory.
//   - Write (non-append): parent directory must exist.
//   - CreateDir: target must not exist; if non-recursive, parent must exist.
//   - Delete: target must exist and must be a regular file.
type FilesystemExecutor struct {
	User string // attached to the "user" metadata key on every result
}

var _ Executor[*operations.FilesystemOp] = (*FilesystemExecutor)(nil)

func NewFilesystemExecutor(user string) *FilesystemExecutor {
	return &FilesystemExecutor{User: user}
}

func (e *FilesystemExecutor) Validate(_ context.Context, op *operations.FilesystemOp, _ *execctx.ExecutionContext) error {
	switch op.Kind() {
	case operations.KindFilesystemRead:
		info, err := os.Stat(op.Path)
		if err != nil {
			return oserr.Wrap(oserr.CategoryValidation, oserr.KindInvalidOperation, "path does not exist", err)
		}
		if info.IsDir() {
			return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "path is a directory")
		}
	case operations.KindFilesystemWrite:
		if !op.Append {
			parent := filepath.Dir(op.Path)
			if info, err := os.Stat(parent); err != nil || !info.IsDir() {
				return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "parent directory does not exist")
			}
		}
	case operations.KindFilesystemCreateDir:
		if _, err := os.Stat(op.Path); err == nil {
			return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "target already exists")
		}
		if !op.Recursive {
			parent := filepath.Dir(op.Path)
			if info, err := os.Stat(parent); err != nil || !info.IsDir() {
				return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "parent directory does not exist")
			}
		}
	case operations.KindFilesystemDelete:
		info, err := os.Stat(op.Path)
		if err != nil {
			return oserr.Wrap(oserr.CategoryValidation, oserr.KindInvalidOperation, "target does not exist", err)
		}
		if info.IsDir() {
			return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "target is not a file")
		}
	case operations.KindFilesystemListDir:
		info, err := os.Stat(op.Path)
		if err != nil {
			return oserr.Wrap(oserr.CategoryValidation, oserr.KindInvalidOperation, "path does not exist", err)
		}
		if !info.IsDir() {
			return oserr.New(oserr.CategoryValidation, oserr.KindInvalidOperation, "path is not a directory")
		}
	}
	return nil
}

func (e *FilesystemExecutor) Execute(ctx context.Context, op *operations.FilesystemOp, ec *execctx.ExecutionContext) (*execctx.ExecutionResult, error) {
	if err := e.Validate(ctx, op, ec); err != nil {
		return nil, err
	}

	res := execctx.NewResult()
	res.MarkStarted()
	res.Metadata["path"] = op.Path
	res.Metadata["executor"] = "filesystem"
	res.Metadata["user"] = e.User

	switch op.Kind() {
	case operations.KindFilesystemRead:
		data, err := os.ReadFile(op.Path)
		if err != nil {
			return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindKernelIOFailure, "read failed", err)
		}
		res.Output = data
		res.Metadata["mode"] = "read"

	case operations.KindFilesystemWrite:
		flags := os.O_WRONLY | os.O_CREATE
		if op.Append {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(op.Path, flags, 0o644)
		if err != nil {
			return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindKernelIOFailure, "open failed", err)
		}
		defer f.Close()
		n, err := f.Write(op.Data)
		if err != nil {
			return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindKernelIOFailure, "write failed", err)
		}
		res.Metadata["mode"] = "write"
		res.Metadata["bytes_written"] = fmt.Sprintf("%d", n)

	case operations.KindFilesystemCreateDir:
		var err error
		if op.Recursive {
			err = os.MkdirAll(op.Path, 0o755)
		} else {
			err = os.Mkdir(op.Path, 0o755)
		}
		if err != nil {
			return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindKernelIOFailure, "mkdir failed", err)
		}
		res.Metadata["mode"] = "create_dir"

	case operations.KindFilesystemListDir:
		entries, err := os.ReadDir(op.Path)
		if err != nil {
			return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindKernelIOFailure, "readdir failed", err)
		}
		names := make([]byte, 0, 256)
		for i, entry := range entries {
			if i > 0 {
				names = append(names, '\n')
			}
			names = append(names, []byte(entry.Name())...)
		}
		res.Output = names
		res.Metadata["mode"] = "list_dir"
		res.Metadata["entries"] = fmt.Sprintf("%d", len(entries))

	case operations.KindFilesystemDelete:
		if err := os.Remove(op.Path); err != nil {
			return nil, oserr.Wrap(oserr.CategoryExecution, oserr.KindKernelIOFailure, "delete failed", err)
		}
		res.Metadata["mode"] = "delete"
	}

	res.MarkCompleted()
	return res, nil
}

func (e *FilesystemExecutor) Cleanup(_ context.Context, _ *execctx.ExecutionContext) error {
	return nil
}

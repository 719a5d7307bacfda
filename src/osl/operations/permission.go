package operations

import "fmt"

// Permission is a coarse-grained or path-scoped capability tag required to
// execute an operation. Filesystem permissions are scoped to a path;
// process and network permissions are coarse tags.
type Permission struct {
	Tag  string
	Path string
}

func (p Permission) String() string {
	if p.Path == "" {
		return p.Tag
	}
	return fmt.Sprintf("%s(%s)", p.Tag, p.Path)
}

const (
	TagProcessManage = "process-manage"
	TagNetworkSocket = "network-socket"
	TagFilesystemRead = "filesystem-read"
	TagFilesystemWrite = "filesystem-write"
)

// ProcessManage is the coarse permission required for process spawn/kill/signal.
func ProcessManage() Permission { return Permission{Tag: TagProcessManage} }

// NetworkSocket is the coarse permission required for network connect/listen/socket.
func NetworkSocket() Permission { return Permission{Tag: TagNetworkSocket} }

// FilesystemRead is the path-scoped permission required to read a path.
func FilesystemRead(path string) Permission {
	return Permission{Tag: TagFilesystemRead, Path: path}
}

// FilesystemWrite is the path-scoped permission required to write a path.
func FilesystemWrite(path string) Permission {
	return Permission{Tag: TagFilesystemWrite, Path: path}
}

// Package operations defines the OS Operation Layer's sum type over
// filesystem, process, network and utility operations (spec §3/§4.1).
// Each variant is an immutable value carrying a stable id, a created-at
// timestamp, the required permission set, and kind-specific fields.
package operations

import (
	"time"

	"github.com/google/uuid"
)

// Kind tags an Operation's variant.
type Kind string

const (
	KindFilesystemRead      Kind = "filesystem.read"
	KindFilesystemWrite     Kind = "filesystem.write"
	KindFilesystemCreateDir Kind = "filesystem.create_dir"
	KindFilesystemListDir   Kind = "filesystem.list_dir"
	KindFilesystemDelete    Kind = "filesystem.delete"
	KindProcessSpawn        Kind = "process.spawn"
	KindProcessKill         Kind = "process.kill"
	KindProcessSignal       Kind = "process.signal"
	KindNetworkConnect      Kind = "network.connect"
	KindNetworkListen       Kind = "network.listen"
	KindNetworkSocket       Kind = "network.socket"
	KindUtility             Kind = "utility"
)

// Operation is the common contract every concrete operation value satisfies.
// Concrete types embed Base and add kind-specific fields.
type Operation interface {
	ID() string
	Kind() Kind
	CreatedAt() time.Time
	RequiredPermissions() []Permission
}

// Base carries the fields common to every operation variant.
type Base struct {
	id          string
	kind        Kind
	createdAt   time.Time
	permissions []Permission
}

func newBase(kind Kind, permissions []Permission) Base {
	return Base{
		id:          uuid.NewString(),
		kind:        kind,
		createdAt:   time.Now(),
		permissions: permissions,
	}
}

func (b Base) ID() string                     { return b.id }
func (b Base) Kind() Kind                      { return b.kind }
func (b Base) CreatedAt() time.Time            { return b.createdAt }
func (b Base) RequiredPermissions() []Permission { return b.permissions }

// FilesystemOp covers read/write/create-dir/list-dir/delete.
type FilesystemOp struct {
	Base
	Path      string
	Data      []byte // Write payload; empty for other kinds.
	Append    bool
	Recursive bool // for CreateDir
}

func NewFileReadOperation(path string) *FilesystemOp {
	return &FilesystemOp{Base: newBase(KindFilesystemRead, []Permission{FilesystemRead(path)}), Path: path}
}

func NewFileWriteOperation(path string, data []byte, appendMode bool) *FilesystemOp {
	return &FilesystemOp{
		Base:   newBase(KindFilesystemWrite, []Permission{FilesystemWrite(path)}),
		Path:   path,
		Data:   data,
		Append: appendMode,
	}
}

func NewCreateDirOperation(path string, recursive bool) *FilesystemOp {
	return &FilesystemOp{
		Base:      newBase(KindFilesystemCreateDir, []Permission{FilesystemWrite(path)}),
		Path:      path,
		Recursive: recursive,
	}
}

func NewListDirOperation(path string) *FilesystemOp {
	return &FilesystemOp{Base: newBase(KindFilesystemListDir, []Permission{FilesystemRead(path)}), Path: path}
}

func NewDeleteOperation(path string) *FilesystemOp {
	return &FilesystemOp{Base: newBase(KindFilesystemDelete, []Permission{FilesystemWrite(path)}), Path: path}
}

// ProcessOp covers spawn/kill/signal.
type ProcessOp struct {
	Base
	Command string
	Args    []string
	PID     int
	Signal  string
}

func NewSpawnOperation(command string, args []string) *ProcessOp {
	return &ProcessOp{
		Base:    newBase(KindProcessSpawn, []Permission{ProcessManage()}),
		Command: command,
		Args:    args,
	}
}

func NewKillOperation(pid int) *ProcessOp {
	return &ProcessOp{Base: newBase(KindProcessKill, []Permission{ProcessManage()}), PID: pid}
}

func NewSignalOperation(pid int, signal string) *ProcessOp {
	return &ProcessOp{
		Base:   newBase(KindProcessSignal, []Permission{ProcessManage()}),
		PID:    pid,
		Signal: signal,
	}
}

// NetworkOp covers connect/listen/socket.
type NetworkOp struct {
	Base
	Network string // "tcp", "udp", ...
	Address string
}

func NewConnectOperation(network, address string) *NetworkOp {
	return &NetworkOp{
		Base:    newBase(KindNetworkConnect, []Permission{NetworkSocket()}),
		Network: network,
		Address: address,
	}
}

func NewListenOperation(network, address string) *NetworkOp {
	return &NetworkOp{
		Base:    newBase(KindNetworkListen, []Permission{NetworkSocket()}),
		Network: network,
		Address: address,
	}
}

func NewSocketOperation(network string) *NetworkOp {
	return &NetworkOp{Base: newBase(KindNetworkSocket, []Permission{NetworkSocket()}), Network: network}
}

// UtilityOp is an escape hatch for operations that don't fit the three
// syscall families (e.g. a no-op health probe used by tests).
type UtilityOp struct {
	Base
	Name string
}

func NewUtilityOperation(name string, permissions ...Permission) *UtilityOp {
	return &UtilityOp{Base: newBase(KindUtility, permissions), Name: name}
}

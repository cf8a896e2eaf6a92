// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs defines the internal failure kinds produced by every mgridfs
// core component and the single mapping from those kinds to negative POSIX
// errnos. No package below the dispatch boundary (internal/fstransport)
// returns a raw errno; they all return a *Error built from a Kind here.
package errs

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind is one of the internal failure kinds enumerated in the core design.
// It is the only vocabulary core components use to signal failure.
type Kind int

const (
	// NotFound indicates the named BucketFile does not exist.
	NotFound Kind = iota
	// NotADirectory indicates an operation that requires a directory was
	// given something else.
	NotADirectory
	// NotEmpty indicates rmdir was attempted against a non-empty directory.
	NotEmpty
	// BadHandle indicates a handle argument did not resolve to a live entry.
	BadHandle
	// OutOfHandles indicates the handle table has no free slot.
	OutOfHandles
	// NoMemory indicates a local allocation (chunk growth, flush buffer)
	// could not be satisfied.
	NoMemory
	// OutOfRange indicates a requested size exceeds a configured limit.
	OutOfRange
	// BackendIO indicates a failure from the bucket façade or its
	// connection.
	BackendIO
	// Unsupported indicates an operation this filesystem deliberately does
	// not implement.
	Unsupported
	// Permission indicates the backend rejected a mutation.
	Permission
	// InvalidArg indicates a caller-supplied argument was malformed.
	InvalidArg
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case NotADirectory:
		return "not_a_directory"
	case NotEmpty:
		return "not_empty"
	case BadHandle:
		return "bad_handle"
	case OutOfHandles:
		return "out_of_handles"
	case NoMemory:
		return "no_memory"
	case OutOfRange:
		return "out_of_range"
	case BackendIO:
		return "backend_io"
	case Unsupported:
		return "unsupported"
	case Permission:
		return "permission"
	case InvalidArg:
		return "invalid_arg"
	default:
		return "unknown"
	}
}

// Error pairs a Kind with a human-readable message and, optionally, the
// underlying cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, defaulting to BackendIO for any
// error that didn't originate from this package (an unexpected panic-free
// escape from a backend call, say).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return BackendIO
}

// ToErrno maps a Kind to the negative-errno vocabulary the kernel upcall
// contract expects. This is the only place that vocabulary is produced;
// every package above it deals exclusively in Kind.
func ToErrno(kind Kind) syscallErrno {
	switch kind {
	case NotFound:
		return syscallErrno(unix.ENOENT)
	case NotADirectory:
		return syscallErrno(unix.ENOTDIR)
	case NotEmpty:
		return syscallErrno(unix.ENOTEMPTY)
	case BadHandle:
		return syscallErrno(unix.EBADF)
	case OutOfHandles:
		return syscallErrno(unix.ENFILE)
	case NoMemory:
		return syscallErrno(unix.ENOMEM)
	case OutOfRange:
		return syscallErrno(unix.EROFS)
	case BackendIO:
		return syscallErrno(unix.EIO)
	case Unsupported:
		return syscallErrno(unix.ENOTSUP)
	case Permission:
		return syscallErrno(unix.EACCES)
	case InvalidArg:
		return syscallErrno(unix.EINVAL)
	default:
		return syscallErrno(unix.EIO)
	}
}

// Errno maps err to the errno ToErrno would produce for its Kind, treating a
// nil err as success.
func Errno(err error) error {
	if err == nil {
		return nil
	}
	return ToErrno(KindOf(err))
}

// syscallErrno is unix.Errno under a local name so this package's exported
// surface doesn't leak golang.org/x/sys/unix to every caller of ToErrno.
type syscallErrno = unix.Errno

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

// Package metacodec encodes and decodes the metadata sub-record that rides
// alongside every bucket file document. Decoding tolerates missing fields
// by applying defaults rather than failing; an unrecognized type is
// surfaced to the caller instead of silently coerced.
package metacodec

import (
	"time"

	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/posixmode"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NodeType identifies what kind of POSIX entry a metadata record describes.
type NodeType string

const (
	TypeDirectory NodeType = "directory"
	TypeFile      NodeType = "file"
	TypeSymlink   NodeType = "slink"
)

// Defaults applied by Decode when a field is absent from the stored
// document.
const (
	DefaultUID  uint32 = 1
	DefaultGID  uint32 = 1
	DefaultMode uint32 = 0o555
)

// Metadata is the in-memory form of the metadata sub-record.
type Metadata struct {
	Type        NodeType
	Basename    string
	Directory   string
	LastUpdated time.Time
	UID         uint32
	GID         uint32
	Mode        uint32
	Target      string // only meaningful when Type == TypeSymlink
}

// Encode renders m into the nested bson document stored under the bucket
// file document's "metadata" key.
func Encode(m Metadata) bson.M {
	doc := bson.M{
		"type":        string(m.Type),
		"basename":    m.Basename,
		"directory":   m.Directory,
		"lastUpdated": primitive.NewDateTimeFromTime(m.LastUpdated),
		"uid":         m.UID,
		"gid":         m.GID,
		"mode":        m.Mode,
	}
	if m.Type == TypeSymlink {
		doc["target"] = m.Target
	}
	return doc
}

// Decode parses a stored metadata sub-document, applying defaults for any
// field that's absent. uploadTimestamp is the owning bucket
// file's upload time, used as the LastUpdated fallback. An unrecognized
// "type" value is returned as an error of kind errs.InvalidArg; callers
// decide whether that's a warning-and-ENOENT or a warning-and-IO situation.
func Decode(doc bson.M, uploadTimestamp time.Time) (Metadata, error) {
	m := Metadata{
		LastUpdated: uploadTimestamp,
		UID:         DefaultUID,
		GID:         DefaultGID,
		Mode:        DefaultMode,
	}

	if v, ok := doc["basename"].(string); ok {
		m.Basename = v
	}
	if v, ok := doc["directory"].(string); ok {
		m.Directory = v
	}
	if v, ok := asTime(doc["lastUpdated"]); ok {
		m.LastUpdated = v
	}
	if v, ok := asUint32(doc["uid"]); ok {
		m.UID = v
	}
	if v, ok := asUint32(doc["gid"]); ok {
		m.GID = v
	}
	if v, ok := asUint32(doc["mode"]); ok {
		m.Mode = v
	}
	if v, ok := doc["target"].(string); ok {
		m.Target = v
	}

	typ, _ := doc["type"].(string)
	switch NodeType(typ) {
	case TypeDirectory, TypeFile, TypeSymlink:
		m.Type = NodeType(typ)
	default:
		return m, errs.New(errs.InvalidArg, "metacodec: unrecognized type "+typ)
	}

	return m, nil
}

// ModeForType returns the file-type bits (S_IFDIR/S_IFREG/S_IFLNK) that must
// be set in mode for the given node type; used when minting fresh metadata.
func ModeForType(t NodeType) uint32 {
	switch t {
	case TypeDirectory:
		return posixmode.IFDIR
	case TypeSymlink:
		return posixmode.IFLNK
	default:
		return posixmode.IFREG
	}
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time(), true
	case time.Time:
		return t, true
	default:
		return time.Time{}, false
	}
}

func asUint32(v interface{}) (uint32, bool) {
	switch t := v.(type) {
	case uint32:
		return t, true
	case int32:
		return uint32(t), true
	case int64:
		return uint32(t), true
	case int:
		return uint32(t), true
	case float64:
		return uint32(t), true
	default:
		return 0, false
	}
}

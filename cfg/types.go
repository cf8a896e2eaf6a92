// Copyright 2024 Google LLC
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

package cfg

import (
	"fmt"
	"strings"
)

// LogSeverity represents the logging severity and can accept the following
// values: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "NONE".
type LogSeverity string

// Constants for all supported log severities.
const (
	TraceLogSeverity LogSeverity = "TRACE"
	DebugLogSeverity LogSeverity = "DEBUG"
	InfoLogSeverity  LogSeverity = "INFO"
	WarnLogSeverity  LogSeverity = "WARN"
	ErrorLogSeverity LogSeverity = "ERROR"
	FatalLogSeverity LogSeverity = "FATAL"
	NoneLogSeverity  LogSeverity = "NONE"
)

// severityRanking maps each level to an integer for validation and
// comparison.
var severityRanking = map[LogSeverity]int{
	TraceLogSeverity: 0,
	DebugLogSeverity: 1,
	InfoLogSeverity:  2,
	WarnLogSeverity:  3,
	ErrorLogSeverity: 4,
	FatalLogSeverity: 5,
	NoneLogSeverity:  6,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity level: %s. Must be one of [TRACE, DEBUG, INFO, WARN, ERROR, FATAL, NONE]", text)
	}
	*l = level
	return nil
}

func (l LogSeverity) MarshalText() ([]byte, error) {
	return []byte(l), nil
}

// Rank returns the integer representation of the severity rank.
// Returns -1 if the severity is unknown.
func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	return -1
}

/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/tomoncle/repogen/utils"
)

func TestToFields(t *testing.T) {
	f := toFields("model", "User", "count", 3, "dangling")
	if f["model"] != "User" || f["count"] != 3 || f["extra"] != "dangling" {
		t.Fatalf("unexpected fields: %v", f)
	}
}

func TestDefaultLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	utils.ConfigureConsoleLogFormat("json")
	utils.ConfigureOutput(&buf)
	t.Cleanup(func() {
		utils.ConfigureConsoleLogFormat("text")
		utils.ConfigureOutput(os.Stderr)
	})

	l := NewDefaultLogger("DBLOGTEST")
	l.SetLevel(LogLevelDebug)
	l.Debug("resolved", "model", "User")

	var entry struct {
		Logger string                 `json:"logger"`
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %q", err, buf.String())
	}
	if entry.Logger != "DBLOGTEST" || entry.Fields["model"] != "User" {
		t.Fatalf("field missing from log line: %v", entry)
	}

	buf.Reset()
	l.SetLevel(LogLevelError)
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at error level: %q", buf.String())
	}
}

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

package utils

import (
	"testing"
	"time"
)

func TestEnvDefaults(t *testing.T) {
	t.Setenv("REPOGEN_INT", " 42 ")
	t.Setenv("REPOGEN_BAD_INT", "x")
	t.Setenv("REPOGEN_SECONDS", "3")
	t.Setenv("REPOGEN_BOOL", "off")

	if got := EnvDefaultInt("REPOGEN_INT", 1); got != 42 {
		t.Fatalf("EnvDefaultInt = %d", got)
	}
	if got := EnvDefaultInt("REPOGEN_BAD_INT", 1); got != 1 {
		t.Fatalf("invalid int should keep the default, got %d", got)
	}
	if got := EnvDefaultInt("REPOGEN_UNSET", 5); got != 5 {
		t.Fatalf("unset int should keep the default, got %d", got)
	}
	if got := EnvDefaultSeconds("REPOGEN_SECONDS", time.Minute); got != 3*time.Second {
		t.Fatalf("EnvDefaultSeconds = %v", got)
	}
	if EnvDefaultBool("REPOGEN_BOOL", true) {
		t.Fatalf("EnvDefaultBool should parse off as false")
	}
	if got := EnvDefaultString("REPOGEN_UNSET", "def"); got != "def" {
		t.Fatalf("EnvDefaultString = %q", got)
	}
}

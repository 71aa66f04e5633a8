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

// Command repogen writes one repository file per model of a Go package or
// a YAML manifest.
//
//	repogen generate --scan ./models --out ./repos --models-import example.com/app/models
//	repogen list --manifest models.yaml
//	repogen ping --config database.yaml
package main

import (
	"os"

	"github.com/tomoncle/repogen/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		utils.NewLogger(loggerName).Error(err)
		os.Exit(1)
	}
}

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

package repository

import "errors"

var (
	// ErrUnknownModel is returned when no model is registered under a name or type.
	ErrUnknownModel = errors.New("repository: unknown model")

	// ErrEmptyWhere is returned by FindUnique and Delete for an empty filter.
	ErrEmptyWhere = errors.New("repository: where must name at least one column")

	// ErrModelType is returned when an untyped call gets data of another model.
	ErrModelType = errors.New("repository: data does not match model type")
)

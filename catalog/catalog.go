/*
 * Copyright (c) 2013-2019, Jeremy Bingham (<jeremy@goiardi.gl>)
 *
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

/*
Package catalog holds the geospatial catalog resources portiere guards:
workspaces, the layers inside them, and layer groups that aggregate layers
(and other layer groups). The decision engine only ever reads the catalog;
mutation comes in through the administrative endpoints, which are expected to
tell the containment index about any membership change they make.

Resources are identified by qualified ids. A layer's id is "workspace:name".
A layer group's id is "workspace:name" when the group belongs to a workspace,
or just "name" for a global group.
*/
package catalog

import (
	"strings"
)

// Resource kinds, as stored in the data store and reported to callers asking
// whether an id is atomic or composite.
const (
	KindWorkspace  = "workspace"
	KindLayer      = "layer"
	KindLayerGroup = "layergroup"
)

// Resource is implemented by everything living in the catalog.
type Resource interface {
	GetName() string
	ResourceID() string
	Kind() string
}

// LayerID returns the qualified id for a layer in a workspace.
func LayerID(workspace string, name string) string {
	return workspace + ":" + name
}

// GroupID returns the qualified id for a layer group. Global groups carry no
// workspace qualifier.
func GroupID(workspace string, name string) string {
	if workspace == "" {
		return name
	}
	return workspace + ":" + name
}

// SplitID splits a qualified id into its workspace and name parts. The
// workspace comes back empty for unqualified (global) ids.
func SplitID(id string) (string, string) {
	if i := strings.Index(id, ":"); i != -1 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// IsComposite reports whether the given id names a layer group.
func IsComposite(id string) bool {
	_, err := GetLayerGroupID(id)
	return err == nil
}

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
Package containment keeps the reverse index from each catalog resource to the
layer groups that transitively contain it, so a group listing can be filtered
per member without walking the catalog on every request.

The index holds the forward adjacency (group to direct members) and the
computed reverse transitive closure (member to every group above it). A full
catalog walk happens once, at startup; after that the catalog-change handlers
feed mutations in through ResourceAdded, ResourceRemoved, ResourceRenamed,
and EdgeRemoved, and only the affected part of the closure is recomputed.

One writer at a time holds the write lock for a whole mutation, so readers
see the index either entirely before or entirely after a change, never
halfway through. If a rebuild fails the index keeps answering from the
last-known-good state and reports itself degraded.
*/
package containment

import (
	"net/http"
	"sort"
	"sync"

	"github.com/portiere/portiere/catalog"
	"github.com/portiere/portiere/gerror"
	"github.com/portiere/portiere/util"
	"github.com/tideland/golib/logger"
)

// Index is the containment index. Use Initialize and GetIndex rather than
// constructing one directly; decisions all consult the same index.
type Index struct {
	m        sync.RWMutex
	forward  map[string][]string
	parents  map[string][]string
	closure  map[string]map[string]bool
	degraded bool
}

var indexInstance *Index

// Initialize builds the index from the current catalog. If the catalog
// cannot be walked there is no index, and the caller must treat that as
// fatal; running without one would quietly grant or refuse the wrong things.
func Initialize() util.Gerror {
	idx := new(Index)
	if err := idx.build(); err != nil {
		return err
	}
	indexInstance = idx
	return nil
}

// GetIndex returns the process-wide containment index.
func GetIndex() *Index {
	return indexInstance
}

func (idx *Index) build() util.Gerror {
	groups, err := catalog.AllLayerGroups()
	if err != nil {
		gerr := util.KindErrorf(gerror.KindIndexUnavailable, http.StatusInternalServerError, "could not walk the catalog to build the containment index: %s", err.Error())
		return gerr
	}
	forward := make(map[string][]string)
	parents := make(map[string][]string)
	for _, g := range groups {
		gid := g.ResourceID()
		members := make([]string, len(g.Members))
		copy(members, g.Members)
		forward[gid] = members
		for _, m := range members {
			parents[m] = append(parents[m], gid)
		}
	}
	closure := make(map[string]map[string]bool)
	for m := range parents {
		closure[m] = computeClosure(m, parents)
	}

	idx.m.Lock()
	defer idx.m.Unlock()
	idx.forward = forward
	idx.parents = parents
	idx.closure = closure
	idx.degraded = false
	return nil
}

// Rebuild walks the catalog again, replacing the index contents wholesale.
// On failure the old state stays in place and the index flags itself
// degraded.
func (idx *Index) Rebuild() util.Gerror {
	if err := idx.build(); err != nil {
		idx.m.Lock()
		idx.degraded = true
		idx.m.Unlock()
		logger.Errorf("containment index rebuild failed, serving last known state: %s", err.Error())
		return err
	}
	return nil
}

// Degraded reports whether the index is serving stale data after a failed
// rebuild.
func (idx *Index) Degraded() bool {
	idx.m.RLock()
	defer idx.m.RUnlock()
	return idx.degraded
}

// GroupsContaining returns the ids of every group that directly or
// indirectly contains the given resource, sorted.
func (idx *Index) GroupsContaining(id string) []string {
	idx.m.RLock()
	defer idx.m.RUnlock()
	set := idx.closure[id]
	groups := make([]string, 0, len(set))
	for g := range set {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// DirectMembers returns the direct member ids of a group, in catalog order.
func (idx *Index) DirectMembers(groupID string) []string {
	idx.m.RLock()
	defer idx.m.RUnlock()
	members := idx.forward[groupID]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// ResourceAdded records a new resource and the groups it was put into. The
// resource may itself be a group that already has members recorded.
func (idx *Index) ResourceAdded(id string, parentGroupIDs []string) {
	idx.m.Lock()
	defer idx.m.Unlock()
	for _, gid := range parentGroupIDs {
		if !stringInSlice(id, idx.forward[gid]) {
			if idx.forward == nil {
				idx.forward = make(map[string][]string)
			}
			idx.forward[gid] = append(idx.forward[gid], id)
		}
		if !stringInSlice(gid, idx.parents[id]) {
			if idx.parents == nil {
				idx.parents = make(map[string][]string)
			}
			idx.parents[id] = append(idx.parents[id], gid)
		}
	}
	idx.recompute(id)
}

// ResourceRemoved drops a resource from the index entirely, edges included.
func (idx *Index) ResourceRemoved(id string) {
	idx.m.Lock()
	defer idx.m.Unlock()
	affected := idx.descendants(id)
	for _, gid := range idx.parents[id] {
		idx.forward[gid] = delString(id, idx.forward[gid])
	}
	for _, m := range idx.forward[id] {
		idx.parents[m] = delString(id, idx.parents[m])
	}
	delete(idx.forward, id)
	delete(idx.parents, id)
	delete(idx.closure, id)
	for _, a := range affected {
		idx.recomputeOne(a)
	}
}

// EdgeRemoved drops a single membership edge, leaving both resources in
// place. Only the former member and the resources under it get their
// closures recomputed.
func (idx *Index) EdgeRemoved(memberID string, groupID string) {
	idx.m.Lock()
	defer idx.m.Unlock()
	idx.forward[groupID] = delString(memberID, idx.forward[groupID])
	idx.parents[memberID] = delString(groupID, idx.parents[memberID])
	if len(idx.parents[memberID]) == 0 {
		delete(idx.parents, memberID)
	}
	idx.recompute(memberID)
}

// ResourceRenamed moves a resource's edges to its new id. Nothing is
// recomputed from the catalog; the groups above and below keep their
// structure, pointed at the new name.
func (idx *Index) ResourceRenamed(oldID string, newID string) {
	idx.m.Lock()
	defer idx.m.Unlock()
	if members, ok := idx.forward[oldID]; ok {
		idx.forward[newID] = members
		delete(idx.forward, oldID)
		for _, m := range members {
			idx.parents[m] = replaceInSlice(oldID, newID, idx.parents[m])
		}
	}
	if pars, ok := idx.parents[oldID]; ok {
		idx.parents[newID] = pars
		delete(idx.parents, oldID)
		for _, gid := range pars {
			idx.forward[gid] = replaceInSlice(oldID, newID, idx.forward[gid])
		}
	}
	if cl, ok := idx.closure[oldID]; ok {
		idx.closure[newID] = cl
		delete(idx.closure, oldID)
	}
	// resources under the renamed group carry its id in their closures
	for _, d := range idx.descendants(newID) {
		if d == newID {
			continue
		}
		if cl := idx.closure[d]; cl != nil && cl[oldID] {
			delete(cl, oldID)
			cl[newID] = true
		}
	}
}

// recompute rebuilds the closure for the given resource and everything below
// it. Callers hold the write lock.
func (idx *Index) recompute(id string) {
	for _, a := range idx.descendants(id) {
		idx.recomputeOne(a)
	}
}

func (idx *Index) recomputeOne(id string) {
	if idx.closure == nil {
		idx.closure = make(map[string]map[string]bool)
	}
	cl := computeClosure(id, idx.parents)
	if len(cl) == 0 {
		delete(idx.closure, id)
		return
	}
	idx.closure[id] = cl
}

// descendants returns the given id plus every resource reachable downward
// from it through the forward adjacency. Callers hold a lock.
func (idx *Index) descendants(id string) []string {
	seen := map[string]bool{id: true}
	stack := []string{id}
	out := []string{id}
	for len(stack) != 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, m := range idx.forward[cur] {
			if !seen[m] {
				seen[m] = true
				stack = append(stack, m)
				out = append(out, m)
			}
		}
	}
	return out
}

// computeClosure walks upward from a resource through the parent adjacency,
// collecting every containing group. A visited set guards against membership
// cycles; a group reached twice contributes nothing new.
func computeClosure(id string, parents map[string][]string) map[string]bool {
	cl := make(map[string]bool)
	stack := make([]string, 0, len(parents[id]))
	stack = append(stack, parents[id]...)
	for len(stack) != 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cl[cur] || cur == id {
			continue
		}
		cl[cur] = true
		stack = append(stack, parents[cur]...)
	}
	return cl
}

func stringInSlice(s string, sl []string) bool {
	for _, e := range sl {
		if e == s {
			return true
		}
	}
	return false
}

func replaceInSlice(old string, repl string, sl []string) []string {
	for i, e := range sl {
		if e == old {
			sl[i] = repl
		}
	}
	return sl
}

func delString(s string, sl []string) []string {
	out := sl[:0]
	for _, e := range sl {
		if e != s {
			out = append(out, e)
		}
	}
	return out
}

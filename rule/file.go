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

package rule

// Loading rule tables from a file, either local or sitting in S3.

import (
	"io/ioutil"
	"net/http"

	"github.com/BurntSushi/toml"
	"github.com/portiere/portiere/util"
	"github.com/tideland/golib/logger"
)

type ruleFile struct {
	Rule []*Rule `toml:"rule"`
}

// LoadFile loads a toml rule table from the given path and saves every rule
// in it, replacing rules with the same id. The path may be an s3:// uri.
func LoadFile(path string) util.Gerror {
	var raw []byte
	var err error
	if util.IsS3URI(path) {
		raw, err = util.S3GetObject(path)
	} else {
		raw, err = ioutil.ReadFile(path)
	}
	if err != nil {
		gerr := util.Errorf("could not read rule file %s: %s", path, err.Error())
		gerr.SetStatus(http.StatusInternalServerError)
		return gerr
	}
	return loadRules(raw, path)
}

func loadRules(raw []byte, path string) util.Gerror {
	rf := new(ruleFile)
	if err := toml.Unmarshal(raw, rf); err != nil {
		gerr := util.Errorf("could not parse rule file %s: %s", path, err.Error())
		gerr.SetStatus(http.StatusInternalServerError)
		return gerr
	}
	seen := make(map[string]bool)
	for _, r := range rf.Rule {
		if r.ID == "" {
			gerr := util.Errorf("a rule in %s has no id", path)
			gerr.SetStatus(http.StatusBadRequest)
			return gerr
		}
		if seen[r.ID] {
			gerr := util.Errorf("rule id %s appears twice in %s", r.ID, path)
			gerr.SetStatus(http.StatusBadRequest)
			return gerr
		}
		seen[r.ID] = true
		fillRuleDefaults(r)
		if err := r.Save(); err != nil {
			return err
		}
	}
	logger.Infof("loaded %d rules from %s", len(rf.Rule), path)
	return nil
}

func fillRuleDefaults(r *Rule) {
	if r.Service == "" {
		r.Service = Wildcard
	}
	if r.Workspace == "" {
		r.Workspace = Wildcard
	}
	if r.Layer == "" {
		r.Layer = Wildcard
	}
	if r.Mode == "" {
		r.Mode = string(ModeRead)
	}
	if r.Policy == "" {
		r.Policy = string(PolicyAllow)
	}
	if r.Roles == nil {
		r.Roles = []string{}
	}
}

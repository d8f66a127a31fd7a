/* Rule administration functions */

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

package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/portiere/portiere/adminacl"
	"github.com/portiere/portiere/rule"
	"github.com/portiere/portiere/util"
)

func rulesListHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case "GET", "HEAD":
		if !checkAdminPerm(w, r, adminacl.Rules, "read") {
			return
		}
		if r.Method == "HEAD" {
			headResponse(w, r, http.StatusOK)
			return
		}
		enc := json.NewEncoder(w)
		// full rule dump for export, bare ids otherwise
		if r.FormValue("detail") == "true" {
			rules, rerr := rule.AllRules()
			if rerr != nil {
				jsonErrorReport(w, r, rerr.Error(), rerr.Status())
				return
			}
			if err := enc.Encode(&rules); err != nil {
				jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		ruleList := rule.GetList()
		if err := enc.Encode(&ruleList); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	case "POST":
		if !checkAdminPerm(w, r, adminacl.Rules, "create") {
			return
		}
		ruleData, jerr := parseObjJSON(r.Body)
		if jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusBadRequest)
			return
		}
		// a "rules" array is a bulk import of a previous ?detail=true dump
		if imported, ok := ruleData["rules"]; ok {
			importRules(w, r, imported)
			return
		}
		id, sterr := util.ValidateAsString(ruleData["id"])
		if sterr != nil {
			jsonErrorReport(w, r, sterr.Error(), sterr.Status())
			return
		}
		if _, err := rule.Get(id); err == nil {
			jsonErrorReport(w, r, "Rule already exists", http.StatusConflict)
			return
		}
		ru, nerr := rule.New(id)
		if nerr != nil {
			jsonErrorReport(w, r, nerr.Error(), nerr.Status())
			return
		}
		if aerr := applyRuleJSON(ru, ruleData); aerr != nil {
			jsonErrorReport(w, r, aerr.Error(), aerr.Status())
			return
		}
		if serr := ru.Save(); serr != nil {
			jsonErrorReport(w, r, serr.Error(), serr.Status())
			return
		}
		announceChange("rule-change", map[string]string{"rule": ru.ID, "action": "create"})
		w.WriteHeader(http.StatusCreated)
		enc := json.NewEncoder(w)
		if err := enc.Encode(&ru); err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusInternalServerError)
		}
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}

func ruleHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	vars := mux.Vars(r)
	ruleID := vars["id"]

	switch r.Method {
	case "GET", "HEAD":
		if !checkAdminPerm(w, r, adminacl.Rules, "read") {
			return
		}
		ru, err := rule.Get(ruleID)
		if err != nil {
			headOrErrReport(w, r, err.Error(), http.StatusNotFound)
			return
		}
		if r.Method == "HEAD" {
			headResponse(w, r, http.StatusOK)
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&ru); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	case "PUT":
		if !checkAdminPerm(w, r, adminacl.Rules, "update") {
			return
		}
		ruleData, jerr := parseObjJSON(r.Body)
		if jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusBadRequest)
			return
		}
		if rid, ok := ruleData["id"]; ok {
			jsonID, sterr := util.ValidateAsString(rid)
			if sterr != nil {
				jsonErrorReport(w, r, sterr.Error(), sterr.Status())
				return
			}
			if jsonID != ruleID {
				jsonErrorReport(w, r, "Rule id mismatch", http.StatusBadRequest)
				return
			}
		}
		ru, err := rule.Get(ruleID)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusNotFound)
			return
		}
		if aerr := applyRuleJSON(ru, ruleData); aerr != nil {
			jsonErrorReport(w, r, aerr.Error(), aerr.Status())
			return
		}
		if serr := ru.Save(); serr != nil {
			jsonErrorReport(w, r, serr.Error(), serr.Status())
			return
		}
		announceChange("rule-change", map[string]string{"rule": ru.ID, "action": "modify"})
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&ru); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
		}
	case "DELETE":
		if !checkAdminPerm(w, r, adminacl.Rules, "delete") {
			return
		}
		ru, err := rule.Get(ruleID)
		if err != nil {
			jsonErrorReport(w, r, err.Error(), http.StatusNotFound)
			return
		}
		enc := json.NewEncoder(w)
		if jerr := enc.Encode(&ru); jerr != nil {
			jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
			return
		}
		if derr := ru.Delete(); derr != nil {
			jsonErrorReport(w, r, derr.Error(), http.StatusInternalServerError)
			return
		}
		announceChange("rule-change", map[string]string{"rule": ru.ID, "action": "delete"})
	default:
		jsonErrorReport(w, r, "Unrecognized method!", http.StatusMethodNotAllowed)
	}
}

// importRules loads a dumped rule list back in, replacing rules that share an
// id with an imported one and leaving the rest alone.
func importRules(w http.ResponseWriter, r *http.Request, imported interface{}) {
	ruleList, ok := imported.([]interface{})
	if !ok {
		jsonErrorReport(w, r, "'rules' must be a list of rules", http.StatusBadRequest)
		return
	}
	saved := make([]*rule.Rule, 0, len(ruleList))
	for _, raw := range ruleList {
		ruleData, ok := raw.(map[string]interface{})
		if !ok {
			jsonErrorReport(w, r, "each imported rule must be an object", http.StatusBadRequest)
			return
		}
		id, sterr := util.ValidateAsString(ruleData["id"])
		if sterr != nil {
			jsonErrorReport(w, r, sterr.Error(), sterr.Status())
			return
		}
		ru, err := rule.Get(id)
		if err != nil {
			ru, err = rule.New(id)
			if err != nil {
				jsonErrorReport(w, r, err.Error(), err.Status())
				return
			}
		}
		if aerr := applyRuleJSON(ru, ruleData); aerr != nil {
			jsonErrorReport(w, r, aerr.Error(), aerr.Status())
			return
		}
		if serr := ru.Save(); serr != nil {
			jsonErrorReport(w, r, serr.Error(), serr.Status())
			return
		}
		saved = append(saved, ru)
	}
	announceChange("rule-change", map[string]string{"action": "import"})
	w.WriteHeader(http.StatusCreated)
	enc := json.NewEncoder(w)
	if jerr := enc.Encode(&saved); jerr != nil {
		jsonErrorReport(w, r, jerr.Error(), http.StatusInternalServerError)
	}
}

// applyRuleJSON copies the fields present in the request body onto the rule.
// Absent fields keep their current values; Save does the real validation.
func applyRuleJSON(ru *rule.Rule, ruleData map[string]interface{}) util.Gerror {
	strFields := map[string]*string{
		"service":   &ru.Service,
		"workspace": &ru.Workspace,
		"layer":     &ru.Layer,
		"mode":      &ru.Mode,
		"policy":    &ru.Policy,
	}
	for k, dst := range strFields {
		if v, ok := ruleData[k]; ok {
			s, sterr := util.ValidateAsString(v)
			if sterr != nil {
				return sterr
			}
			*dst = s
		}
	}
	if v, ok := ruleData["priority"]; ok {
		p, perr := util.ValidateAsInt(v)
		if perr != nil {
			return perr
		}
		ru.Priority = p
	}
	if v, ok := ruleData["roles"]; ok {
		roles, rerr := validateStringSlice(v)
		if rerr != nil {
			return rerr
		}
		ru.Roles = roles
	}
	return nil
}

func validateStringSlice(v interface{}) ([]string, util.Gerror) {
	switch sl := v.(type) {
	case []interface{}:
		out := make([]string, len(sl))
		for i, e := range sl {
			s, ok := e.(string)
			if !ok {
				return nil, util.Errorf("Field contained a non-string element")
			}
			out[i] = s
		}
		return out, nil
	case nil:
		return make([]string, 0), nil
	default:
		return nil, util.Errorf("Field was not a list of strings")
	}
}

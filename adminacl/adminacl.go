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

// Package adminacl is for perm checks on the administrative surface: editing
// rules, the catalog, the access snapshot, and reading the decision log.
package adminacl

import (
	"errors"
	"net/http"
	"os"
	"path"

	"github.com/casbin/casbin"
	"github.com/casbin/casbin/persist"
	fileadapter "github.com/casbin/casbin/persist/file-adapter"
	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/principal"
	"github.com/portiere/portiere/util"
	"github.com/tideland/golib/logger"
)

const adminPolicyFilename = "admin-policy.csv"

type ACLItem uint8

const (
	Rules ACLItem = iota
	Catalog
	AccessConfig
	DecisionLog
)

var aclLookup = map[ACLItem]string{
	Rules:        "rules",
	Catalog:      "catalog",
	AccessConfig: "access_config",
	DecisionLog:  "decision_log",
}

// adminACL wraps the enforcer for perm checks against the admin policy file.
type adminACL struct {
	*casbin.SyncedEnforcer
}

var AnonErr = util.Errorf("anonymous callers are ineligible to have permissions to perform this action")

// For now, don't keep the admin policy file loaded in memory. This may change
// down the road.

// CheckPerm checks whether the caller, under its own name or any of its
// roles, holds the given permission on the given item.
func CheckPerm(doer *principal.Principal, item ACLItem, perm string) (bool, util.Gerror) {
	if doer == nil || doer.Anonymous {
		return false, AnonErr
	}
	adminChecker, err := loadAdminACL()
	if err != nil {
		gerr := util.CastErr(err)
		gerr.SetStatus(http.StatusInternalServerError)
		return false, gerr
	}

	subjects := append([]string{doer.GetName()}, doer.Roles...)
	for _, sub := range subjects {
		cond := []interface{}{sub, aclLookup[item], perm}
		if adminChecker.Enforce(cond...) {
			return true, nil
		}
	}
	return false, nil
}

func loadAdminACL() (*adminACL, error) {
	m := casbin.NewModel(modelDefinition)
	if !adminPolicyExists() {
		if err := initializeAdminPolicy(); err != nil {
			return nil, err
		}
	}
	adp, err := loadAdminPolicyAdapter()
	if err != nil {
		return nil, err
	}
	e := casbin.NewSyncedEnforcer(m, adp, config.Config.PolicyLogging)
	ac := &adminACL{e}
	return ac, nil
}

func getAdminPolicyFile() string {
	return path.Join(config.Config.PolicyRoot, adminPolicyFilename)
}

func adminPolicyExists() bool {
	_, err := os.Stat(getAdminPolicyFile())
	return !os.IsNotExist(err) // bit heavy handed, but eh
}

func loadAdminPolicyAdapter() (persist.Adapter, error) {
	if !adminPolicyExists() {
		err := errors.New("Cannot load admin policy file: file does not exist.")
		return nil, err
	}
	adp := fileadapter.NewAdapter(getAdminPolicyFile())
	return adp, nil
}

func initializeAdminPolicy() error {
	logger.Debugf("initializing admin policy")
	if adminPolicyExists() {
		err := errors.New("admin policy file already exists, cannot initialize!")
		return err
	}
	adminPol := getAdminPolicyFile()
	p, err := os.OpenFile(adminPol, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer p.Close()
	if _, err = p.WriteString(adminPolicySkel); err != nil {
		return err
	}
	return nil
}

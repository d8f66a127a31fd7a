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

// SQL functions and methods for rules. The role list is stored as an encoded
// blob rather than a join table, since it's only ever read back whole.

import (
	"database/sql"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/datastore"
)

func checkForRuleSQL(dbhandle datastore.Dbhandle, id string) (bool, error) {
	var sqlStatement string
	if config.Config.UseMySQL {
		sqlStatement = "SELECT id FROM rules WHERE rule_id = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT id FROM portiere.rules WHERE rule_id = $1"
	}
	stmt, err := dbhandle.Prepare(sqlStatement)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	var rid int32
	err = stmt.QueryRow(id).Scan(&rid)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	return false, nil
}

func (r *Rule) fillRuleFromSQL(row datastore.ResRow) error {
	var roles []byte
	err := row.Scan(&r.ID, &r.Service, &r.Workspace, &r.Layer, &r.Mode, &r.Policy, &roles, &r.Priority)
	if err != nil {
		return err
	}
	if len(roles) != 0 {
		if err = datastore.DecodeBlob(roles, &r.Roles); err != nil {
			return err
		}
	}
	if r.Roles == nil {
		r.Roles = make([]string, 0)
	}
	return nil
}

func getRuleSQL(id string) (*Rule, error) {
	var sqlStatement string
	r := new(Rule)

	if config.Config.UseMySQL {
		sqlStatement = "SELECT rule_id, service, workspace, layer, mode, policy, roles, priority FROM rules WHERE rule_id = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT rule_id, service, workspace, layer, mode, policy, roles, priority FROM portiere.rules WHERE rule_id = $1"
	}

	stmt, err := datastore.Dbh.Prepare(sqlStatement)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	row := stmt.QueryRow(id)
	if err = r.fillRuleFromSQL(row); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rule) saveSQL() error {
	roles, rerr := datastore.EncodeBlob(&r.Roles)
	if rerr != nil {
		return rerr
	}

	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "INSERT INTO rules (rule_id, service, workspace, layer, mode, policy, roles, priority, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW()) ON DUPLICATE KEY UPDATE service = VALUES(service), workspace = VALUES(workspace), layer = VALUES(layer), mode = VALUES(mode), policy = VALUES(policy), roles = VALUES(roles), priority = VALUES(priority), updated_at = NOW()"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "INSERT INTO portiere.rules (rule_id, service, workspace, layer, mode, policy, roles, priority, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) ON CONFLICT (rule_id) DO UPDATE SET service = EXCLUDED.service, workspace = EXCLUDED.workspace, layer = EXCLUDED.layer, mode = EXCLUDED.mode, policy = EXCLUDED.policy, roles = EXCLUDED.roles, priority = EXCLUDED.priority, updated_at = NOW()"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, r.ID, r.Service, r.Workspace, r.Layer, r.Mode, r.Policy, roles, r.Priority)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func (r *Rule) deleteSQL() error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "DELETE FROM rules WHERE rule_id = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "DELETE FROM portiere.rules WHERE rule_id = $1"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, r.ID)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func getListSQL() []string {
	var sqlStatement string
	ruleList := make([]string, 0)

	if config.Config.UseMySQL {
		sqlStatement = "SELECT rule_id FROM rules ORDER BY rule_id"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT rule_id FROM portiere.rules ORDER BY rule_id"
	}

	stmt, err := datastore.Dbh.Prepare(sqlStatement)
	if err != nil {
		return nil
	}
	defer stmt.Close()

	rows, qerr := stmt.Query()
	if qerr != nil {
		return nil
	}
	for rows.Next() {
		var s string
		err = rows.Scan(&s)
		if err != nil {
			return nil
		}
		ruleList = append(ruleList, s)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil
	}
	return ruleList
}

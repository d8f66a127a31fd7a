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

package catalog

// SQL functions and methods for catalog resources.

import (
	"database/sql"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/datastore"
)

/* Workspaces */

func checkForWorkspaceSQL(dbhandle datastore.Dbhandle, name string) (bool, error) {
	_, err := datastore.CheckForOne(dbhandle, "workspaces", name)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	return false, nil
}

func getWorkspaceSQL(name string) (*Workspace, error) {
	var sqlStatement string
	w := new(Workspace)

	if config.Config.UseMySQL {
		sqlStatement = "SELECT name FROM workspaces WHERE name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT name FROM portiere.workspaces WHERE name = $1"
	}

	stmt, err := datastore.Dbh.Prepare(sqlStatement)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	row := stmt.QueryRow(name)
	if err = row.Scan(&w.Name); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workspace) saveSQL() error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "INSERT INTO workspaces (name, created_at, updated_at) VALUES (?, NOW(), NOW()) ON DUPLICATE KEY UPDATE updated_at = NOW()"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "INSERT INTO portiere.workspaces (name, created_at, updated_at) VALUES ($1, NOW(), NOW()) ON CONFLICT (name) DO UPDATE SET updated_at = NOW()"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, w.Name)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func (w *Workspace) deleteSQL() error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "DELETE FROM workspaces WHERE name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "DELETE FROM portiere.workspaces WHERE name = $1"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, w.Name)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func getWorkspaceListSQL() []string {
	var sqlStatement string
	wsList := make([]string, 0)

	if config.Config.UseMySQL {
		sqlStatement = "SELECT name FROM workspaces ORDER BY name"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT name FROM portiere.workspaces ORDER BY name"
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
		wsList = append(wsList, s)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil
	}
	return wsList
}

/* Layers */

func checkForLayerSQL(dbhandle datastore.Dbhandle, workspace string, name string) (bool, error) {
	var sqlStatement string
	if config.Config.UseMySQL {
		sqlStatement = "SELECT id FROM layers WHERE workspace_name = ? AND name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT id FROM portiere.layers WHERE workspace_name = $1 AND name = $2"
	}
	stmt, err := dbhandle.Prepare(sqlStatement)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	var id int32
	err = stmt.QueryRow(workspace, name).Scan(&id)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	return false, nil
}

func (l *Layer) fillLayerFromSQL(row datastore.ResRow) error {
	var title sql.NullString
	err := row.Scan(&l.Name, &l.Workspace, &title)
	if err != nil {
		return err
	}
	if title.Valid {
		l.Title = title.String
	}
	return nil
}

func getLayerSQL(workspace string, name string) (*Layer, error) {
	var sqlStatement string
	l := new(Layer)

	if config.Config.UseMySQL {
		sqlStatement = "SELECT name, workspace_name, title FROM layers WHERE workspace_name = ? AND name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT name, workspace_name, title FROM portiere.layers WHERE workspace_name = $1 AND name = $2"
	}

	stmt, err := datastore.Dbh.Prepare(sqlStatement)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	row := stmt.QueryRow(workspace, name)
	if err = l.fillLayerFromSQL(row); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Layer) saveSQL() error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "INSERT INTO layers (name, workspace_name, title, created_at, updated_at) VALUES (?, ?, ?, NOW(), NOW()) ON DUPLICATE KEY UPDATE title = VALUES(title), updated_at = NOW()"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "INSERT INTO portiere.layers (name, workspace_name, title, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW()) ON CONFLICT (workspace_name, name) DO UPDATE SET title = EXCLUDED.title, updated_at = NOW()"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, l.Name, l.Workspace, l.Title)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func (l *Layer) deleteSQL() error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "DELETE FROM layers WHERE workspace_name = ? AND name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "DELETE FROM portiere.layers WHERE workspace_name = $1 AND name = $2"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, l.Workspace, l.Name)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func (l *Layer) renameSQL(newName string) error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "UPDATE layers SET name = ?, updated_at = NOW() WHERE workspace_name = ? AND name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "UPDATE portiere.layers SET name = $1, updated_at = NOW() WHERE workspace_name = $2 AND name = $3"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, newName, l.Workspace, l.Name)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func getLayerListSQL(workspace string) []string {
	var sqlStatement string
	layerList := make([]string, 0)

	if workspace == "" {
		if config.Config.UseMySQL {
			sqlStatement = "SELECT CONCAT(workspace_name, ':', name) FROM layers ORDER BY 1"
		} else if config.Config.UsePostgreSQL {
			sqlStatement = "SELECT workspace_name || ':' || name FROM portiere.layers ORDER BY 1"
		}
	} else {
		if config.Config.UseMySQL {
			sqlStatement = "SELECT CONCAT(workspace_name, ':', name) FROM layers WHERE workspace_name = ? ORDER BY 1"
		} else if config.Config.UsePostgreSQL {
			sqlStatement = "SELECT workspace_name || ':' || name FROM portiere.layers WHERE workspace_name = $1 ORDER BY 1"
		}
	}

	stmt, err := datastore.Dbh.Prepare(sqlStatement)
	if err != nil {
		return nil
	}
	defer stmt.Close()

	var rows *sql.Rows
	var qerr error
	if workspace == "" {
		rows, qerr = stmt.Query()
	} else {
		rows, qerr = stmt.Query(workspace)
	}
	if qerr != nil {
		return nil
	}
	for rows.Next() {
		var s string
		err = rows.Scan(&s)
		if err != nil {
			return nil
		}
		layerList = append(layerList, s)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil
	}
	return layerList
}

/* Layer groups. The member list is stored as an encoded blob, since members
 * are heterogeneous (layers and other groups) and order matters. */

func checkForLayerGroupSQL(dbhandle datastore.Dbhandle, workspace string, name string) (bool, error) {
	var sqlStatement string
	if config.Config.UseMySQL {
		sqlStatement = "SELECT id FROM layer_groups WHERE workspace_name = ? AND name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT id FROM portiere.layer_groups WHERE workspace_name = $1 AND name = $2"
	}
	stmt, err := dbhandle.Prepare(sqlStatement)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	var id int32
	err = stmt.QueryRow(workspace, name).Scan(&id)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	return false, nil
}

func (lg *LayerGroup) fillLayerGroupFromSQL(row datastore.ResRow) error {
	var members []byte
	err := row.Scan(&lg.Name, &lg.Workspace, &members)
	if err != nil {
		return err
	}
	if len(members) != 0 {
		if err = datastore.DecodeBlob(members, &lg.Members); err != nil {
			return err
		}
	}
	if lg.Members == nil {
		lg.Members = make([]string, 0)
	}
	return nil
}

func getLayerGroupSQL(workspace string, name string) (*LayerGroup, error) {
	var sqlStatement string
	lg := new(LayerGroup)

	if config.Config.UseMySQL {
		sqlStatement = "SELECT name, workspace_name, members FROM layer_groups WHERE workspace_name = ? AND name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT name, workspace_name, members FROM portiere.layer_groups WHERE workspace_name = $1 AND name = $2"
	}

	stmt, err := datastore.Dbh.Prepare(sqlStatement)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	row := stmt.QueryRow(workspace, name)
	if err = lg.fillLayerGroupFromSQL(row); err != nil {
		return nil, err
	}
	return lg, nil
}

func (lg *LayerGroup) saveSQL() error {
	mem, merr := datastore.EncodeBlob(&lg.Members)
	if merr != nil {
		return merr
	}

	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "INSERT INTO layer_groups (name, workspace_name, members, created_at, updated_at) VALUES (?, ?, ?, NOW(), NOW()) ON DUPLICATE KEY UPDATE members = VALUES(members), updated_at = NOW()"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "INSERT INTO portiere.layer_groups (name, workspace_name, members, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW()) ON CONFLICT (workspace_name, name) DO UPDATE SET members = EXCLUDED.members, updated_at = NOW()"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, lg.Name, lg.Workspace, mem)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func (lg *LayerGroup) deleteSQL() error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "DELETE FROM layer_groups WHERE workspace_name = ? AND name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "DELETE FROM portiere.layer_groups WHERE workspace_name = $1 AND name = $2"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, lg.Workspace, lg.Name)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func (lg *LayerGroup) renameSQL(newName string) error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "UPDATE layer_groups SET name = ?, updated_at = NOW() WHERE workspace_name = ? AND name = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "UPDATE portiere.layer_groups SET name = $1, updated_at = NOW() WHERE workspace_name = $2 AND name = $3"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, newName, lg.Workspace, lg.Name)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func getLayerGroupListSQL() []string {
	var sqlStatement string
	groupList := make([]string, 0)

	if config.Config.UseMySQL {
		sqlStatement = "SELECT IF(workspace_name = '', name, CONCAT(workspace_name, ':', name)) FROM layer_groups ORDER BY 1"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT CASE WHEN workspace_name = '' THEN name ELSE workspace_name || ':' || name END FROM portiere.layer_groups ORDER BY 1"
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
		groupList = append(groupList, s)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil
	}
	return groupList
}

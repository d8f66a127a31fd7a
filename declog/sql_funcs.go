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

package declog

// SQL functions for the decision log.

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/datastore"
)

func pgParam(frag string, p *int) string {
	s := fmt.Sprintf("%s$%d", frag, *p)
	*p++
	return s
}

func (dr *DecisionRecord) writeRecordSQL() error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "INSERT INTO decision_records (uuid, time, username, target, service, operation, outcome, reason, source, dump, diff) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "INSERT INTO portiere.decision_records (uuid, time, username, target, service, operation, outcome, reason, source, dump, diff) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, dr.UUID, dr.Time, dr.User, dr.Target, dr.Service, dr.Operation, dr.Outcome, dr.Reason, dr.Source, dr.Dump, dr.Diff)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func (dr *DecisionRecord) clearDumpSQL() error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "UPDATE decision_records SET dump = '' WHERE id = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "UPDATE portiere.decision_records SET dump = '' WHERE id = $1"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, dr.ID)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func (dr *DecisionRecord) fillRecordFromSQL(row datastore.ResRow) error {
	return row.Scan(&dr.ID, &dr.UUID, &dr.Time, &dr.User, &dr.Target, &dr.Service, &dr.Operation, &dr.Outcome, &dr.Reason, &dr.Source, &dr.Dump, &dr.Diff)
}

func getRecordSQL(id int) (*DecisionRecord, error) {
	dr := new(DecisionRecord)

	var sqlStatement string
	if config.Config.UseMySQL {
		sqlStatement = "SELECT id, uuid, time, username, target, service, operation, outcome, reason, source, dump, diff FROM decision_records WHERE id = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT id, uuid, time, username, target, service, operation, outcome, reason, source, dump, diff FROM portiere.decision_records WHERE id = $1"
	}

	stmt, err := datastore.Dbh.Prepare(sqlStatement)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	row := stmt.QueryRow(id)
	if err = dr.fillRecordFromSQL(row); err != nil {
		return nil, err
	}
	return dr, nil
}

func getMostRecentRecordSQL(target string) (*DecisionRecord, error) {
	dr := new(DecisionRecord)

	var sqlStatement string
	if config.Config.UseMySQL {
		sqlStatement = "SELECT id, uuid, time, username, target, service, operation, outcome, reason, source, dump, diff FROM decision_records WHERE target = ? ORDER BY id DESC LIMIT 1"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT id, uuid, time, username, target, service, operation, outcome, reason, source, dump, diff FROM portiere.decision_records WHERE target = $1 ORDER BY id DESC LIMIT 1"
	}

	stmt, err := datastore.Dbh.Prepare(sqlStatement)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	row := stmt.QueryRow(target)
	if err = dr.fillRecordFromSQL(row); err != nil {
		return nil, err
	}
	return dr, nil
}

func checkRecordSQL(id int) (bool, error) {
	var found bool

	var sqlStatement string
	if config.Config.UseMySQL {
		sqlStatement = "SELECT id FROM decision_records WHERE id = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStatement = "SELECT id FROM portiere.decision_records WHERE id = $1"
	}

	stmt, err := datastore.Dbh.Prepare(sqlStatement)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	var c int
	err = stmt.QueryRow(id).Scan(&c)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	if c != 0 {
		found = true
	}
	return found, nil
}

func (dr *DecisionRecord) deleteSQL() error {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "DELETE FROM decision_records WHERE id = ?"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "DELETE FROM portiere.decision_records WHERE id = $1"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return err
	}
	_, err = tx.Exec(sqlStmt, dr.ID)
	if err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func purgeSQL(id int) (int64, error) {
	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "DELETE FROM decision_records WHERE id <= ?"
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "DELETE FROM portiere.decision_records WHERE id <= $1"
	}

	tx, err := datastore.Dbh.Begin()
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(sqlStmt, id)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	rowsAffected, _ := res.RowsAffected()
	tx.Commit()
	return rowsAffected, nil
}

func getRecordListSQL(searchParams map[string]string, from, until time.Time, limits ...int) ([]*DecisionRecord, error) {
	var offset int
	var limit int64 = (1 << 62)
	if len(limits) > 0 {
		offset = limits[0]
		if len(limits) > 1 {
			limit = int64(limits[1])
		}
	}
	var records []*DecisionRecord

	sqlArgs := []interface{}{from, until}

	var sqlStmt string
	if config.Config.UseMySQL {
		sqlStmt = "SELECT id, uuid, time, username, target, service, operation, outcome, reason, source, dump, diff FROM decision_records WHERE time >= ? AND time <= ?"
		if user, ok := searchParams["user"]; ok {
			sqlStmt = sqlStmt + " AND username = ?"
			sqlArgs = append(sqlArgs, user)
		}
		if target, ok := searchParams["target"]; ok {
			sqlStmt = sqlStmt + " AND target = ?"
			sqlArgs = append(sqlArgs, target)
		}
		if outcome, ok := searchParams["outcome"]; ok {
			sqlStmt = sqlStmt + " AND outcome = ?"
			sqlArgs = append(sqlArgs, outcome)
		}
		sqlStmt = sqlStmt + " ORDER BY id DESC LIMIT ?, ?"
		sqlArgs = append(sqlArgs, offset, limit)
	} else if config.Config.UsePostgreSQL {
		sqlStmt = "SELECT id, uuid, time, username, target, service, operation, outcome, reason, source, dump, diff FROM portiere.decision_records WHERE time >= $1 AND time <= $2"
		p := 3
		if user, ok := searchParams["user"]; ok {
			sqlStmt = sqlStmt + pgParam(" AND username = ", &p)
			sqlArgs = append(sqlArgs, user)
		}
		if target, ok := searchParams["target"]; ok {
			sqlStmt = sqlStmt + pgParam(" AND target = ", &p)
			sqlArgs = append(sqlArgs, target)
		}
		if outcome, ok := searchParams["outcome"]; ok {
			sqlStmt = sqlStmt + pgParam(" AND outcome = ", &p)
			sqlArgs = append(sqlArgs, outcome)
		}
		sqlStmt = sqlStmt + " ORDER BY id DESC" + pgParam(" OFFSET ", &p) + pgParam(" LIMIT ", &p)
		sqlArgs = append(sqlArgs, offset, limit)
	}

	stmt, err := datastore.Dbh.Prepare(sqlStmt)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	rows, qerr := stmt.Query(sqlArgs...)
	if qerr != nil {
		if qerr == sql.ErrNoRows {
			return records, nil
		}
		return nil, qerr
	}
	for rows.Next() {
		dr := new(DecisionRecord)
		if err = dr.fillRecordFromSQL(rows); err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, dr)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

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
Package declog keeps an audit trail of access decisions, noting who asked for
what, the verdict, the rule source that produced it, and the time. Each record
carries a diff against the previous decision for the same target, so a change
in outcome stands out without comparing whole dumps by hand. */
package declog

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/pborman/uuid"
	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/datastore"
	"github.com/portiere/portiere/engine"
	"github.com/portiere/portiere/reqctx"
	"github.com/portiere/portiere/serfin"
	"github.com/portiere/portiere/util"
	"github.com/tideland/golib/logger"
	diff "github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

var noRecordFound = errors.New("decision record not found")

// DecisionRecord holds one logged access decision.
type DecisionRecord struct {
	UUID      string    `json:"uuid"`
	Time      time.Time `json:"time"`
	User      string    `json:"user"`
	Target    string    `json:"target"`
	Service   string    `json:"service"`
	Operation string    `json:"operation"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	Dump      string    `json:"dump"`
	Diff      string    `json:"diff"`
	ID        int       `json:"id"`
}

// LogDecision records a decision for the given access request. The rule
// source is the oracle the decision came from, so outages and remote flips
// can be traced afterwards.
func LogDecision(key *reqctx.AccessRequest, d *engine.Decision, source string) error {
	// denials are always recorded; allows only when decision logging is on
	if !config.Config.LogDecisions && d.Permitted() {
		logger.Debugf("Not logging this decision")
		return nil
	}
	logger.Debugf("Logging decision")

	dr := new(DecisionRecord)
	dr.UUID = uuid.NewRandom().String()
	dr.Time = time.Now()
	dr.User = key.User.String()
	dr.Target = targetOf(key)
	dr.Service = key.Service
	dr.Operation = key.Operation
	dr.Outcome = d.Outcome.String()
	dr.Reason = d.Reason
	dr.Source = source

	dump, err := datastore.EncodeToJSON(decisionDump(key, d))
	if err != nil {
		return err
	}

	// diff against the last decision for this target, if there was one, and
	// drop the old record's dump once the diff has been taken
	mostRecent, err := getMostRecentRecord(dr.Target)
	if err != nil && err != noRecordFound {
		return err
	} else if err == nil {
		differ := diff.New()
		df, derr := differ.Compare([]byte(mostRecent.Dump), []byte(dump))
		if derr != nil {
			return derr
		}
		fmtr := formatter.NewDeltaFormatter()
		fmtr.PrintIndent = false
		dstr, ferr := fmtr.Format(df)
		if ferr != nil {
			return ferr
		}
		dr.Diff = dstr
	}
	dr.Dump = dump

	if config.Config.SerfEventAnnounce {
		qdr := make(map[string]interface{}, 5)
		qdr["time"] = dr.Time
		qdr["user"] = dr.User
		qdr["target"] = dr.Target
		qdr["operation"] = dr.Operation
		qdr["outcome"] = dr.Outcome
		go serfin.SendEvent("decision", qdr)
	}

	if mostRecent != nil {
		if err = mostRecent.clearDump(); err != nil {
			return err
		}
	}

	if config.UsingDB() {
		return dr.writeRecordSQL()
	}
	return dr.writeRecordInMem()
}

// targetOf flattens the request's resource identity to one searchable string.
func targetOf(key *reqctx.AccessRequest) string {
	if key.Layer.IsSet() {
		if key.Workspace.IsSet() {
			return fmt.Sprintf("%s:%s", key.Workspace.Value(), key.Layer.Value())
		}
		return key.Layer.Value()
	}
	if key.Workspace.IsSet() {
		return key.Workspace.Value()
	}
	return key.Service
}

func decisionDump(key *reqctx.AccessRequest, d *engine.Decision) map[string]interface{} {
	dump := make(map[string]interface{}, 4)
	dump["request"] = key
	dump["outcome"] = d.Outcome.String()
	dump["reason"] = d.Reason
	if d.Outcome == engine.OutcomeAllowFiltered {
		dump["members"] = d.Members
	}
	return dump
}

func (dr *DecisionRecord) writeRecordInMem() error {
	ds := datastore.New()
	id, err := ds.SetDecision(dr)
	if err != nil {
		return err
	}
	dr.ID = id
	return nil
}

func (dr *DecisionRecord) clearDump() error {
	if config.UsingDB() {
		return dr.clearDumpSQL()
	}
	dr.Dump = ""
	ds := datastore.New()
	_, err := ds.SetDecision(dr, dr.ID)
	return err
}

// Get returns a particular decision record by its id.
func Get(id int) (*DecisionRecord, error) {
	var dr *DecisionRecord

	if config.UsingDB() {
		var err error
		dr, err = getRecordSQL(id)
		if err != nil {
			if err == sql.ErrNoRows {
				err = fmt.Errorf("Couldn't find decision record with id %d", id)
			}
			return nil, err
		}
	} else {
		ds := datastore.New()
		c, err := ds.GetDecision(id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			dr = c.(*DecisionRecord)
			dr.ID = id
		}
	}
	return dr, nil
}

// DoesExist checks if the decision record in question exists. To be compatible
// with the interface for HEAD responses, this method receives a string rather
// than an integer.
func DoesExist(recordID string) (bool, util.Gerror) {
	id, err := strconv.Atoi(recordID)
	if err != nil {
		cerr := util.CastErr(err)
		return false, cerr
	}
	if config.UsingDB() {
		found, err := checkRecordSQL(id)
		if err != nil {
			cerr := util.CastErr(err)
			return false, cerr
		}
		return found, nil
	}

	ds := datastore.New()
	c, err := ds.GetDecision(id)
	if err != nil {
		cerr := util.CastErr(err)
		return false, cerr
	}
	var found bool
	if c != nil {
		found = true
	}
	return found, nil
}

// Delete a decision record.
func (dr *DecisionRecord) Delete() error {
	if config.UsingDB() {
		return dr.deleteSQL()
	}
	ds := datastore.New()
	return ds.DeleteDecision(dr.ID)
}

// PurgeDecisionRecords removes all decision records with ids up to and
// including the given one, and returns how many went.
func PurgeDecisionRecords(id int) (int64, error) {
	if config.UsingDB() {
		return purgeSQL(id)
	}
	ds := datastore.New()
	return ds.PurgeDecisionsBefore(id)
}

// GetDecisionRecords gets a slice of the logged decisions, most recent first.
// May be called with an offset and limit, (in that order) but that is not
// required. The offset can be specified without a limit, but a limit requires
// an offset (which can be 0). The map of search params may be nil.
func GetDecisionRecords(searchParams map[string]string, limits ...int) ([]*DecisionRecord, error) {
	var from, until time.Time
	if f, ok := searchParams["from"]; ok {
		fUnix, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, err
		}
		from = time.Unix(fUnix, 0)
	} else {
		from = time.Unix(0, 0)
	}
	if u, ok := searchParams["until"]; ok {
		uUnix, err := strconv.ParseInt(u, 10, 64)
		if err != nil {
			return nil, err
		}
		until = time.Unix(uUnix, 0)
	} else {
		until = time.Now()
	}
	if config.UsingDB() {
		return getRecordListSQL(searchParams, from, until, limits...)
	}
	var offset, limit int
	if len(limits) > 0 {
		offset = limits[0]
		if len(limits) > 1 {
			limit = limits[1]
		}
	} else {
		offset = 0
	}

	ds := datastore.New()
	arr := ds.GetDecisionList()
	drs := make([]*DecisionRecord, len(arr))
	var keys []int
	for k := range arr {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))
	n := 0
	for _, i := range keys {
		k, ok := arr[i]
		if ok {
			item := k.(*DecisionRecord)
			if item.checkTimeRange(from, until) && (searchParams["user"] == "" || searchParams["user"] == item.User) && (searchParams["target"] == "" || searchParams["target"] == item.Target) && (searchParams["outcome"] == "" || searchParams["outcome"] == item.Outcome) {
				item.ID = i
				drs[n] = item
				n++
			}
		}
	}
	if n == 0 {
		return drs[:0], nil
	}
	if len(limits) > 1 {
		limit = offset + limit
		if limit > n {
			limit = n
		}
	} else {
		limit = n
	}
	if offset > limit {
		offset = limit
	}
	return drs[offset:limit], nil
}

func getMostRecentRecord(target string) (*DecisionRecord, error) {
	if config.UsingDB() {
		dr, err := getMostRecentRecordSQL(target)
		if err != nil && err == sql.ErrNoRows {
			err = noRecordFound
		}
		return dr, err
	}
	ds := datastore.New()
	arr := ds.GetDecisionList()
	var keys []int
	for k := range arr {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))
	var mRecent *DecisionRecord
	for _, i := range keys {
		if k, ok := arr[i]; ok {
			item := k.(*DecisionRecord)
			if item.Target == target {
				item.ID = i
				mRecent = item
				break
			}
		}
	}
	if mRecent == nil {
		return nil, noRecordFound
	}
	return mRecent, nil
}

func (dr *DecisionRecord) checkTimeRange(from, until time.Time) bool {
	return dr.Time.After(from) && dr.Time.Before(until)
}

// AllDecisionRecords returns every logged decision.
func AllDecisionRecords() []*DecisionRecord {
	d, _ := GetDecisionRecords(nil)
	return d
}

/* An access-control gate for a geospatial catalog server, deciding who may
 * perform which operation on which resource. */

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
	"crypto/tls"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	serfclient "github.com/hashicorp/serf/client"
	"github.com/portiere/portiere/catalog"
	"github.com/portiere/portiere/config"
	"github.com/portiere/portiere/containment"
	"github.com/portiere/portiere/datastore"
	"github.com/portiere/portiere/declog"
	"github.com/portiere/portiere/engine"
	"github.com/portiere/portiere/rule"
	"github.com/portiere/portiere/secret"
	"github.com/portiere/portiere/serfin"
	"github.com/portiere/portiere/util"
	"github.com/raintank/met"
	"github.com/raintank/met/helper"
	"github.com/tideland/golib/logger"
)

var apiChan chan *apiTimerInfo

func main() {
	config.ParseConfigOptions()

	/* Here goes nothing, db... */
	if config.UsingDB() {
		var derr error
		if config.Config.UseMySQL {
			datastore.Dbh, derr = datastore.ConnectDB("mysql", config.Config.MySQL)
		} else if config.Config.UsePostgreSQL {
			datastore.Dbh, derr = datastore.ConnectDB("postgres", config.Config.PostgreSQL)
		}
		if derr != nil {
			logger.Fatalf(derr.Error())
			os.Exit(1)
		}
	}

	// Set up secrets, if we're using them.
	if config.UsingExternalSecrets() {
		secerr := secret.ConfigureSecretStore()
		if secerr != nil {
			logger.Fatalf(secerr.Error())
			os.Exit(1)
		}
	}

	gobRegister()
	ds := datastore.New()
	if config.Config.FreezeData && config.Config.DataStoreFile != "" {
		uerr := ds.Load(config.Config.DataStoreFile)
		if uerr != nil {
			logger.Fatalf(uerr.Error())
			os.Exit(1)
		}
	}

	metricsBackend, merr := helper.New(config.Config.UseStatsd, config.Config.StatsdAddr, config.Config.StatsdType, "portiere", config.Config.StatsdInstance)
	if merr != nil {
		logger.Fatalf(merr.Error())
		os.Exit(1)
	}
	util.InitS3(config.Config)
	initGeneralStatsd(metricsBackend)
	engine.InitializeMetrics(metricsBackend)
	apiChan = make(chan *apiTimerInfo, 10)
	go apiTimerMaster(apiChan, metricsBackend)

	// Seed the local rule store before the first request can arrive.
	if config.Config.RuleFile != "" {
		if lerr := rule.LoadFile(config.Config.RuleFile); lerr != nil {
			logger.Fatalf(lerr.Error())
			os.Exit(1)
		}
	}

	// No containment index, no decisions on group listings. Running without
	// one would answer those wrong, so a failed build here is fatal.
	if cerr := containment.Initialize(); cerr != nil {
		logger.Fatalf(cerr.Error())
		os.Exit(1)
	}

	setSaveTicker()
	setDecisionPurgeTicker()

	/* Set up serf */
	if config.Config.UseSerf {
		serferr := serfin.StartSerfin()
		if serferr != nil {
			logger.Fatalf(serferr.Error())
			os.Exit(1)
		}
		errch := make(chan error)
		go startEventMonitor(config.Config.SerfAddr, errch)
		err := <-errch
		if err != nil {
			logger.Criticalf(err.Error())
			os.Exit(1)
		}
	}

	handleSignals()

	muxer := buildRouter()

	listenAddr := config.ListenAddr()
	var err error
	srv := &http.Server{Addr: listenAddr, Handler: &interceptHandler{router: muxer}}
	if config.Config.UseSSL {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		err = srv.ListenAndServeTLS(config.Config.SSLCert, config.Config.SSLKey)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil {
		logger.Fatalf("ListenAndServe: %s", err.Error())
		os.Exit(1)
	}
}

func buildRouter() *mux.Router {
	muxer := mux.NewRouter()

	// the gated surface; the intercept handler has already decided these
	muxer.HandleFunc("/ogc/{service}", ogcHandler)

	// administrative surface
	muxer.HandleFunc("/rules", rulesListHandler)
	muxer.HandleFunc("/rules/{id}", ruleHandler)
	muxer.HandleFunc("/workspaces", workspacesListHandler)
	muxer.HandleFunc("/workspaces/{workspace}", workspaceHandler)
	muxer.HandleFunc("/workspaces/{workspace}/layers", layersListHandler)
	muxer.HandleFunc("/workspaces/{workspace}/layers/{layer}", layerHandler)
	muxer.HandleFunc("/layergroups", layerGroupsListHandler)
	muxer.HandleFunc("/layergroups/{group}", layerGroupHandler)
	muxer.HandleFunc("/layergroups/{group}/members/{member}", layerGroupMemberHandler)
	muxer.HandleFunc("/access", accessConfigHandler)
	muxer.HandleFunc("/declog", decLogListHandler)
	muxer.HandleFunc("/declog/{id}", decLogHandler)
	muxer.HandleFunc("/status", statusHandler)

	muxer.HandleFunc("/", rootHandler)
	return muxer
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	// TODO: make root do something useful
	return
}

func handleSignals() {
	c := make(chan os.Signal, 1)
	// SIGTERM is not exactly portable, but Go has a fake signal for it
	// with Windows so it being there should theoretically not break it
	// running on windows
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// if we receive a SIGINT or SIGTERM, do cleanup here.
	go func() {
		for sig := range c {
			if sig == os.Interrupt || sig == syscall.SIGTERM {
				logger.Infof("cleaning up...")
				if config.Config.FreezeData && config.Config.DataStoreFile != "" {
					ds := datastore.New()
					if err := ds.Save(config.Config.DataStoreFile); err != nil {
						logger.Errorf(err.Error())
					}
				}
				if config.UsingDB() {
					datastore.Dbh.Close()
				}
				if config.Config.UseSerf {
					serfin.CloseAll()
				}
				os.Exit(0)
			} else if sig == syscall.SIGHUP {
				logger.Infof("Reloading configuration...")
				config.ParseConfigOptions()
			}
		}
	}()
}

func gobRegister() {
	w := new(catalog.Workspace)
	gob.Register(w)
	l := new(catalog.Layer)
	gob.Register(l)
	lg := new(catalog.LayerGroup)
	gob.Register(lg)
	ru := new(rule.Rule)
	gob.Register(ru)
	dr := new(declog.DecisionRecord)
	gob.Register(dr)
	m := make(map[string]interface{})
	gob.Register(m)
	var si []interface{}
	gob.Register(si)
	var ss []string
	gob.Register(ss)
	ms := make(map[string]string)
	gob.Register(ms)
	mis := map[int]interface{}{}
	gob.Register(mis)
	var jn json.Number
	gob.Register(jn)
}

func setSaveTicker() {
	if config.Config.FreezeData {
		ds := datastore.New()
		ticker := time.NewTicker(time.Second * time.Duration(config.Config.FreezeInterval))
		go func() {
			for _ = range ticker.C {
				if config.Config.DataStoreFile != "" {
					uerr := ds.Save(config.Config.DataStoreFile)
					if uerr != nil {
						logger.Errorf(uerr.Error())
					}
				}
			}
		}()
	}
}

func setDecisionPurgeTicker() {
	if config.Config.PurgeDecisionsDur == "" {
		return
	}
	purgeDur, perr := time.ParseDuration(config.Config.PurgeDecisionsDur)
	if perr != nil {
		logger.Fatalf("invalid purge-decisions-after duration: %s", perr.Error())
		os.Exit(1)
	}
	ticker := time.NewTicker(time.Minute)
	go func() {
		for _ = range ticker.C {
			cutoff := time.Now().Add(-purgeDur).Unix()
			old, err := declog.GetDecisionRecords(map[string]string{"until": fmt.Sprintf("%d", cutoff)})
			if err != nil {
				logger.Errorf(err.Error())
				continue
			}
			if len(old) == 0 {
				continue
			}
			p, err := declog.PurgeDecisionRecords(old[0].ID)
			if err != nil {
				logger.Errorf(err.Error())
			}
			logger.Debugf("Purged %d decision records automatically", p)
		}
	}()
}

// The serf event monitor keeps the containment index in step with catalog
// changes announced by peer nodes.
func startEventMonitor(serfAddr string, errch chan<- error) {
	// Initial setup of serf. If this bombs go ahead and return so we can
	// die
	sc, err := serfin.NewRPCClient(serfAddr)
	if err != nil {
		errch <- err
		return
	}
	errch <- nil

	ech := make(chan error)
	recreateSerfWait := time.Duration(5)

	for {
		// Make sure the serf client is actually closed before creating
		// a new one. The very first time this loop is kicked off, of
		// course, the client will be fine. It's simpler to have the
		// check up here, though, rather than at the end
		if sc == nil || sc.IsClosed() {
			sc, err = serfin.NewRPCClient(serfAddr)
			if err != nil {
				logger.Errorf("Error recreating serf client, waiting %d seconds before recreating: %s", recreateSerfWait, err.Error())
				time.Sleep(recreateSerfWait * time.Second)
				continue
			} else {
				logger.Errorf("reconnected to serf after being disconnected")
			}
		}
		go runEventMonitor(sc, ech)
		e := <-ech
		if e != nil {
			logger.Errorf("Error from event monitor: %s", e.Error())
		}
	}
}

func runEventMonitor(sc *serfclient.RPCClient, errch chan<- error) {
	ch := make(chan map[string]interface{}, 10)
	sh, err := sc.Stream("*", ch)
	if err != nil {
		errch <- err
		return
	}

	defer sc.Stop(sh)
	checkClientSec := time.Duration(15)

	// watch the events and queries
	for {
		select {
		case e := <-ch:
			eNil := e == nil
			logger.Debugf("Got an event: %v nil? %v", e, eNil)
			if eNil {
				if sc.IsClosed() {
					logger.Debugf("Serf client has been closed, returning from runEventMonitor in hopes of being able to reconnect")
					err := fmt.Errorf("serf client closed")
					errch <- err
					return
				}
				continue
			}
			eName, _ := e["Name"]
			switch eName {
			case "catalog-change":
				// a peer changed the catalog under us; the
				// incremental updates only cover our own edits
				if idx := containment.GetIndex(); idx != nil {
					if rerr := idx.Rebuild(); rerr != nil {
						logger.Errorf(rerr.Error())
					}
				}
			case "rule-change", "access-change":
				logger.Infof("peer announced %s", eName)
			}
		case <-time.After(checkClientSec * time.Second):
			if sc.IsClosed() {
				clerr := fmt.Errorf("serf client found to be closed, recreating")
				errch <- clerr
				return
			}
		}
	}
}

func initGeneralStatsd(metricsBackend met.Backend) {
	if !config.Config.UseStatsd {
		return
	}
	// a count of the rules in the local store. Add other gauges later, but
	// start with this one.
	ruleCountGauge := metricsBackend.NewGauge("rule.count", int64(len(rule.GetList())))

	memStats := &runtime.MemStats{}
	runtime.ReadMemStats(memStats)
	lastSampleTime := time.Now()

	numGoroutine := metricsBackend.NewGauge("runtime.goroutines", int64(runtime.NumGoroutine()))
	allocated := metricsBackend.NewGauge("runtime.memory.allocated", int64(memStats.Alloc))
	mallocs := metricsBackend.NewGauge("runtime.memory.mallocs", int64(memStats.Mallocs))
	frees := metricsBackend.NewGauge("runtime.memory.frees", int64(memStats.Frees))
	totalPause := metricsBackend.NewGauge("runtime.gc.total_pause", int64(memStats.PauseTotalNs))
	heapAlloc := metricsBackend.NewGauge("runtime.memory.heap", int64(memStats.HeapAlloc))
	stackInUse := metricsBackend.NewGauge("runtime.memory.stack", int64(memStats.StackInuse))
	pausePerSec := metricsBackend.NewGauge("runtime.gc.pause_per_sec", 0)
	pausePerTick := metricsBackend.NewGauge("runtime.gc.pause_per_tick", 0)
	numGCTotal := metricsBackend.NewGauge("runtime.gc.num_gc", int64(memStats.NumGC))
	gcPerSec := metricsBackend.NewGauge("runtime.gc.gc_per_sec", 0)
	gcPerTick := metricsBackend.NewGauge("runtime.gc.gc_per_tick", 0)
	gcPause := metricsBackend.NewTimer("runtime.gc.pause", 0)

	lastPause := memStats.PauseTotalNs
	lastGC := memStats.NumGC

	statsdTickInt := 10

	// update the gauges every 10 seconds. Make this configurable later?
	go func() {
		ticker := time.NewTicker(time.Duration(statsdTickInt) * time.Second)
		for _ = range ticker.C {
			runtime.ReadMemStats(memStats)
			now := time.Now()

			ruleCountGauge.Value(int64(len(rule.GetList())))
			numGoroutine.Value(int64(runtime.NumGoroutine()))
			allocated.Value(int64(memStats.Alloc))
			mallocs.Value(int64(memStats.Mallocs))
			frees.Value(int64(memStats.Frees))
			totalPause.Value(int64(memStats.PauseTotalNs))
			heapAlloc.Value(int64(memStats.HeapAlloc))
			stackInUse.Value(int64(memStats.StackInuse))
			numGCTotal.Value(int64(memStats.NumGC))

			p := int(memStats.PauseTotalNs - lastPause)
			pausePerSec.Value(int64(p / statsdTickInt))
			pausePerTick.Value(int64(p))

			countGC := int64(memStats.NumGC - lastGC)
			diffTime := int64(now.Sub(lastSampleTime).Seconds())
			gcPerSec.Value(countGC / diffTime)
			gcPerTick.Value(countGC)

			if countGC > 0 {
				if countGC > 256 {
					logger.Warningf("lost some gc pause times")
					countGC = 256
				}
				var i int64
				for i = 0; i < countGC; i++ {
					idx := int((memStats.NumGC-uint32(i))+255) % 256
					pause := time.Duration(memStats.PauseNs[idx])
					gcPause.Value(pause)
				}
			}

			lastPause = memStats.PauseTotalNs
			lastGC = memStats.NumGC
			lastSampleTime = now
		}
	}()
}

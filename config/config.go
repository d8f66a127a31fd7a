/* Portiere configuration. */

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

// Package config parses command line flags and config files, and defines
// options used elsewhere in portiere.
package config

import (
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jessevdk/go-flags"
	"github.com/tideland/golib/logger"
)

// MySQLdb holds MySQL connection options.
type MySQLdb struct {
	Username    string
	Password    string
	Protocol    string
	Address     string
	Port        string
	Dbname      string
	ExtraParams map[string]string `toml:"extra_params"`
}

// PostgreSQLdb holds PostgreSQL connection options.
type PostgreSQLdb struct {
	Username string
	Password string
	Host     string
	Port     string
	Dbname   string
	SSLMode  string
}

/* Master struct for configuration. */
type Conf struct {
	Ipaddress         string
	Port              int
	Hostname          string
	ConfFile          string `toml:"conf-file"`
	ConfRoot          string `toml:"conf-root"`
	DebugLevel        int    `toml:"debug-level"`
	LogLevel          string `toml:"log-level"`
	LogFile           string `toml:"log-file"`
	SysLog            bool   `toml:"syslog"`
	UseSSL            bool   `toml:"use-ssl"`
	SSLCert           string `toml:"ssl-cert"`
	SSLKey            string `toml:"ssl-key"`
	HTTPSUrls         bool   `toml:"https-urls"`
	DataStoreFile     string `toml:"data-file"`
	FreezeInterval    int    `toml:"freeze-interval"`
	FreezeData        bool   `toml:"freeze-data"`
	UseUnsafeMemStore bool   `toml:"use-unsafe-mem-store"`
	UseMySQL          bool   `toml:"use-mysql"`
	MySQL             MySQLdb
	UsePostgreSQL     bool `toml:"use-postgresql"`
	PostgreSQL        PostgreSQLdb
	DbPoolSize        int `toml:"db-pool-size"`
	MaxConn           int `toml:"max-connections"`

	// Access decision options. These are the initial values of the
	// swappable access snapshot; see access.go.
	ServiceURL         string `toml:"service-url"`
	ServiceTimeout     string `toml:"service-timeout"`
	GrantWriteToAuth   bool   `toml:"grant-write-to-authenticated"`
	RuleFile           string `toml:"rule-file"`
	LogDecisions       bool   `toml:"log-decisions"`
	PurgeDecisionsDur  string `toml:"purge-decisions-after"`
	PolicyRoot         string `toml:"policy-root"`
	PolicyLogging      bool   `toml:"policy-logging"`
	UseExternalSecrets bool   `toml:"use-external-secrets"`
	VaultAddr          string `toml:"vault-addr"`
	VaultTokenPath     string `toml:"vault-token-path"`

	UseStatsd      bool   `toml:"use-statsd"`
	StatsdAddr     string `toml:"statsd-addr"`
	StatsdType     string `toml:"statsd-type"`
	StatsdInstance string `toml:"statsd-instance"`

	UseSerf           bool   `toml:"use-serf"`
	SerfAddr          string `toml:"serf-addr"`
	SerfEventAnnounce bool   `toml:"serf-event-announce"`

	AWSRegion     string `toml:"aws-region"`
	AWSDisableSSL bool   `toml:"aws-disable-ssl"`
	S3Endpoint    string `toml:"s3-endpoint"`

	JSONReqMaxSize int64 `toml:"json-req-max-size"`
}

/* Struct for command line options. */
type Options struct {
	Version           bool   `short:"v" long:"version" description:"Print version info."`
	Verbose           []bool `short:"V" long:"verbose" description:"Show verbose debug information. Repeat for more verbosity."`
	ConfFile          string `short:"c" long:"config" description:"Specify a config file to use."`
	Ipaddress         string `short:"I" long:"ipaddress" description:"Listen on a specific IP address."`
	Hostname          string `short:"H" long:"hostname" description:"Hostname to use for this server. Defaults to hostname reported by the kernel."`
	Port              int    `short:"P" long:"port" description:"Port to listen on. (default: 4707)"`
	LogFile           string `short:"L" long:"log-file" description:"Log to file X"`
	SysLog            bool   `short:"s" long:"syslog" description:"Log to syslog rather than a log file."`
	LogLevel          string `short:"g" long:"log-level" description:"Specify logging verbosity. Performs the same function as -V, but this option is preferred. Acceptable values are 'debug', 'info', 'warning', 'error', 'critical', and 'fatal'."`
	ConfRoot          string `long:"conf-root" description:"Root directory for configs and certificates. Default: the directory the config file is in, or the current directory if no config file is set."`
	UseSSL            bool   `long:"use-ssl" description:"Use SSL for connections. Requires --ssl-cert and --ssl-key."`
	SSLCert           string `long:"ssl-cert" description:"SSL certificate file. If a relative path, will be set relative to --conf-root."`
	SSLKey            string `long:"ssl-key" description:"SSL key file. If a relative path, will be set relative to --conf-root."`
	HTTPSUrls         bool   `long:"https-urls" description:"Use 'https://' in URLs to server resources if portiere is not using SSL for its connections. Useful when portiere is sitting behind a reverse proxy that uses SSL, but is communicating with the proxy over HTTP."`
	DataStoreFile     string `short:"D" long:"data-file" description:"File to save data store data to."`
	FreezeInterval    int    `short:"F" long:"freeze-interval" description:"Interval in seconds to freeze in-memory data structures to disk if there have been any changes (requires -D/--data-file option to be set). (Default 10 seconds.)"`
	UseMySQL          bool   `long:"use-mysql" description:"Use a MySQL database for data storage. Configure database options in the config file."`
	UsePostgreSQL     bool   `long:"use-postgresql" description:"Use a PostgreSQL database for data storage. Configure database options in the config file."`
	ServiceURL        string `long:"service-url" description:"URL of the authorization service to query for matching rules. The special value 'internal' (the default) uses the local rule store."`
	ServiceTimeout    string `long:"service-timeout" description:"Timeout for queries against a remote authorization service, formatted like 5s, 750ms, etc. Default: 2s."`
	GrantWriteToAuth  bool   `long:"grant-write-to-authenticated" description:"Grant write access to any authenticated principal with at least one role, unless an explicit deny rule says otherwise."`
	RuleFile          string `long:"rule-file" description:"File of access rules to load into the local rule store at startup. May be a local path or an s3:// URI."`
	LogDecisions      bool   `long:"log-decisions" description:"Log all access decisions, not just denials, to the decision log."`
	PurgeDecisionsDur string `long:"purge-decisions-after" description:"Purge decision log entries older than the given duration (e.g. 720h)."`
	PolicyRoot        string `long:"policy-root" description:"Directory holding the administrative policy file. Default: conf-root."`
	UseStatsd         bool   `long:"use-statsd" description:"Whether or not to collect statistics about portiere and send them to statsd."`
	StatsdAddr        string `long:"statsd-addr" description:"Statsd address and port. Defaults to 'localhost:8125'."`
	StatsdType        string `long:"statsd-type" description:"statsd format, can be either 'standard' or 'datadog'. Defaults to 'standard'."`
	StatsdInstance    string `long:"statsd-instance" description:"Statsd instance name to use for this server. Defaults to the server's hostname, with '.' replaced by '_'."`
	UseSerf           bool   `long:"use-serf" description:"If set, have portiere use serf to announce rule and catalog changes to other nodes."`
	SerfAddr          string `long:"serf-addr" description:"IP address and port to use for communicating with serf. Defaults to 127.0.0.1:7373."`
	SerfEventAnnounce bool   `long:"serf-event-announce" description:"Announce rule changes, catalog changes, and access config swaps over serf."`
	UseUnsafeMemStore bool   `long:"use-unsafe-mem-store" description:"Use the faster, but less safe, old method of storing data in the in-memory data store with pointers, rather than encoding the data with gob and giving each object a copy of the data."`
}

// The portiere version.
const Version = "0.1.0"

// The remote oracle protocol versions this server can speak.
const MinOracleVersion = "1.0.0"
const MaxOracleVersion = "1.1.0"

/* The general plan is to read the command-line options, then parse the config
 * file, fill in the config struct with those values, then apply the
 * command-line options to the config struct. We read the cli options first so
 * we know to look for a different config file if needed, but otherwise the
 * command line options override what's in the config file. */

func initConfig() *Conf { return &Conf{} }

// Config is the configuration struct with the options specified on the
// command line or in the config file.
var Config = initConfig()

// ParseConfigOptions reads and applies arguments from the command line and the
// configuration file, if one is used.
func ParseConfigOptions() error {
	var opts = &Options{}
	parser := flags.NewParser(opts, flags.Default)
	_, err := parser.Parse()

	if err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		} else {
			log.Println(err)
			os.Exit(1)
		}
	}

	if opts.Version {
		fmt.Printf("portiere version %s\n", Version)
		os.Exit(0)
	}

	/* Load the config file. Command-line options have precedence over
	 * config file options. */
	if opts.ConfFile != "" {
		if _, err := toml.DecodeFile(opts.ConfFile, Config); err != nil {
			log.Println(err)
			os.Exit(1)
		}
		Config.ConfFile = opts.ConfFile
	}

	if opts.Hostname != "" {
		Config.Hostname = opts.Hostname
	} else if Config.Hostname == "" {
		Config.Hostname, err = os.Hostname()
		if err != nil {
			log.Println(err)
			Config.Hostname = "localhost"
		}
	}

	if opts.DataStoreFile != "" {
		Config.DataStoreFile = opts.DataStoreFile
	}
	if Config.DataStoreFile != "" {
		Config.FreezeData = true
	}
	if opts.FreezeInterval != 0 {
		Config.FreezeInterval = opts.FreezeInterval
	}
	if Config.FreezeInterval == 0 {
		Config.FreezeInterval = 10
	}

	if opts.LogFile != "" {
		Config.LogFile = opts.LogFile
	}
	if opts.SysLog {
		Config.SysLog = opts.SysLog
	}
	if Config.LogFile != "" {
		lfp, lerr := os.Create(Config.LogFile)
		if lerr != nil {
			log.Println(lerr)
			os.Exit(1)
		}
		lgr := logger.NewTimeformatLogger(lfp, "2006-01-02 15:04:05")
		logger.SetLogger(lgr)
	} else if Config.SysLog {
		lgr, lerr := logger.NewSysLogger("portiere")
		if lerr != nil {
			log.Println(lerr.Error())
			os.Exit(1)
		}
		logger.SetLogger(lgr)
	} else {
		logger.SetLogger(logger.NewGoLogger())
	}

	if dlev := len(opts.Verbose); dlev != 0 {
		Config.DebugLevel = dlev
	}
	if opts.LogLevel != "" {
		Config.LogLevel = opts.LogLevel
	}
	if Config.LogLevel != "" {
		ll, lerr := logLevelFromString(Config.LogLevel)
		if lerr != nil {
			log.Println(lerr)
			os.Exit(1)
		}
		Config.DebugLevel = ll
	}
	if Config.DebugLevel > 4 {
		Config.DebugLevel = 4
	}

	/* Database options */
	if opts.UseMySQL {
		Config.UseMySQL = opts.UseMySQL
	}
	if opts.UsePostgreSQL {
		Config.UsePostgreSQL = opts.UsePostgreSQL
	}
	if Config.UseMySQL && Config.UsePostgreSQL {
		err := fmt.Errorf("The MySQL and Postgres options cannot be used together.")
		log.Println(err)
		os.Exit(1)
	}
	/* Root directory for certs and the like */
	if opts.ConfRoot != "" {
		Config.ConfRoot = opts.ConfRoot
	}
	if Config.ConfRoot == "" {
		if Config.ConfFile != "" {
			Config.ConfRoot = path.Dir(Config.ConfFile)
		} else {
			Config.ConfRoot = "."
		}
	}
	if opts.PolicyRoot != "" {
		Config.PolicyRoot = opts.PolicyRoot
	}
	if Config.PolicyRoot == "" {
		Config.PolicyRoot = Config.ConfRoot
	}

	Config.Ipaddress = opts.Ipaddress
	if opts.Port != 0 {
		Config.Port = opts.Port
	}
	if Config.Port == 0 {
		Config.Port = 4707
	}

	if opts.UseSSL {
		Config.UseSSL = opts.UseSSL
	}
	if opts.SSLCert != "" {
		Config.SSLCert = opts.SSLCert
	}
	if opts.SSLKey != "" {
		Config.SSLKey = opts.SSLKey
	}
	if opts.HTTPSUrls {
		Config.HTTPSUrls = opts.HTTPSUrls
	}
	if Config.UseSSL {
		if Config.SSLCert == "" || Config.SSLKey == "" {
			log.Println("SSL mode requires specifying both a certificate and a key file.")
			os.Exit(1)
		}
		/* If the SSL cert and key are not absolute files, join them
		 * with the conf root */
		if !path.IsAbs(Config.SSLCert) {
			Config.SSLCert = path.Join(Config.ConfRoot, Config.SSLCert)
		}
		if !path.IsAbs(Config.SSLKey) {
			Config.SSLKey = path.Join(Config.ConfRoot, Config.SSLKey)
		}
	}

	/* Access decision options */
	if opts.ServiceURL != "" {
		Config.ServiceURL = opts.ServiceURL
	}
	if Config.ServiceURL == "" {
		Config.ServiceURL = LocalServiceURL
	}
	if opts.ServiceTimeout != "" {
		Config.ServiceTimeout = opts.ServiceTimeout
	}
	var svcTimeout time.Duration
	if Config.ServiceTimeout != "" {
		d, derr := time.ParseDuration(Config.ServiceTimeout)
		if derr != nil {
			log.Println("Error parsing service-timeout:", derr)
			os.Exit(1)
		}
		svcTimeout = d
	} else {
		svcTimeout = 2 * time.Second
	}
	if opts.GrantWriteToAuth {
		Config.GrantWriteToAuth = opts.GrantWriteToAuth
	}
	if opts.RuleFile != "" {
		Config.RuleFile = opts.RuleFile
	}
	if opts.LogDecisions {
		Config.LogDecisions = opts.LogDecisions
	}
	if opts.PurgeDecisionsDur != "" {
		Config.PurgeDecisionsDur = opts.PurgeDecisionsDur
	}

	// Seed the swappable access snapshot from the parsed config. Later
	// swaps come in through the admin surface.
	SwapAccess(&Access{
		ServiceURL:                Config.ServiceURL,
		GrantWriteToAuthenticated: Config.GrantWriteToAuth,
		ServiceTimeout:            svcTimeout,
	})

	/* Statsd */
	if opts.UseStatsd {
		Config.UseStatsd = opts.UseStatsd
	}
	if opts.StatsdAddr != "" {
		Config.StatsdAddr = opts.StatsdAddr
	}
	if Config.StatsdAddr == "" {
		Config.StatsdAddr = "localhost:8125"
	}
	if opts.StatsdType != "" {
		Config.StatsdType = opts.StatsdType
	}
	if Config.StatsdType == "" {
		Config.StatsdType = "standard"
	}
	if opts.StatsdInstance != "" {
		Config.StatsdInstance = opts.StatsdInstance
	}
	if Config.StatsdInstance == "" {
		Config.StatsdInstance = strings.Replace(Config.Hostname, ".", "_", -1)
	}

	/* Serf */
	if opts.UseSerf {
		Config.UseSerf = opts.UseSerf
	}
	if opts.SerfAddr != "" {
		Config.SerfAddr = opts.SerfAddr
	}
	if Config.SerfAddr == "" {
		Config.SerfAddr = "127.0.0.1:7373"
	}
	if opts.SerfEventAnnounce {
		Config.SerfEventAnnounce = opts.SerfEventAnnounce
	}
	if Config.SerfEventAnnounce && !Config.UseSerf {
		log.Println("--serf-event-announce requires --use-serf")
		os.Exit(1)
	}

	if opts.UseUnsafeMemStore {
		Config.UseUnsafeMemStore = opts.UseUnsafeMemStore
	}

	if Config.JSONReqMaxSize == 0 {
		Config.JSONReqMaxSize = 1000000
	}

	lvl := map[int]logger.LogLevel{
		0: logger.LevelCritical,
		1: logger.LevelError,
		2: logger.LevelWarning,
		3: logger.LevelInfo,
		4: logger.LevelDebug,
	}
	logger.SetLevel(lvl[Config.DebugLevel])

	return nil
}

func logLevelFromString(level string) (int, error) {
	levels := map[string]int{
		"fatal":    0,
		"critical": 0,
		"error":    1,
		"warning":  2,
		"info":     3,
		"debug":    4,
	}
	l, ok := levels[level]
	if !ok {
		return 0, fmt.Errorf("invalid log level %s", level)
	}
	return l, nil
}

// UsingDB returns true if portiere is configured to use MySQL or PostgreSQL
// for storage.
func UsingDB() bool {
	return Config.UseMySQL || Config.UsePostgreSQL
}

// UsingExternalSecrets returns true if portiere is configured to fetch
// secrets, like the remote oracle token, from an external secret store.
func UsingExternalSecrets() bool {
	return Config.UseExternalSecrets
}

// ListenAddr returns the address and port portiere is configured to listen on.
func ListenAddr() string {
	listenAddr := fmt.Sprintf("%s:%d", Config.Ipaddress, Config.Port)
	return listenAddr
}

// ServerHostname returns the hostname and port portiere is configured to use.
func ServerHostname() string {
	var portStr string
	if !(Config.Port == 80 || Config.Port == 443) {
		portStr = fmt.Sprintf(":%d", Config.Port)
	}
	hostname := fmt.Sprintf("%s%s", Config.Hostname, portStr)
	return hostname
}

// ServerBaseURL returns the base URL of this server.
func ServerBaseURL() string {
	var urlScheme string
	if Config.UseSSL || Config.HTTPSUrls {
		urlScheme = "https"
	} else {
		urlScheme = "http"
	}
	url := fmt.Sprintf("%s://%s", urlScheme, ServerHostname())
	return url
}

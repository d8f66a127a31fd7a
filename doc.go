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
Portiere is an access control gatekeeper for geospatial catalog servers. It
sits in front of the OGC request surface and decides, per request, whether
the caller may touch the workspace, layer, or layer group the request names.
Decisions come out as allow, deny with a reason, or allow-filtered with the
list of visible members for composite targets.

It runs entirely in memory with the option to save and load the in-memory
data to and from disk, or against MySQL or PostgreSQL for durable storage.

Every request to a gated path is normalized into an access request key
(caller, roles, service, operation, target) before any rule is consulted.
Matching rules are ordered most specific first, with a higher priority
number breaking ties between equally specific rules; the first applicable
rule decides, and a request that matches no rule at all is denied. Rule
evaluation may be served locally from the loaded rule table, or delegated
to a remote authorization service; which one is in use is part of the
access snapshot and can be swapped at runtime through the /access endpoint
without a restart.

Layer groups may contain layers and other groups. Portiere maintains a
containment index, a reverse transitive closure over group membership, so
that a listing of a group can be filtered member by member without walking
the catalog per request. The index is incrementally patched as the catalog
changes; while it cannot be built, decisions that would need it are denied
rather than guessed.

To install:

1. Install go. (http://golang.org/doc/install.html)

2. Make sure your $GOPATH and PATH are set up correctly per the Go
installation instructions.

3. Download portiere

   go get github.com/portiere/portiere

4. Run tests, if desired. Most portiere subdirectories have go tests.

5. Install the portiere binary.

   go install github.com/portiere/portiere

6. Run portiere.

   portiere <options>

You can get a list of command-line options with the '-h' flag.

Portiere can also take a config file, run like portiere -c
/path/to/conf-file. Options in the configuration file share the same name
as the long command line arguments (so, for example, --ipaddress=127.0.0.1
on the command line would be ipaddress = "127.0.0.1" in the config file).

Currently available command line and config file options:

   -v, --version          Print version info.
   -V, --verbose          Show verbose debug information. Repeat for more
                          verbosity.
   -c, --config=          Specify a config file to use.
   -I, --ipaddress=       Listen on a specific IP address.
   -H, --hostname=        Hostname to use for this server. Defaults to
                          hostname reported by the kernel.
   -P, --port=            Port to listen on. If port is set to 443, SSL
                          will be activated. (default: 4545)
   -D, --data-file=       File to save data store data to.
   -F, --freeze-interval= Interval in seconds to freeze in-memory data
                          structures to disk (requires -D/--data-file to be
                          set). (Default 10 seconds.)
   -L, --log-file=        Log to file X
   -s, --syslog           Log to syslog rather than a log file.
       --rule-file=       TOML file of access rules to load on startup.
       --policy-root=     Root directory for the admin policy file.
       --log-decisions    Record allowed decisions in the decision log as
                          well as denials. Denials are always recorded.
       --purge-decisions-after= Purge decision records older than this
                          duration (e.g. 720h). Default: never purge.
       --use-ssl          Use SSL for connections. Requires --ssl-cert and
                          --ssl-key.
       --ssl-cert=        SSL certificate file.
       --ssl-key=         SSL key file.
       --use-serf         Announce rule, catalog, and access changes over
                          serf, and rebuild the containment index when
                          peers announce catalog changes.
       --serf-addr=       Address of the serf agent to connect to.
                          (Default: 127.0.0.1:7373)
       --serf-event-announce Announce decision log events over serf.
       --use-mysql        Use a MySQL database for data storage. Configure
                          database options in the config file.
       --use-postgresql   Use a PostgreSQL database for data storage.
                          Configure database options in the config file.
       --statsd-addr=     Statsd instance address for metrics.
       --vault-addr=      Vault server address for fetching TLS material.

   Options specified on the command line override options in the config
   file.

Identity is asserted by a fronting authentication proxy through the
X-Portiere-User and X-Portiere-Roles headers. A request with no user header
is treated as anonymous, never as an error; anonymous callers can still be
granted access by rules that name no roles.

The admin surface (/rules, /workspaces, /layergroups, /access, /declog) is
guarded separately by a casbin policy file kept under --policy-root. On
first use a skeleton policy is written there granting full control to the
"admin" user and to anyone carrying ROLE_ADMINISTRATOR.

SQL mode:

Portiere can use MySQL or PostgreSQL to store its data, instead of keeping
all its data in memory (and optionally freezing its data to disk for
persistence). Set `use-mysql = true` or `use-postgresql = true` in the
configuration file, and define the connection options there:

	[mysql]
		username = "foo"
		password = "s3kr1t"
		protocol = "tcp"
		address = "localhost"
		port = "3306"
		dbname = "portiere"
		[mysql.extra_params]
			tls = "false"

It is an error to specify both the `-D`/`--data-file` flag and a SQL mode
at the same time, and an error to enable both SQL modes at once.

Note regarding portiere persistence and freezing data:

As mentioned above, portiere can freeze its in-memory data store to disk if
specified. It will save before quitting if the program receives a SIGTERM
or SIGINT signal, along with saving every "freeze-interval" seconds
automatically. Portiere will not replace the old save file until the new
one is all finished writing, but it's still not anywhere near a real
database with transaction protection, so the appropriate caution is
warranted.

Portiere is licensed under the Apache 2.0 License. See the LICENSE file for
details.
*/
package main

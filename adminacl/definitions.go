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

package adminacl

// The model and default policy for the administrative surface. This governs
// who may edit rules and the catalog, not who may reach a protected layer;
// that's the decision engine's job.

const modelDefinition = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

const adminPolicySkel = `p, $$policy_admins, rules, create
p, $$policy_admins, rules, read
p, $$policy_admins, rules, update
p, $$policy_admins, rules, delete

p, $$policy_admins, catalog, create
p, $$policy_admins, catalog, read
p, $$policy_admins, catalog, update
p, $$policy_admins, catalog, delete

p, $$policy_admins, access_config, read
p, $$policy_admins, access_config, update

p, $$policy_admins, decision_log, read
p, $$policy_admins, decision_log, delete

p, $$policy_auditors, rules, read
p, $$policy_auditors, catalog, read
p, $$policy_auditors, decision_log, read

g, admin, $$policy_admins
g, ROLE_ADMINISTRATOR, $$policy_admins
`

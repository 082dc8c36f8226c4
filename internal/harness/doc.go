// Package harness runs unit-of-work scenarios and snapshots their plans.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: ../schema/blog.cue
//	token: blog
//	entities:
//	  ada:   { role: user, fields: { name: Ada }, relations: { posts: [hello] } }
//	  hello: { role: post, fields: { title: Hello } }
//	steps:
//	  - store: ada
//	  - execute: true
//	  - set: { entity: ada, fields: { name: Ada L } }
//	  - store: ada
//	  - delete: hello
//	  - execute: true
//	assertions:
//	  - type: write_order
//	    writes: [insert users, insert posts, update users, delete posts]
//	  - type: final_state
//	    table: users
//	    where: { id: 1 }
//	    expect: { name: Ada L }
//
// The schema path is relative to the scenario file. Relation values name
// other entities: a single name for belongs_to, a list for has_many, null
// to clear.
//
// # Steps
//
//   - store: queue the entity (and cascaded relations)
//   - delete: queue the entity's removal
//   - set: change fields or relations without queueing
//   - execute: run every command queued since the last execute in one
//     transaction
//
// # Assertion Types
//
//   - write_order: the journaled writes, as "op table", in order
//   - write_count: the number of journaled writes of op on table
//   - final_state: a row matching where carries the expected values
//   - row_count: the number of rows in table
//
// # Deterministic Testing
//
// Run tokens are "<token>-1", "<token>-2", ... per execute step and every
// scenario gets a fresh in-memory SQLite store unless another target is
// supplied, so snapshots are stable for golden comparison.
package harness

// Package harness runs plan scenarios against the compiler and converter.
//
// A scenario compiles a plan, feeds canned result sets to the statements it
// produces, and asserts on the statements and the resulting layers. No
// database or model is involved: results come from the scenario file, so a
// scenario pins the SQL a plan compiles to and the layers its rows become.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: fire_stations_before_1980
//	description: "Old fire stations become one point layer"
//	catalog: tables.yaml          # optional, relative to the scenario file
//	strict: true                  # optional, default true
//	plan: |
//	  {"action": "select", "groups": [...]}
//	results:                      # one entry per statement, in order
//	  - columns: [station_no, geometry]
//	    rows:
//	      - ["12", '{"type":"Point","coordinates":[-79.4,43.7]}']
//	  - error: 'relation "parks" does not exist'
//	assertions:
//	  - type: statement_count
//	    count: 1
//	  - type: sql_contains
//	    statement: 0
//	    text: "WHERE year_built < 1980"
//	  - type: args
//	    statement: 0
//	    args: [1980]
//	  - type: layer
//	    layer: 0
//	    name: geometry
//	    columns: [station_no]
//	    features: 1
//	  - type: feature_properties
//	    layer: 0
//	    feature: 0
//	    properties: {station_no: "12"}
//
// # Assertion Types
//
//   - statement_count: the plan compiles to exactly count statements
//   - sql_contains: a statement's display SQL contains text
//   - query_contains: a statement's parameterized query contains text
//   - args: a statement's arguments equal args
//   - layer_count: conversion yields exactly count layers
//   - layer: a layer's name, source, columns, feature and row counts
//   - feature_properties: a feature's properties include properties
//   - compile_error: compilation fails on field with a message containing text
//   - execution_error: execution fails with a message containing text
//
// Statements without a results entry receive an empty result set.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/fire_stations.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness

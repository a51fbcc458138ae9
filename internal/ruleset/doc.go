// Package ruleset provides the YAML schema, parsing and validation of rule
// files, and builds their converters into a Catalog of descriptors.
//
// # Key capabilities
//
//   - Declare converters between maps, XML documents, tabular rows and
//     fixed-width lines
//   - Copy, rename, default, factory, transform, expression and nested rules
//   - Per-rule options (required, filter_empty, sort, max_len, pluralize, ...)
//   - Converter inheritance via extends
//   - Nested references by name, in any order, including self-reference
//
// # Schema Overview
//
//	version: "1"
//	layouts:
//	  - name: legacy
//	    fields:
//	      - {name: id, start: 0, end: 6, align: right, pad: "0"}
//	      - {name: name, start: 6, end: 26}
//	converters:
//	  - name: Order
//	    source: map                  # map | tabular | xml:<root> | fixedwidth:<layout>
//	    target: map
//	    options:
//	      include_nils: false
//	      trim_strings: true
//	    rules:
//	      - id                                    # copy
//	      - [customer, buyer.name]                # rename
//	      - {target: status, default: pending}    # NO_SOURCE default
//	      - {target: ref, factory: uuid}
//	      - {target: placed, source: date, transform: datetime}
//	      - {target: total, expr: "value * 1.2", source: net}
//	      - {target: lines, source: items, nested: Line, collection: true}
//	      - {target: tags, filter_empty: true, sort: true, max_len: 3}
//	  - name: Line
//	    rules: [sku, qty]
//
// Problems are collected as diagnostics (see internal/diagnostic) instead of
// stopping at the first one.
package ruleset

// Package metadata reads and writes the per-capture sidecar that accompanies a
// .tbc sample file.
//
// Two encodings are supported: the ld-decode style JSON document
// (<name>.tbc.json) and an SQLite database (<name>.tbc.db) with capture,
// field_record, vbi and drop_outs tables. Both decode into the same Metadata
// value, which also owns the sequential frame to field pairing used by the
// source layer, including the reversed field order toggle.
package metadata

// Package models holds the data types shared between the retiler, the run
// history store and the command line.
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RecordSuffix is appended to the input stem to name the retile record.
const RecordSuffix = "_retile_record.js"

// RetileRecord is the audit artifact of one validated retiling run.
// Fields are declared in key order so the encoded object has sorted keys.
type RetileRecord struct {
	// File is the input path, slash separated.
	File string `json:"file"`
	// RedistributedTo lists the cell directory of every tile found during
	// validation.
	RedistributedTo []string `json:"redistributed_to"`
	// Validated is true when the tiles hold exactly the input's points.
	Validated bool `json:"validated"`
}

// NewRetileRecord returns an unvalidated record for input.
func NewRetileRecord(input string) RetileRecord {
	return RetileRecord{
		File:            filepath.ToSlash(input),
		RedistributedTo: []string{},
	}
}

// MarshalIndent encodes the record pretty-printed with four-space indent.
func (r RetileRecord) MarshalIndent() ([]byte, error) {
	if r.RedistributedTo == nil {
		r.RedistributedTo = []string{}
	}
	return json.MarshalIndent(r, "", "    ")
}

// RecordPath returns "<dir>/<stem>_retile_record.js".
func RecordPath(dir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+RecordSuffix)
}

// WriteRecord writes r next to the other outputs in dir.
func WriteRecord(dir string, r RetileRecord) (string, error) {
	data, err := r.MarshalIndent()
	if err != nil {
		return "", fmt.Errorf("encode retile record: %w", err)
	}
	path := RecordPath(dir, r.File)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write retile record: %w", err)
	}
	return path, nil
}

// ReadRecord loads a record written by WriteRecord.
func ReadRecord(path string) (RetileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RetileRecord{}, fmt.Errorf("read retile record: %w", err)
	}
	var r RetileRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return RetileRecord{}, fmt.Errorf("decode retile record %s: %w", path, err)
	}
	return r, nil
}

// Package provider recognises upstream statement formats and extracts them
// into the canonical statement document.
package provider

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"stmtguard/internal/dedupe/models"
	dErrors "stmtguard/pkg/domain-errors"
)

// Format is a concrete upstream document layout. Several formats can belong
// to one provider.
type Format int

const (
	FormatUnknown Format = iota
	FormatPerfios
	FormatPerfiosNinjacart
	FormatFinbox
	FormatOneMoney
	FormatScoreme
)

func (f Format) String() string {
	switch f {
	case FormatPerfios:
		return "PERFIOS"
	case FormatPerfiosNinjacart:
		return "PERFIOS_NINJACART"
	case FormatFinbox:
		return "FINBOX"
	case FormatOneMoney:
		return "ONEMONEY"
	case FormatScoreme:
		return "SCOREME"
	default:
		return "UNKNOWN"
	}
}

// Provider is the persisted provider ordinal of the format.
func (f Format) Provider() models.Provider {
	switch f {
	case FormatFinbox:
		return models.ProviderFinbox
	case FormatOneMoney:
		return models.ProviderOneMoney
	case FormatScoreme:
		return models.ProviderScoreme
	default:
		return models.ProviderPerfios
	}
}

type fileType int

const (
	fileUnknown fileType = iota
	fileJSON
	fileExcel
)

const (
	contentTypeJSON = "application/json"
	contentTypeXLS  = "application/vnd.ms-excel"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Detect identifies the format of an upload. The content type wins over the
// file extension; a body that looks like a JSON object is sniffed as a last
// resort. Excel workbooks are Scoreme reports.
func Detect(filename, contentType string, raw []byte) (Format, error) {
	switch classify(filename, contentType, raw) {
	case fileExcel:
		return FormatScoreme, nil
	case fileJSON:
		return detectJSON(raw)
	default:
		return FormatUnknown, dErrors.New(dErrors.CodeUnsupported, "unsupported file type: "+filepath.Base(filename))
	}
}

func classify(filename, contentType string, raw []byte) fileType {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case contentTypeJSON:
		return fileJSON
	case contentTypeXLS, contentTypeXLSX:
		return fileExcel
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return fileJSON
	case ".xls", ".xlsx":
		return fileExcel
	}
	if t := bytes.TrimSpace(raw); len(t) > 0 && t[0] == '{' {
		return fileJSON
	}
	return fileUnknown
}

// detectJSON looks only at top-level keys, so the body is decoded shallowly.
func detectJSON(raw []byte) (Format, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return FormatUnknown, dErrors.Wrap(err, dErrors.CodeInvalidInput, "statement is not a JSON object")
	}
	if _, ok := root["accountXns"]; ok {
		return FormatPerfios, nil
	}
	if report, ok := root["report"]; ok {
		var inner map[string]json.RawMessage
		if json.Unmarshal(report, &inner) == nil {
			if _, ok := inner["accountXns"]; ok {
				return FormatPerfiosNinjacart, nil
			}
		}
	}
	if _, ok := root["accounts"]; ok {
		return FormatFinbox, nil
	}
	if _, ok := root["data"]; ok {
		return FormatOneMoney, nil
	}
	return FormatUnknown, dErrors.New(dErrors.CodeUnsupported, "unrecognised statement provider")
}

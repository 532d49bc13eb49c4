package importer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-kasir/internal/model"
)

// Record is one raw product row as read from a file or request body.
type Record map[string]any

// Defaults is the fallback for numeric fields that are absent or not numeric.
var Defaults = map[string]float64{
	"price":    0,
	"cost":     0,
	"stock":    0,
	"minStock": 5,
}

// aliases maps accepted column names to canonical fields.
var aliases = map[string]string{
	"id":          "id",
	"codigo":      "id",
	"name":        "name",
	"nombre":      "name",
	"category":    "category",
	"categoria":   "category",
	"price":       "price",
	"precio":      "price",
	"cost":        "cost",
	"costo":       "cost",
	"stock":       "stock",
	"minstock":    "minStock",
	"min_stock":   "minStock",
	"stockminimo": "minStock",
}

// Report summarises one import batch.
type Report struct {
	Accepted   int    `json:"accepted"`
	Dropped    int    `json:"dropped"`
	Reassigned int    `json:"reassigned"`
	BackupID   string `json:"backupId,omitempty"`
}

// Normalize converts raw records into products. Records without a name are dropped,
// numeric fields fall back to Defaults, unknown categories become OTHER and ids that are
// missing or collide with existing or earlier ids get a fresh UUID.
func Normalize(records []Record, existingIDs map[string]struct{}) ([]model.Product, Report) {
	seen := make(map[string]struct{}, len(existingIDs)+len(records))
	for id := range existingIDs {
		seen[id] = struct{}{}
	}
	var report Report
	out := make([]model.Product, 0, len(records))
	for _, raw := range records {
		rec := canonical(raw)
		name := text(rec["name"])
		if name == "" {
			report.Dropped++
			continue
		}
		id := text(rec["id"])
		if _, taken := seen[id]; id == "" || taken {
			id = uuid.NewString()
			report.Reassigned++
		}
		seen[id] = struct{}{}
		out = append(out, model.Product{
			ID:       id,
			Name:     name,
			Category: model.ParseCategory(text(rec["category"])),
			Price:    number(rec, "price"),
			Cost:     number(rec, "cost"),
			Stock:    count(rec, "stock"),
			MinStock: count(rec, "minStock"),
		})
	}
	report.Accepted = len(out)
	return out, report
}

func canonical(raw Record) Record {
	out := make(Record, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		key = strings.ReplaceAll(key, " ", "")
		if field, ok := aliases[key]; ok {
			out[field] = v
		}
	}
	return out
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func number(rec Record, field string) float64 {
	if v, ok := parseNumber(rec[field]); ok {
		return v
	}
	return Defaults[field]
}

// count reads a whole-unit field. Values that do not fit a 32-bit integer are treated as
// not numeric and take the default.
func count(rec Record, field string) int {
	if v, ok := parseNumber(rec[field]); ok {
		if r := math.Round(v); r >= math.MinInt32 && r <= math.MaxInt32 {
			return int(r)
		}
	}
	return int(Defaults[field])
}

func parseNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "$")
		if strings.Contains(s, ",") && !strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", ".")
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

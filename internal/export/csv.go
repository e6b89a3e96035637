package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Row is one exported record; column order comes from the caller's header
// list, so maps stay unordered without scrambling the output.
type Row map[string]any

// CSV serializes rows for ad hoc data dumps. Cells are quoted only when
// they carry a comma, quote or newline; string slices are joined with ';'
// and nested objects are JSON-stringified.
func CSV(headers []string, rows []Row) string {
	var b strings.Builder
	for i, h := range headers {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escape(h))
	}
	b.WriteByte('\n')

	for _, row := range rows {
		for i, h := range headers {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escape(render(row[h])))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case []string:
		return strings.Join(val, ";")
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	}
}

func escape(cell string) string {
	if !strings.ContainsAny(cell, ",\"\n") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

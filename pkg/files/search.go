package files

import (
	"math"
	"strconv"
	"strings"

	"github.com/platinummonkey/workbench/pkg/storage"
)

// SearchFiles filters files whose name contains term, ignoring case. An
// empty term returns the input unchanged.
func SearchFiles(files []*storage.File, term string) []*storage.File {
	if term == "" {
		return files
	}

	needle := strings.ToLower(term)
	out := make([]*storage.File, 0, len(files))
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.FileName), needle) {
			out = append(out, f)
		}
	}
	return out
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count with 1024-based units and at most two
// decimals, e.g. "1.5 KB"
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iris-se/iris/sources"
)

// noContextMessage is returned when no source produced usable data.
const noContextMessage = "Ingen kontextdata tillgänglig från källor."

// BuildContext formats collected source data into the context block given
// to the AI providers. Unavailable and failed sources are skipped. Each
// source has its own presentation so the prompt stays compact.
func BuildContext(collected sources.Collected) string {
	names := make([]string, 0, len(collected))
	for name := range collected {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		result := collected[name]
		if !result.Available || result.Error != "" || result.Data == nil {
			continue
		}

		section := formatSource(name, result.Data)
		if len(section) == 0 {
			continue
		}
		parts = append(parts, "\n=== "+strings.ToUpper(name)+" ===")
		parts = append(parts, section...)
	}

	if len(parts) == 0 {
		return noContextMessage
	}
	return strings.Join(parts, "\n")
}

func formatSource(name string, data sources.Payload) []string {
	var parts []string

	switch name {
	case "omx":
		if price, ok := data["price"]; ok {
			parts = append(parts, fmt.Sprintf("OMX Index: %v SEK", price))
			if change, ok := data["change"]; ok {
				parts = append(parts, fmt.Sprintf("Förändring: %v", change))
			}
		}

	case "scb":
		if summary, ok := data["summary"].(string); ok {
			parts = append(parts, summary)
		}
		if details, ok := data["data"].(map[string]interface{}); ok {
			keys := make([]string, 0, len(details))
			for key := range details {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				parts = append(parts, fmt.Sprintf("%s: %v", key, details[key]))
			}
		}

	case "svenska_nyheter":
		if headlines := toStringSlice(data["headlines"]); len(headlines) > 0 {
			parts = append(parts, "Senaste nyheterna:")
			for i, headline := range headlines {
				if i == 3 {
					break
				}
				parts = append(parts, "- "+headline)
			}
		}

	case "smhi":
		if forecast, ok := data["forecast"]; ok {
			parts = append(parts, fmt.Sprintf("Väder: %v", forecast))
		}
		if temperature, ok := data["temperature"]; ok {
			parts = append(parts, fmt.Sprintf("Temperatur: %v°C", temperature))
		}

	default:
		if summary, ok := data["summary"]; ok {
			parts = append(parts, fmt.Sprintf("%v", summary))
		}
	}

	return parts
}

// toStringSlice tolerates both []string and the []interface{} shape that
// JSON round-trips through the cache produce.
func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

package extract

import "sort"

// BuildShipmentJSONSchema returns the strict JSON Schema for the shipment payload.
// Every property is required and nullable, which is what strict structured output demands;
// null means "not present in the document".
func BuildShipmentJSONSchema() map[string]any {
	measure := object(map[string]any{
		"value": nullableString(),
		"unit":  nullableString(),
	})
	dims := object(map[string]any{
		"length": nullableString(),
		"width":  nullableString(),
		"height": nullableString(),
		"unit":   nullableString(),
	})

	props := map[string]any{
		"contact": object(map[string]any{
			"name":    nullableString(),
			"company": nullableString(),
			"email":   nullableString(),
			"phone":   nullableString(),
		}),
		"shipment": object(map[string]any{
			"origin":         nullableString(),
			"destination":    nullableString(),
			"type":           nullableString(),
			"service":        nullableString(),
			"preferred_date": nullableString(),
			"incoterm":       nullableString(),
		}),
		"vehicle": object(map[string]any{
			"vin":        nullableString(),
			"make":       nullableString(),
			"model":      nullableString(),
			"year":       nullableString(),
			"condition":  nullableString(),
			"color":      nullableString(),
			"dimensions": nullable(dims),
			"weight":     nullable(measure),
		}),
		"cargo": object(map[string]any{
			"description": nullableString(),
			"quantity":    nullableString(),
			"packaging":   nullableString(),
			"value":       nullableString(),
			"currency":    nullableString(),
			"weight":      nullable(measure),
			"dimensions":  nullable(dims),
		}),
		"route": object(map[string]any{
			"port_of_loading":   nullableString(),
			"port_of_discharge": nullableString(),
			"via":               nullableString(),
		}),
		"confidence": map[string]any{"type": []any{"number", "null"}},
	}
	return object(props)
}

func object(props map[string]any) map[string]any {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	required := make([]any, len(keys))
	for i, k := range keys {
		required[i] = k
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func nullableString() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

// nullable widens an object schema to accept null.
func nullable(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	out["type"] = []any{"object", "null"}
	return out
}

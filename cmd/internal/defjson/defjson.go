// Package defjson renders node definitions as JSON-friendly objects, shared
// by the schema dump and property tools.
package defjson

import (
	"github.com/dannydulai/libwing/wing"
)

// Object renders a definition with optional fields present only when the
// node type populates them.
func Object(def *wing.NodeDefinition) map[string]interface{} {
	obj := map[string]interface{}{
		"id":   def.ID,
		"type": def.Type.String(),
	}
	if def.Index != 0 {
		obj["index"] = def.Index
	}
	if def.Name != "" {
		obj["name"] = def.Name
	}
	if def.LongName != "" {
		obj["longname"] = def.LongName
	}
	if def.Unit != wing.UnitNone {
		obj["unit"] = def.Unit.String()
	}
	if def.ReadOnly {
		obj["read_only"] = true
	}
	if def.MinFloat != nil {
		obj["minfloat"] = *def.MinFloat
		obj["maxfloat"] = *def.MaxFloat
		obj["steps"] = *def.Steps
	}
	if def.MinInt != nil {
		obj["minint"] = *def.MinInt
		obj["maxint"] = *def.MaxInt
	}
	if def.MaxStringLen != nil {
		obj["maxstringlen"] = *def.MaxStringLen
	}
	if len(def.StringEnum) > 0 {
		items := make([]map[string]interface{}, 0, len(def.StringEnum))
		for _, item := range def.StringEnum {
			j := map[string]interface{}{"item": item.Item}
			if item.LongItem != "" {
				j["longitem"] = item.LongItem
			}
			items = append(items, j)
		}
		obj["items"] = items
	}
	if len(def.FloatEnum) > 0 {
		items := make([]map[string]interface{}, 0, len(def.FloatEnum))
		for _, item := range def.FloatEnum {
			j := map[string]interface{}{"item": item.Item}
			if item.LongItem != "" {
				j["longitem"] = item.LongItem
			}
			items = append(items, j)
		}
		obj["items"] = items
	}
	return obj
}

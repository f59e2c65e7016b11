package provider

import (
	"strings"

	"github.com/tidwall/gjson"
)

var imageURLKeys = []string{"urlDefault", "url", "src", "originUrl", "url_default"}

// extractImages принимает строку, список строк или объектов, либо один объект.
func extractImages(v gjson.Result) []string {
	switch {
	case !v.Exists():
		return nil
	case v.Type == gjson.String:
		if s := strings.TrimSpace(v.Str); s != "" {
			return []string{s}
		}
		return nil
	case v.IsArray():
		var out []string
		v.ForEach(func(_, el gjson.Result) bool {
			switch {
			case el.Type == gjson.String:
				if s := strings.TrimSpace(el.Str); s != "" {
					out = append(out, s)
				}
			case el.IsObject():
				if s := imageFromObject(el); s != "" {
					out = append(out, s)
				}
			}
			return true
		})
		return out
	case v.IsObject():
		if s := imageFromObject(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

func imageFromObject(obj gjson.Result) string {
	for _, key := range imageURLKeys {
		res := obj.Get(key)
		if res.Type == gjson.String && strings.TrimSpace(res.Str) != "" {
			return strings.TrimSpace(res.Str)
		}
	}
	return ""
}

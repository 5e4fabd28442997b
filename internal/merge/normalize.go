package merge

import (
	"strconv"
	"strings"

	"github.com/Priyanshu-WebDev-io/leads-w3spiders-backend/internal/leads"
)

// Field alias precedence per provider family. The browser scraper emits
// snake_case keys; the structured-search API emits camelCase resource
// fields. Both are accepted for every field so a mixed artifact still
// normalizes cleanly.
var (
	placeIDAliases  = []string{"place_id", "placeId", "id", "cid", "data_id"}
	nameAliases     = []string{"name", "title", "displayName"}
	categoryAliases = []string{"category", "main_category", "primaryType"}
	phoneAliases    = []string{"phone", "phone_number", "nationalPhoneNumber", "internationalPhoneNumber"}
	websiteAliases  = []string{"website", "websiteUri", "web_site", "site"}
	addressAliases  = []string{"address", "formattedAddress", "full_address"}
	ratingAliases   = []string{"rating"}
	reviewsAliases  = []string{"review_count", "reviews_count", "userRatingCount"}
)

// ExtractPlaceID resolves the canonical identifier from a decoded raw item.
// Structured-search resource names ("places/<id>") are reduced to the bare
// identifier so both providers key the same entity.
func ExtractPlaceID(item map[string]any) string {
	id := firstString(item, placeIDAliases...)
	id = strings.TrimPrefix(id, "places/")
	return strings.TrimSpace(id)
}

// Normalize maps provider-specific field names onto the canonical schema.
// The result is sparse: fields that resolve to empty values are left at
// their zero value so the merge step never overwrites with emptiness.
func Normalize(item map[string]any) leads.Business {
	b := leads.Business{
		PlaceID:     ExtractPlaceID(item),
		Name:        firstString(item, nameAliases...),
		Category:    firstString(item, categoryAliases...),
		Phone:       firstString(item, phoneAliases...),
		Website:     firstString(item, websiteAliases...),
		Emails:      stringList(item, "emails", "email"),
		Address:     firstString(item, addressAliases...),
		Street:      firstString(item, "street"),
		City:        firstString(item, "city"),
		State:       firstString(item, "state"),
		PostalCode:  firstString(item, "postal_code", "postcode", "zip"),
		Country:     firstString(item, "country", "country_code"),
		Rating:      firstFloat(item, ratingAliases...),
		ReviewCount: int(firstFloat(item, reviewsAliases...)),
		Images:      stringList(item, "images", "photos"),
		Status:      firstString(item, "status"),
	}

	b.Latitude = firstFloat(item, "latitude", "lat")
	b.Longitude = firstFloat(item, "longitude", "lng", "lon")
	if loc, ok := nestedMap(item, "location", "coordinates"); ok {
		if b.Latitude == 0 {
			b.Latitude = firstFloat(loc, "latitude", "lat")
		}
		if b.Longitude == 0 {
			b.Longitude = firstFloat(loc, "longitude", "lng", "lon")
		}
	}

	if addr, ok := nestedMap(item, "complete_address"); ok {
		if b.Street == "" {
			b.Street = firstString(addr, "street", "borough")
		}
		if b.City == "" {
			b.City = firstString(addr, "city")
		}
		if b.State == "" {
			b.State = firstString(addr, "state")
		}
		if b.PostalCode == "" {
			b.PostalCode = firstString(addr, "postal_code", "postcode")
		}
		if b.Country == "" {
			b.Country = firstString(addr, "country")
		}
	}

	return b
}

// firstString walks the alias list and returns the first non-empty string
// value. Nested {"text": "..."} objects (structured-search display names)
// resolve to their text field.
func firstString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		raw, ok := item[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if v != 0 {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
		case map[string]any:
			if s, ok := v["text"].(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		case []any:
			for _, el := range v {
				if s, ok := el.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						return s
					}
				}
			}
		}
	}
	return ""
}

func firstFloat(item map[string]any, keys ...string) float64 {
	for _, key := range keys {
		raw, ok := item[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			if v != 0 {
				return v
			}
		case int:
			if v != 0 {
				return float64(v)
			}
		}
	}
	return 0
}

// stringList gathers a deduplicated list from the first alias that yields
// any values. Scalar aliases (a lone "email" string) become one-element
// lists; entries that are objects contribute their url/image field.
func stringList(item map[string]any, keys ...string) []string {
	for _, key := range keys {
		raw, ok := item[key]
		if !ok || raw == nil {
			continue
		}
		var out []string
		seen := make(map[string]struct{})
		add := func(s string) {
			s = strings.TrimSpace(s)
			if s == "" {
				return
			}
			if _, dup := seen[s]; dup {
				return
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
		switch v := raw.(type) {
		case string:
			add(v)
		case []any:
			for _, el := range v {
				switch e := el.(type) {
				case string:
					add(e)
				case map[string]any:
					add(firstString(e, "url", "image", "link"))
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func nestedMap(item map[string]any, keys ...string) (map[string]any, bool) {
	for _, key := range keys {
		if m, ok := item[key].(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}

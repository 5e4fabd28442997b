package merge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeItem(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestExtractPlaceID_AliasPrecedence(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", ExtractPlaceID(decodeItem(t, `{"place_id":"abc","cid":"zzz"}`)))
	require.Equal(t, "abc", ExtractPlaceID(decodeItem(t, `{"id":"places/abc"}`)))
	require.Equal(t, "123456", ExtractPlaceID(decodeItem(t, `{"cid":123456}`)))
	require.Equal(t, "", ExtractPlaceID(decodeItem(t, `{"name":"no id here"}`)))
}

func TestNormalize_BrowserShape(t *testing.T) {
	t.Parallel()

	item := decodeItem(t, `{
		"place_id": "p1",
		"title": "Joe's Plumbing",
		"phone": "+1 555 0100",
		"web_site": "https://joes.example",
		"emails": ["a@joes.example", "a@joes.example", "b@joes.example"],
		"full_address": "1 Main St, Austin, TX",
		"complete_address": {"street": "1 Main St", "city": "Austin", "state": "TX", "postal_code": "78701", "country": "US"},
		"latitude": 30.26,
		"longitude": -97.74,
		"review_count": 42
	}`)

	b := Normalize(item)
	require.Equal(t, "p1", b.PlaceID)
	require.Equal(t, "Joe's Plumbing", b.Name)
	require.Equal(t, "+1 555 0100", b.Phone)
	require.Equal(t, "https://joes.example", b.Website)
	require.Equal(t, []string{"a@joes.example", "b@joes.example"}, b.Emails)
	require.Equal(t, "1 Main St, Austin, TX", b.Address)
	require.Equal(t, "Austin", b.City)
	require.Equal(t, "78701", b.PostalCode)
	require.InDelta(t, 30.26, b.Latitude, 0.001)
	require.Equal(t, 42, b.ReviewCount)
}

func TestNormalize_StructuredSearchShape(t *testing.T) {
	t.Parallel()

	item := decodeItem(t, `{
		"id": "places/p2",
		"displayName": {"text": "Ada's Cafe"},
		"nationalPhoneNumber": "555-0101",
		"websiteUri": "https://adas.example",
		"formattedAddress": "2 Oak Ave, Portland, OR",
		"location": {"latitude": 45.5, "longitude": -122.6},
		"rating": 4.5,
		"userRatingCount": 128
	}`)

	b := Normalize(item)
	require.Equal(t, "p2", b.PlaceID)
	require.Equal(t, "Ada's Cafe", b.Name)
	require.Equal(t, "555-0101", b.Phone)
	require.Equal(t, "https://adas.example", b.Website)
	require.Equal(t, "2 Oak Ave, Portland, OR", b.Address)
	require.InDelta(t, 45.5, b.Latitude, 0.001)
	require.InDelta(t, 4.5, b.Rating, 0.001)
	require.Equal(t, 128, b.ReviewCount)
}

func TestNormalize_EmptyValuesStaySparse(t *testing.T) {
	t.Parallel()

	b := Normalize(decodeItem(t, `{"place_id":"p3","phone":"  ","website":"","emails":[]}`))
	require.Equal(t, "p3", b.PlaceID)
	require.Empty(t, b.Phone)
	require.Empty(t, b.Website)
	require.Empty(t, b.Emails)
	require.False(t, b.Contactable())
}

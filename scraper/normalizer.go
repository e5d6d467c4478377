package scraper

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"rentwatch/identity"
	"rentwatch/models"
)

// Normalizer maps heterogeneous raw listing records into canonical
// Properties. Numeric fields that fail to parse degrade to zero (documented
// parse-or-default); a record is rejected only when it lacks the minimum
// actionable fields: identity, positive price and address.
type Normalizer struct {
	siteBase string
}

func NewNormalizer(siteBase string) *Normalizer {
	return &Normalizer{siteBase: siteBase}
}

// Normalize returns the canonical Property and true, or nil and false when
// the record is rejected.
func (n *Normalizer) Normalize(raw RawListing) (*models.Property, bool) {
	token := asString(raw["token"])
	if token == "" {
		token = asString(raw["orderId"])
	}

	details := asMap(raw["additionalDetails"])
	price := asInt(raw["price"])
	rooms := asFloat(details["roomsCount"])
	size := asInt(details["squareMeter"])
	propertyType := asString(asMap(details["property"])["text"])

	addr := asMap(raw["address"])
	house := asMap(addr["house"])
	floor := asInt(house["floor"])

	street := asString(asMap(addr["street"])["text"])
	houseNumber := asString(house["number"])
	neighborhood := asString(asMap(addr["neighborhood"])["text"])
	city := asString(asMap(addr["city"])["text"])

	var addressParts []string
	if street != "" {
		if houseNumber != "" {
			addressParts = append(addressParts, street+" "+houseNumber)
		} else {
			addressParts = append(addressParts, street)
		}
	}
	if neighborhood != "" {
		addressParts = append(addressParts, neighborhood)
	}
	if city != "" {
		addressParts = append(addressParts, city)
	}
	address := strings.Join(addressParts, ", ")

	meta := asMap(raw["metaData"])
	images := asStringSlice(meta["images"])
	if len(images) == 0 {
		if cover := asString(meta["coverImage"]); cover != "" {
			images = []string{cover}
		}
	}

	var amenities []string
	for _, tag := range asSlice(raw["tags"]) {
		if name := asString(asMap(tag)["name"]); name != "" {
			amenities = append(amenities, name)
		}
	}

	customer := asMap(raw["customer"])
	contactName := asString(customer["name"])
	phone := asString(customer["phone"])

	title := buildTitle(rooms, propertyType, neighborhood, city)

	var descParts []string
	if propertyType != "" {
		descParts = append(descParts, propertyType)
	}
	for i, a := range amenities {
		if i == 3 {
			break
		}
		descParts = append(descParts, a)
	}

	id := identity.Derive(token, title, address, rooms)
	if id == "" || price <= 0 || address == "" {
		log.Printf("Normalizer: rejecting listing (id=%q price=%d address=%q)", id, price, address)
		return nil, false
	}

	listingURL := ""
	if token != "" {
		listingURL = n.siteBase + "/realestate/rent/" + token
	}

	return &models.Property{
		ID:           id,
		Title:        title,
		Price:        price,
		Address:      address,
		Neighborhood: neighborhood,
		Rooms:        rooms,
		Floor:        floor,
		SizeSqm:      size,
		Images:       images,
		Amenities:    amenities,
		ContactName:  contactName,
		Phone:        phone,
		Description:  strings.Join(descParts, ", "),
		URL:          listingURL,
		IsActive:     true,
	}, true
}

// NormalizeBatch normalizes every record, dropping rejected ones. A bad
// record never aborts the batch.
func (n *Normalizer) NormalizeBatch(raws []RawListing) []*models.Property {
	props := make([]*models.Property, 0, len(raws))
	rejected := 0
	for _, raw := range raws {
		p, ok := n.Normalize(raw)
		if !ok {
			rejected++
			continue
		}
		props = append(props, p)
	}
	if rejected > 0 {
		log.Printf("Normalizer: %d of %d listings rejected", rejected, len(raws))
	}
	return props
}

func buildTitle(rooms float64, propertyType, neighborhood, city string) string {
	var parts []string
	if rooms > 0 {
		parts = append(parts, strconv.FormatFloat(rooms, 'f', -1, 64)+" rooms")
	}
	if propertyType != "" {
		parts = append(parts, propertyType)
	}
	if loc := firstNonEmpty(neighborhood, city); loc != "" {
		parts = append(parts, loc)
	}
	return strings.Join(parts, " · ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ---- parse-or-default coercions ----
//
// Upstream JSON is inconsistent about number vs string typing; malformed
// values degrade to the zero value instead of failing the record.

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

func asInt(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int(f)
		}
	}
	return 0
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return 0
}

func asMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

func asSlice(v interface{}) []interface{} {
	if s, ok := v.([]interface{}); ok {
		return s
	}
	return nil
}

func asStringSlice(v interface{}) []string {
	var out []string
	for _, item := range asSlice(v) {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package service

import (
	"context"
	"fmt"

	"resort/internal/models"
)

// Resort add-ons are single-unit.
const maxAmenityQuantity = 1

// normalizeAmenityItems clamps quantities to the cap, drops non-positive
// quantities and keeps the first occurrence of each amenity id.
func normalizeAmenityItems(items []models.AmenityItem) []models.AmenityItem {
	seen := make(map[string]bool, len(items))
	out := make([]models.AmenityItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 || item.AmenityID == "" || seen[item.AmenityID] {
			continue
		}
		seen[item.AmenityID] = true
		if item.Quantity > maxAmenityQuantity {
			item.Quantity = maxAmenityQuantity
		}
		out = append(out, item)
	}
	return out
}

type amenityPricer struct {
	catalog CatalogStore
}

// lines prices the requested amenities at current catalog prices. Unknown or
// inactive ids are skipped.
func (p *amenityPricer) lines(ctx context.Context, items []models.AmenityItem) ([]models.AmenityLine, int64, error) {
	items = normalizeAmenityItems(items)
	if len(items) == 0 {
		return []models.AmenityLine{}, 0, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.AmenityID
	}

	amenities, err := p.catalog.GetAmenitiesByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get amenities: %w", err)
	}
	byID := make(map[string]models.Amenity, len(amenities))
	for _, a := range amenities {
		byID[a.ID] = a
	}

	lines := make([]models.AmenityLine, 0, len(items))
	var subtotal int64
	for _, item := range items {
		a, ok := byID[item.AmenityID]
		if !ok {
			continue
		}
		line := models.AmenityLine{
			AmenityID: a.ID,
			Name:      a.Name,
			UnitPrice: a.Price,
			Quantity:  item.Quantity,
			Subtotal:  a.Price * int64(item.Quantity),
		}
		subtotal += line.Subtotal
		lines = append(lines, line)
	}
	return lines, subtotal, nil
}

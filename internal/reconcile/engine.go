package reconcile

import (
	"sort"
	"strings"
	"time"

	"salesdesk/backend/internal/domain"
)

// SyntheticOrderFloor is the first order number reserved for orders created
// by reconciliation. Organic order ids are assigned sequentially from a much
// lower base, so the two ranges can never collide.
const SyntheticOrderFloor int64 = 9000001

// Group is a set of unlinked inventory rows sharing a normalized customer
// name and sale date. Serials are sorted for deterministic output.
type Group struct {
	CustomerKey  string
	CustomerName string
	SaleDate     time.Time
	SerialNos    []string
}

// Key identifies a group by normalized customer and date-only sale date.
func (g Group) Key() string {
	return g.CustomerKey + "|" + g.SaleDate.Format(domain.DateLayout)
}

// NormalizeCustomer collapses a customer name to a matching key: lowercased,
// inner whitespace squeezed to single spaces.
func NormalizeCustomer(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// GroupUnlinked buckets inventory rows that have a customer and sale date but
// no order id. Rows missing either field cannot be matched and are skipped.
func GroupUnlinked(items []domain.InventoryItem) []Group {
	buckets := make(map[string]*Group)
	for _, item := range items {
		if item.OrderID != "" || item.SaleDate == nil {
			continue
		}
		key := NormalizeCustomer(item.CustomerName)
		if key == "" {
			continue
		}
		day := item.SaleDate.Truncate(24 * time.Hour)
		groupKey := key + "|" + day.Format(domain.DateLayout)
		group, ok := buckets[groupKey]
		if !ok {
			group = &Group{
				CustomerKey:  key,
				CustomerName: strings.TrimSpace(item.CustomerName),
				SaleDate:     day,
			}
			buckets[groupKey] = group
		}
		group.SerialNos = append(group.SerialNos, item.SerialNo)
	}

	groups := make([]Group, 0, len(buckets))
	for _, group := range buckets {
		sort.Strings(group.SerialNos)
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key() < groups[j].Key() })
	return groups
}

// NextSyntheticOrderID returns the next free order number in the reserved
// range given the highest one already in use (0 when none exist yet).
func NextSyntheticOrderID(highestUsed int64) int64 {
	if highestUsed < SyntheticOrderFloor {
		return SyntheticOrderFloor
	}
	return highestUsed + 1
}

package bill

import (
	"time"

	"github.com/tabsplit/tabsplit/internal/splitting"
)

// Item is one line on a bill: a name, a price in cents, and the rule
// that divides the price among participants.
type Item struct {
	Name  string         `json:"name"`
	Price int64          `json:"price"` // Amount in cents
	Split splitting.Rule `json:"split"`
}

// Bill represents one scanned receipt with its participants and items.
// All monetary fields are cents. The mismatch flags warn that the
// scanned totals disagree with the summed item prices; the bill is
// still usable, the owner just gets a nudge to review it.
type Bill struct {
	ID               string    `json:"id"`
	StoreName        string    `json:"store_name"`
	Date             time.Time `json:"date"`
	Participants     []string  `json:"participants"`
	Items            []Item    `json:"items"`
	Subtotal         int64     `json:"subtotal"`
	Tax              int64     `json:"tax"`
	Total            int64     `json:"total"`
	SubtotalMismatch bool      `json:"subtotal_mismatch"`
	TotalMismatch    bool      `json:"total_mismatch"`
	ImagePath        string    `json:"image_path"`
	ContentType      string    `json:"content_type"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UpdateRequest carries the editable fields of a bill. Subtotal and
// Total are pointers so that an omitted field means "derive from the
// items" while an explicit value, including zero, is kept and checked
// against the item sum.
type UpdateRequest struct {
	StoreName    string    `json:"store_name"`
	Date         time.Time `json:"date"`
	Participants []string  `json:"participants"`
	Items        []Item    `json:"items"`
	Subtotal     *int64    `json:"subtotal"`
	Tax          int64     `json:"tax"`
	Total        *int64    `json:"total"`
}

// SplitItems converts the bill's items to the allocation engine's shape.
func (b *Bill) SplitItems() []splitting.Item {
	items := make([]splitting.Item, 0, len(b.Items))
	for _, item := range b.Items {
		items = append(items, splitting.Item{
			Name:  item.Name,
			Price: item.Price,
			Rule:  item.Split,
		})
	}
	return items
}

package orders

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/accounts"
	"github.com/shopspring/decimal"
)

// LineItem is one entry of an order. Raw is the entry exactly as the client
// sent it and is what gets stored and returned; the other fields are a typed
// view used for validation and events.
type LineItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
	Raw       json.RawMessage

	invalid string
}

func (it *LineItem) UnmarshalJSON(b []byte) error {
	*it = LineItem{Raw: append(json.RawMessage(nil), b...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		it.invalid = "must be an object"
		return nil
	}
	it.ProductID = scalarText(fields["productId"])
	_ = json.Unmarshal(fields["name"], &it.Name)

	if q, ok := fields["quantity"]; ok {
		n, err := strconv.Atoi(scalarText(q))
		if err != nil {
			it.invalid = "quantity must be an integer"
			return nil
		}
		it.Quantity = n
	}
	if p, ok := fields["price"]; ok {
		d, err := decimal.NewFromString(scalarText(p))
		if err != nil {
			it.invalid = "price must be a number"
			return nil
		}
		it.Price = d
	}
	return nil
}

func (it LineItem) MarshalJSON() ([]byte, error) {
	if len(it.Raw) > 0 {
		return it.Raw, nil
	}
	return json.Marshal(struct {
		ProductID string      `json:"productId"`
		Name      string      `json:"name,omitempty"`
		Quantity  int         `json:"quantity"`
		Price     json.Number `json:"price"`
	}{it.ProductID, it.Name, it.Quantity, json.Number(it.Price.String())})
}

// scalarText returns a JSON string's contents or a number's literal; anything
// else is empty.
func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

type Order struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"accountId"`
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
}

type PlaceInput struct {
	AccountID int64
	Items     []LineItem
	Total     decimal.Decimal
}

// Snapshot is the administrative view: every account and every order, read in
// two independent queries.
type Snapshot struct {
	Accounts []accounts.View `json:"accounts"`
	Orders   []Order         `json:"orders"`
}

package domain

type Balance struct {
	Owner    string `json:"owner"`
	ItemCode string `json:"item_code"`
	Quantity int64  `json:"quantity"`
}

package entity

import "time"

// IdempotencyKey records the first response produced for a client-supplied key
type IdempotencyKey struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Endpoint       string    `json:"endpoint"`
	Key            string    `json:"key"`
	PayloadHash    string    `json:"payload_hash"`
	ResponseStatus int       `json:"response_status"`
	ResponseBody   string    `json:"response_body"`
	CreatedAt      time.Time `json:"created_at"`
}

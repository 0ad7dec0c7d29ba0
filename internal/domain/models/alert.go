package models

import "time"

// Alert is a notification payload handed to AlertChannels.
type Alert struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Ticker    string         `json:"ticker,omitempty"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DeliveryStatus is the outcome of one channel send.
type DeliveryStatus struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

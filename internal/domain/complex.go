package domain

import "time"

// Complex is a sports facility holding one or more courts. The core reads it
// only to resolve the city used for weather forecasts and the owning user.
type Complex struct {
	ComplexID string    `json:"id" dynamodbav:"complex_id"`
	Name      string    `json:"name" dynamodbav:"name"`
	City      string    `json:"city" dynamodbav:"city"`
	Address   string    `json:"address" dynamodbav:"address"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// ForecastLocation returns the best available location string for the
// weather provider, falling back from city to street address.
func (c *Complex) ForecastLocation() string {
	if c.City != "" {
		return c.City
	}
	return c.Address
}

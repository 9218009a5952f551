package models

// Comparable is an admissible training listing similar to a request.
type Comparable struct {
	ID           string  `json:"id"`
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	ModelYear    int     `json:"model_year,omitempty"`
	Mileage      float64 `json:"mileage,omitempty"`
	Price        float64 `json:"price"`
	Engine       string  `json:"engine,omitempty"`
	Transmission string  `json:"transmission,omitempty"`
	FuelType     string  `json:"fuel_type,omitempty"`
	Score        float64 `json:"score"`
}

// ComparablesResponse is the response for a comparables lookup.
type ComparablesResponse struct {
	Brand     string        `json:"brand"`
	Model     string        `json:"model"`
	Results   []*Comparable `json:"results"`
	Total     int           `json:"total"`
	QueryTime int64         `json:"query_time_ms"`
}

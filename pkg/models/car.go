package models

// CarSpecs is the structured specification sheet for a single vehicle.
type CarSpecs struct {
	Make         string  `json:"make"`
	Model        string  `json:"model"`
	Year         int     `json:"year,omitempty"`
	BodyStyle    string  `json:"bodyStyle,omitempty"`
	FuelType     string  `json:"fuelType,omitempty"`
	Transmission string  `json:"transmission,omitempty"`
	PowerHP      int     `json:"powerHp,omitempty"`
	RangeKM      int     `json:"rangeKm,omitempty"`
	PriceEUR     float64 `json:"priceEur,omitempty"`
}

// CarImage is a public image URL with an alternative text.
type CarImage struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Car is the vehicle record exchanged with clients and stored in the vector
// store. DescriptionLong is the text handed verbatim to the model as tool
// output.
type Car struct {
	ID               string     `json:"id"`
	Specs            CarSpecs   `json:"specs"`
	Images           []CarImage `json:"images,omitempty"`
	DescriptionShort string     `json:"descriptionShort"`
	DescriptionLong  string     `json:"descriptionLong"`
}

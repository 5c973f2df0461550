package maps

// LookupRequest is the address lookup query.
type LookupRequest struct {
	Query string `form:"q" binding:"required,min=3"`
}

// AddressSuggestion is a geocoded address offered while registering store locations.
type AddressSuggestion struct {
	Label       string  `json:"label"`
	Street      string  `json:"street"`
	HouseNumber string  `json:"houseNumber"`
	District    string  `json:"district,omitempty"`
	ZipCode     string  `json:"zipCode"`
	City        string  `json:"city"`
	State       string  `json:"state,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type nominatimAddress struct {
	Road         string `json:"road"`
	HouseNumber  string `json:"house_number"`
	Suburb       string `json:"suburb"`
	Postcode     string `json:"postcode"`
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
}

// nominatimResponse mirrors the parts of the OSM search payload we read.
type nominatimResponse struct {
	DisplayName string           `json:"display_name"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	Address     nominatimAddress `json:"address"`
}

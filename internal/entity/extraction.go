package entity

import "time"

// ExtractionResult is the per-document structured result folded into Document.ExtractionData.
type ExtractionResult struct {
	Data     ExtractionData     `json:"data"`
	Metadata ExtractionMetadata `json:"metadata"`
}

// ExtractionMetadata records how a result was produced.
type ExtractionMetadata struct {
	Method     string    `json:"method"`
	Confidence *float64  `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Provider   string    `json:"provider,omitempty"`
	Model      string    `json:"model,omitempty"`
}

// ExtractionData is the fixed-shape shipment payload. Every leaf is optional; the
// empty string means "not supplied".
type ExtractionData struct {
	Contact  Contact  `json:"contact"`
	Shipment Shipment `json:"shipment"`
	Vehicle  Vehicle  `json:"vehicle"`
	Cargo    Cargo    `json:"cargo"`
	Route    Route    `json:"route"`
}

type Contact struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type Shipment struct {
	Origin        string `json:"origin,omitempty"`
	Destination   string `json:"destination,omitempty"`
	Type          string `json:"type,omitempty"`
	Service       string `json:"service,omitempty"`
	PreferredDate string `json:"preferred_date,omitempty"`
	Incoterm      string `json:"incoterm,omitempty"`
}

type Measure struct {
	Value string `json:"value,omitempty"`
	Unit  string `json:"unit,omitempty"`
}

type Dimensions struct {
	Length string `json:"length,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

type Vehicle struct {
	VIN        string      `json:"vin,omitempty"`
	Make       string      `json:"make,omitempty"`
	Model      string      `json:"model,omitempty"`
	Year       string      `json:"year,omitempty"`
	Condition  string      `json:"condition,omitempty"`
	Color      string      `json:"color,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	Weight     *Measure    `json:"weight,omitempty"`
}

type Cargo struct {
	Description string      `json:"description,omitempty"`
	Quantity    string      `json:"quantity,omitempty"`
	Packaging   string      `json:"packaging,omitempty"`
	Value       string      `json:"value,omitempty"`
	Currency    string      `json:"currency,omitempty"`
	Weight      *Measure    `json:"weight,omitempty"`
	Dimensions  *Dimensions `json:"dimensions,omitempty"`
}

type Route struct {
	PortOfLoading   string `json:"port_of_loading,omitempty"`
	PortOfDischarge string `json:"port_of_discharge,omitempty"`
	Via             string `json:"via,omitempty"`
}

// FillFrom copies every leaf of src into d whose current value is empty.
// Values already present in d are never overwritten.
func (d *ExtractionData) FillFrom(src ExtractionData) {
	d.Contact.fillFrom(src.Contact)
	d.Shipment.fillFrom(src.Shipment)
	d.Vehicle.fillFrom(src.Vehicle)
	d.Cargo.fillFrom(src.Cargo)
	d.Route.fillFrom(src.Route)
}

// IsEmpty reports whether no leaf is set.
func (d ExtractionData) IsEmpty() bool {
	var zero ExtractionData
	zero.FillFrom(d)
	return zero.Contact == (Contact{}) &&
		zero.Shipment == (Shipment{}) &&
		zero.Vehicle.isEmpty() &&
		zero.Cargo.isEmpty() &&
		zero.Route == (Route{})
}

func fill(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

func (c *Contact) fillFrom(src Contact) {
	fill(&c.Name, src.Name)
	fill(&c.Company, src.Company)
	fill(&c.Email, src.Email)
	fill(&c.Phone, src.Phone)
}

func (s *Shipment) fillFrom(src Shipment) {
	fill(&s.Origin, src.Origin)
	fill(&s.Destination, src.Destination)
	fill(&s.Type, src.Type)
	fill(&s.Service, src.Service)
	fill(&s.PreferredDate, src.PreferredDate)
	fill(&s.Incoterm, src.Incoterm)
}

func (m *Measure) fillFrom(src Measure) {
	fill(&m.Value, src.Value)
	fill(&m.Unit, src.Unit)
}

func (d *Dimensions) fillFrom(src Dimensions) {
	fill(&d.Length, src.Length)
	fill(&d.Width, src.Width)
	fill(&d.Height, src.Height)
	fill(&d.Unit, src.Unit)
}

// fillMeasure merges key-by-key; a missing dst object is created only when src has data.
func fillMeasure(dst **Measure, src *Measure) {
	if src == nil || *src == (Measure{}) {
		return
	}
	if *dst == nil {
		*dst = &Measure{}
	}
	(*dst).fillFrom(*src)
}

func fillDimensions(dst **Dimensions, src *Dimensions) {
	if src == nil || *src == (Dimensions{}) {
		return
	}
	if *dst == nil {
		*dst = &Dimensions{}
	}
	(*dst).fillFrom(*src)
}

func (v *Vehicle) fillFrom(src Vehicle) {
	fill(&v.VIN, src.VIN)
	fill(&v.Make, src.Make)
	fill(&v.Model, src.Model)
	fill(&v.Year, src.Year)
	fill(&v.Condition, src.Condition)
	fill(&v.Color, src.Color)
	fillDimensions(&v.Dimensions, src.Dimensions)
	fillMeasure(&v.Weight, src.Weight)
}

func (v Vehicle) isEmpty() bool {
	return v.VIN == "" && v.Make == "" && v.Model == "" && v.Year == "" &&
		v.Condition == "" && v.Color == "" && v.Dimensions == nil && v.Weight == nil
}

func (c *Cargo) fillFrom(src Cargo) {
	fill(&c.Description, src.Description)
	fill(&c.Quantity, src.Quantity)
	fill(&c.Packaging, src.Packaging)
	fill(&c.Value, src.Value)
	fill(&c.Currency, src.Currency)
	fillMeasure(&c.Weight, src.Weight)
	fillDimensions(&c.Dimensions, src.Dimensions)
}

func (c Cargo) isEmpty() bool {
	return c.Description == "" && c.Quantity == "" && c.Packaging == "" && c.Value == "" &&
		c.Currency == "" && c.Weight == nil && c.Dimensions == nil
}

func (r *Route) fillFrom(src Route) {
	fill(&r.PortOfLoading, src.PortOfLoading)
	fill(&r.PortOfDischarge, src.PortOfDischarge)
	fill(&r.Via, src.Via)
}

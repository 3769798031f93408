package extract

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ttacon/libphonenumber"

	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

var (
	reVIN       = regexp.MustCompile(`(?i)\b[A-HJ-NPR-Z0-9]{17}\b`)
	reFromTo    = regexp.MustCompile(`\b[Ff]rom\s+([A-Z][\w'.-]*(?: [A-Z][\w'.-]*){0,3})\s+to\s+([A-Z][\w'.-]*(?: [A-Z][\w'.-]*){0,3})`)
	reEmail     = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	rePhone     = regexp.MustCompile(`(?i)\b(?:phone|tel|telephone|mobile|cell|whatsapp)\b\s*[:.]?\s*(\+?[\d \t().\-]{6,20}\d)`)
	reYearMake  = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\s+([A-Z][A-Za-z-]+)\s+([A-Z0-9][\w-]*)`)
	reWeight    = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(kgs?|lbs?|tonnes?|tons?|t)\b`)
	reDims      = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*[x×*]\s*(\d+(?:[.,]\d+)?)\s*[x×*]\s*(\d+(?:[.,]\d+)?)\s*(cm|mm|m|in|ft)?\b`)
	reIncoterm  = regexp.MustCompile(`\b(EXW|FCA|FAS|FOB|CFR|CIF|CPT|CIP|DAP|DPU|DDP)\b`)
	reService   = regexp.MustCompile(`(?i)\b(ro-?ro|fcl|lcl|container|air freight|breakbulk|flat ?rack)\b`)
	reCompanyCo = regexp.MustCompile(`\b([A-Z][\w&.-]*(?: [A-Z][\w&.-]*){0,4} (?:Ltd|LLC|Inc|GmbH|BV|NV|SARL|Limited|Logistics))\b`)
)

// PatternStrategy is the heuristic extractor used when AI is unavailable.
type PatternStrategy struct {
	region string
}

// NewPatternStrategy parses phone numbers without a country prefix as region (ISO 3166 alpha-2).
func NewPatternStrategy(region string) *PatternStrategy {
	if region == "" {
		region = "US"
	}
	return &PatternStrategy{region: strings.ToUpper(region)}
}

func (s *PatternStrategy) Kind() Kind { return PatternBased }

func (s *PatternStrategy) Extract(ctx context.Context, in Input) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := s.parse(in.Text)
	out := &Outcome{Kind: PatternBased, Data: data}
	if n := countFields(data); n > 0 {
		c := min(0.2+0.1*float64(n), 0.7)
		out.Confidence = &c
	}
	return out, nil
}

func (s *PatternStrategy) parse(text string) entity.ExtractionData {
	var d entity.ExtractionData
	text = strings.ReplaceAll(text, "\r\n", "\n")

	// Labelled lines win over free-text matches.
	d.Contact.Name = labelled(text, labelName)
	d.Contact.Company = labelled(text, labelCompany)
	d.Shipment.Origin = labelled(text, labelOrigin)
	d.Shipment.Destination = labelled(text, labelDestination)
	d.Shipment.PreferredDate = labelled(text, labelPreferredDate)
	d.Route.PortOfLoading = labelled(text, labelPOL)
	d.Route.PortOfDischarge = labelled(text, labelPOD)
	d.Route.Via = labelled(text, labelVia)
	d.Vehicle.Make = labelled(text, labelMake)
	d.Vehicle.Model = labelled(text, labelModel)
	d.Vehicle.Year = labelled(text, labelYear)
	d.Vehicle.Color = labelled(text, labelColor)
	d.Vehicle.Condition = labelled(text, labelCondition)
	d.Cargo.Description = labelled(text, labelCargo)

	if m := reFromTo.FindStringSubmatch(text); m != nil {
		fill(&d.Shipment.Origin, m[1])
		fill(&d.Shipment.Destination, m[2])
	}
	if d.Contact.Company == "" {
		if m := reCompanyCo.FindStringSubmatch(text); m != nil {
			d.Contact.Company = m[1]
		}
	}
	d.Vehicle.VIN = findVIN(text)
	if m := reEmail.FindString(text); m != "" {
		d.Contact.Email = strings.ToLower(m)
	}
	if m := rePhone.FindStringSubmatch(text); m != nil {
		d.Contact.Phone = s.normalizePhone(m[1])
	}
	if m := reYearMake.FindStringSubmatch(text); m != nil {
		fill(&d.Vehicle.Year, m[1])
		fill(&d.Vehicle.Make, m[2])
		fill(&d.Vehicle.Model, m[3])
	}
	if m := reIncoterm.FindStringSubmatch(text); m != nil {
		d.Shipment.Incoterm = m[1]
	}
	if m := reService.FindStringSubmatch(text); m != nil {
		d.Shipment.Service = normalizeService(m[1])
	}

	isVehicle := d.Vehicle.VIN != "" || d.Vehicle.Make != ""
	if isVehicle {
		d.Shipment.Type = "vehicle"
	} else if d.Cargo.Description != "" {
		d.Shipment.Type = "cargo"
	}
	if m := reWeight.FindStringSubmatch(text); m != nil {
		w := &entity.Measure{Value: strings.ReplaceAll(m[1], ",", "."), Unit: normalizeWeightUnit(m[2])}
		if isVehicle {
			d.Vehicle.Weight = w
		} else {
			d.Cargo.Weight = w
		}
	}
	if m := reDims.FindStringSubmatch(text); m != nil {
		dims := &entity.Dimensions{
			Length: strings.ReplaceAll(m[1], ",", "."),
			Width:  strings.ReplaceAll(m[2], ",", "."),
			Height: strings.ReplaceAll(m[3], ",", "."),
			Unit:   strings.ToLower(m[4]),
		}
		if isVehicle {
			d.Vehicle.Dimensions = dims
		} else {
			d.Cargo.Dimensions = dims
		}
	}
	return d
}

// Label patterns per field, tried in order.
var (
	labelName          = labelPatterns("name", "contact name", "contact")
	labelCompany       = labelPatterns("company", "organization", "organisation")
	labelOrigin        = labelPatterns("origin", "pickup", "pick-up", "collection")
	labelDestination   = labelPatterns("destination", "delivery", "deliver to")
	labelPreferredDate = labelPatterns("preferred date", "ready date", "shipping date")
	labelPOL           = labelPatterns("pol", "port of loading")
	labelPOD           = labelPatterns("pod", "port of discharge")
	labelVia           = labelPatterns("via", "transshipment")
	labelMake          = labelPatterns("make")
	labelModel         = labelPatterns("model")
	labelYear          = labelPatterns("year")
	labelColor         = labelPatterns("color", "colour")
	labelCondition     = labelPatterns("condition")
	labelCargo         = labelPatterns("cargo", "commodity", "goods", "description")
)

func labelPatterns(labels ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(labels))
	for i, label := range labels {
		out[i] = regexp.MustCompile(`(?im)^[ \t>*-]*` + regexp.QuoteMeta(label) + `[ \t]*[:=][ \t]*([^\n]+)$`)
	}
	return out
}

// labelled returns the value of the first "Label: value" line matching one of patterns.
func labelled(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			v := strings.Trim(strings.TrimSpace(m[1]), ",.;")
			if v != "" {
				return v
			}
		}
	}
	return ""
}

// findVIN returns the first 17 character token that mixes letters and digits.
func findVIN(text string) string {
	for _, m := range reVIN.FindAllString(text, -1) {
		m = strings.ToUpper(m)
		if strings.ContainsAny(m, "0123456789") && strings.IndexFunc(m, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0 {
			return m
		}
	}
	return ""
}

func (s *PatternStrategy) normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	num, err := libphonenumber.Parse(raw, s.region)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}

func normalizeWeightUnit(u string) string {
	switch strings.ToLower(u) {
	case "kg", "kgs":
		return "kg"
	case "lb", "lbs":
		return "lb"
	default:
		return "t"
	}
}

func normalizeService(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "ro"):
		return "roro"
	case strings.HasPrefix(s, "flat"):
		return "flatrack"
	default:
		return s
	}
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = strings.TrimSpace(v)
	}
}

// countFields counts populated leaves.
func countFields(d entity.ExtractionData) int {
	b, err := json.Marshal(d)
	if err != nil {
		return 0
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return 0
	}
	return countLeaves(m)
}

func countLeaves(v any) int {
	switch t := v.(type) {
	case map[string]any:
		n := 0
		for _, child := range t {
			n += countLeaves(child)
		}
		return n
	case string:
		if t != "" {
			return 1
		}
	}
	return 0
}
